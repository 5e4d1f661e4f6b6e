package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

type memorySettings struct {
	rows map[string]domain.UserSettings
}

func (m *memorySettings) GetSettings(_ context.Context, userID string) (*domain.UserSettings, error) {
	row, ok := m.rows[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (m *memorySettings) UpsertSettings(_ context.Context, s *domain.UserSettings) error {
	m.rows[s.UserID] = *s
	return nil
}

type countingPublisher struct{ changes []domain.Change }

func (p *countingPublisher) Publish(_ context.Context, c domain.Change) error {
	p.changes = append(p.changes, c)
	return nil
}

func newTestService() (Service, *memorySettings, *countingPublisher) {
	repo := &memorySettings{rows: make(map[string]domain.UserSettings)}
	pub := &countingPublisher{}
	return New(repo, pub, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, pub
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestGetReturnsDefaults(t *testing.T) {
	svc, _, _ := newTestService()
	got, err := svc.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != domain.DefaultSettings("user-1") {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	svc, repo, pub := newTestService()
	got, err := svc.Update(context.Background(), "user-1", Patch{Theme: strPtr("dark"), PushNotifications: boolPtr(false), Language: strPtr(" FR ")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Theme != "dark" || got.PushNotifications || got.Language != "fr" {
		t.Fatalf("unexpected settings %+v", got)
	}
	if !got.EmailNotifications || got.AlertThreshold != domain.SeverityMedium {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", got)
	}
	if _, ok := repo.rows["user-1"]; !ok {
		t.Fatal("expected settings persisted")
	}
	if len(pub.changes) != 1 || pub.changes[0].Table != domain.TableSettings {
		t.Fatalf("unexpected changes %+v", pub.changes)
	}

	again, err := svc.Update(context.Background(), "user-1", Patch{AlertThreshold: strPtr(domain.SeverityHigh)})
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if again.Theme != "dark" || again.AlertThreshold != domain.SeverityHigh {
		t.Fatalf("expected stored values merged, got %+v", again)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	svc, repo, _ := newTestService()
	_, err := svc.Update(context.Background(), "user-1", Patch{Theme: strPtr("neon"), AlertThreshold: strPtr("extreme")})
	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, ok := fields["theme"]; !ok {
		t.Fatalf("expected theme error, got %v", fields)
	}
	if _, ok := fields["alert_threshold"]; !ok {
		t.Fatalf("expected alert_threshold error, got %v", fields)
	}
	if len(repo.rows) != 0 {
		t.Fatal("expected nothing persisted")
	}
}
