package resource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

type fakeResourceRepo struct {
	items      map[string]*domain.Resource
	serials    map[string]string
	lastFilter domain.ResourceFilter
	updates    int
}

func newFakeResourceRepo() *fakeResourceRepo {
	return &fakeResourceRepo{items: make(map[string]*domain.Resource), serials: make(map[string]string)}
}

func (f *fakeResourceRepo) CreateResource(_ context.Context, r *domain.Resource) error {
	if r.SerialNumber != "" {
		if _, taken := f.serials[r.SerialNumber]; taken {
			return repository.ErrConflict
		}
		f.serials[r.SerialNumber] = r.ID
	}
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	clone := *r
	f.items[r.ID] = &clone
	return nil
}

func (f *fakeResourceRepo) GetResource(_ context.Context, id string) (*domain.Resource, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeResourceRepo) ListResources(_ context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeResourceRepo) UpdateResource(_ context.Context, r *domain.Resource) error {
	if _, ok := f.items[r.ID]; !ok {
		return repository.ErrNotFound
	}
	f.updates++
	clone := *r
	f.items[r.ID] = &clone
	return nil
}

func (f *fakeResourceRepo) DeleteResource(_ context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeProfiles struct {
	known map[string]bool
}

func (f fakeProfiles) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	if !f.known[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.Profile{ID: id}, nil
}

func (fakeProfiles) ListProfiles(context.Context, domain.ProfileFilter) ([]domain.Profile, error) {
	return nil, nil
}
func (fakeProfiles) UpdateProfile(context.Context, *domain.Profile) error { return nil }
func (fakeProfiles) SetProfileRole(context.Context, string, string, time.Time) error { return nil }
func (fakeProfiles) SetProfileAvatar(context.Context, string, string, time.Time) error { return nil }
func (fakeProfiles) SetProfileDemo(context.Context, string, bool) error { return nil }

type fakePublisher struct{ changes []domain.Change }

func (p *fakePublisher) Publish(_ context.Context, c domain.Change) error {
	p.changes = append(p.changes, c)
	return nil
}

type fakeAudit struct{ entries []domain.AccessLog }

func (a *fakeAudit) Record(_ context.Context, e domain.AccessLog) { a.entries = append(a.entries, e) }

type raisedAlert struct {
	resourceID string
	severity   string
	title      string
}

type fakeAlerts struct{ raised []raisedAlert }

func (f *fakeAlerts) RaiseForResource(_ context.Context, _ domain.Actor, r domain.Resource, severity, title, _ string) error {
	f.raised = append(f.raised, raisedAlert{resourceID: r.ID, severity: severity, title: title})
	return nil
}

type fixture struct {
	svc     Service
	repo    *fakeResourceRepo
	pub     *fakePublisher
	audit   *fakeAudit
	alerts  *fakeAlerts
	manager domain.Actor
	staffer string
}

func newFixture() fixture {
	staffer := uuid.NewString()
	repo := newFakeResourceRepo()
	pub := &fakePublisher{}
	audit := &fakeAudit{}
	alerts := &fakeAlerts{}
	profiles := fakeProfiles{known: map[string]bool{staffer: true}}
	svc := New(repo, profiles, pub, audit, alerts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return fixture{
		svc:     svc,
		repo:    repo,
		pub:     pub,
		audit:   audit,
		alerts:  alerts,
		manager: domain.Actor{UserID: uuid.NewString(), Role: domain.RoleManager},
		staffer: staffer,
	}
}

func TestCreateRequiresManagerOrAdmin(t *testing.T) {
	f := newFixture()
	employee := domain.Actor{UserID: f.staffer, Role: domain.RoleEmployee}
	_, err := f.svc.Create(context.Background(), employee, CreateInput{Name: "Batmobile", Type: domain.ResourceVehicle})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(f.repo.items) != 0 {
		t.Fatal("expected nothing stored")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != domain.OutcomeDenied {
		t.Fatalf("expected denied audit entry, got %+v", f.audit.entries)
	}
}

func TestCreateSanitizesValidatesAndPublishes(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Create(context.Background(), f.manager, CreateInput{
		Name:         "  <b>Grapnel</b> Gun ",
		Type:         domain.ResourceEquipment,
		SerialNumber: "WE-GG-01",
		Description:  `<p>Standard issue</p><script>x()</script>`,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Name != "Grapnel Gun" || res.Status != domain.StatusAvailable {
		t.Fatalf("unexpected resource %+v", res)
	}
	if res.Description != "<p>Standard issue</p>" {
		t.Fatalf("unexpected description %q", res.Description)
	}
	if len(f.pub.changes) != 1 || f.pub.changes[0].Type != domain.ChangeInsert || f.pub.changes[0].Table != domain.TableResources {
		t.Fatalf("unexpected changes %+v", f.pub.changes)
	}
	last := f.audit.entries[len(f.audit.entries)-1]
	if last.Action != "resource_create" || last.ResourceID == nil || *last.ResourceID != res.ID {
		t.Fatalf("unexpected audit entry %+v", last)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), f.manager, CreateInput{Name: "", Type: "spaceship", SerialNumber: "bad serial"})
	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	for _, key := range []string{"name", "type", "serial_number"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("expected %s error, got %v", key, fields)
		}
	}
}

func TestCreateDuplicateSerial(t *testing.T) {
	f := newFixture()
	input := CreateInput{Name: "Cowl", Type: domain.ResourceEquipment, SerialNumber: "WE-C-1"}
	if _, err := f.svc.Create(context.Background(), f.manager, input); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(context.Background(), f.manager, input); !errors.Is(err, ErrDuplicateSerial) {
		t.Fatalf("expected ErrDuplicateSerial, got %v", err)
	}
}

func TestUpdateToMaintenanceRaisesAlertOnce(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Create(context.Background(), f.manager, CreateInput{Name: "Batwing", Type: domain.ResourceVehicle})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	status := domain.StatusMaintenance
	if _, err := f.svc.Update(context.Background(), f.manager, res.ID, UpdateInput{Status: &status}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	location := "Hangar 2"
	if _, err := f.svc.Update(context.Background(), f.manager, res.ID, UpdateInput{Location: &location}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(f.alerts.raised) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(f.alerts.raised))
	}
	if f.alerts.raised[0].severity != domain.SeverityMedium || f.alerts.raised[0].resourceID != res.ID {
		t.Fatalf("unexpected alert %+v", f.alerts.raised[0])
	}
	stored := f.repo.items[res.ID]
	if stored.Status != domain.StatusMaintenance || stored.Location != "Hangar 2" || stored.Name != "Batwing" {
		t.Fatalf("unexpected stored resource %+v", stored)
	}
}

func TestUpdateMissingResource(t *testing.T) {
	f := newFixture()
	name := "Ghost"
	if _, err := f.svc.Update(context.Background(), f.manager, uuid.NewString(), UpdateInput{Name: &name}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignAdjustsStatus(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Create(context.Background(), f.manager, CreateInput{Name: "Radio", Type: domain.ResourceDevice})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	assigned, err := f.svc.Assign(context.Background(), f.manager, res.ID, &f.staffer)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if assigned.AssignedTo == nil || *assigned.AssignedTo != f.staffer || assigned.Status != domain.StatusInUse {
		t.Fatalf("unexpected assignment %+v", assigned)
	}
	released, err := f.svc.Assign(context.Background(), f.manager, res.ID, nil)
	if err != nil {
		t.Fatalf("Assign nil: %v", err)
	}
	if released.AssignedTo != nil || released.Status != domain.StatusAvailable {
		t.Fatalf("unexpected release %+v", released)
	}

	ghost := uuid.NewString()
	if _, err := f.svc.Assign(context.Background(), f.manager, res.ID, &ghost); !errors.Is(err, ErrUnknownAssignee) {
		t.Fatalf("expected ErrUnknownAssignee, got %v", err)
	}
}

func TestDeletePublishesAndAudits(t *testing.T) {
	f := newFixture()
	res, err := f.svc.Create(context.Background(), f.manager, CreateInput{Name: "Drone", Type: domain.ResourceDevice})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Delete(context.Background(), f.manager, res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	last := f.pub.changes[len(f.pub.changes)-1]
	if last.Type != domain.ChangeDelete || last.RecordID != res.ID {
		t.Fatalf("unexpected change %+v", last)
	}
	entry := f.audit.entries[len(f.audit.entries)-1]
	if entry.Action != "resource_delete" || entry.ResourceID != nil {
		t.Fatalf("unexpected audit entry %+v", entry)
	}
	if err := f.svc.Delete(context.Background(), f.manager, res.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListValidatesFilter(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.List(context.Background(), domain.ResourceFilter{Status: "lost"}); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
	if _, err := f.svc.List(context.Background(), domain.ResourceFilter{Type: domain.ResourceVehicle, Search: "bat_"}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if f.repo.lastFilter.Search != `bat\_` {
		t.Fatalf("unexpected search %q", f.repo.lastFilter.Search)
	}
}
