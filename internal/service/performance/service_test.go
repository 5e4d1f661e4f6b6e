package performance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

type rollupStore struct {
	mu      sync.Mutex
	rollups []domain.PerformanceRollup
	listed  struct {
		name, source string
		span         time.Duration
	}
}

func (r *rollupStore) UpsertPerformanceRollups(_ context.Context, rollups []domain.PerformanceRollup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollups = append(r.rollups, rollups...)
	return nil
}

func (r *rollupStore) ListPerformanceRollups(_ context.Context, name, source string, span time.Duration, _ int) ([]domain.PerformanceRollup, error) {
	r.listed.name, r.listed.source, r.listed.span = name, source, span
	return nil, nil
}

func (r *rollupStore) stored() []domain.PerformanceRollup {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PerformanceRollup(nil), r.rollups...)
}

func newTestService() (*Service, *rollupStore) {
	store := &rollupStore{}
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Minute, time.Second), store
}

func TestRunFlushesRemainingBucketsOnStop(t *testing.T) {
	svc, store := newTestService()
	svc.Record("GET /alerts", 12*time.Millisecond, false)
	svc.Record("GET /alerts", 30*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	rollups := store.stored()
	if len(rollups) != 1 {
		t.Fatalf("expected one rollup, got %d", len(rollups))
	}
	r := rollups[0]
	if r.Name != "GET /alerts" || r.Source != domain.SourceServer || r.Count != 2 || r.ErrorCount != 1 {
		t.Fatalf("unexpected rollup %+v", r)
	}
}

func TestIngestValidatesAndNormalizesClientSamples(t *testing.T) {
	svc, _ := newTestService()
	now := time.Date(2026, time.March, 5, 12, 0, 30, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Ingest(nil); err == nil {
		t.Fatal("expected empty batch to be rejected")
	}
	_, err := svc.Ingest([]ClientSample{{Name: "", DurationMS: 5}})
	var fields validate.FieldErrors
	if !errors.As(err, &fields) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, err := svc.Ingest([]ClientSample{{Name: "render", DurationMS: -1}}); err == nil {
		t.Fatal("expected negative duration to be rejected")
	}

	stale := now.Add(-2 * time.Hour)
	n, err := svc.Ingest([]ClientSample{
		{Name: "Dashboard Load", DurationMS: 420},
		{Name: "dashboard load", DurationMS: 380, OccurredAt: &stale},
	})
	if err != nil || n != 2 {
		t.Fatalf("Ingest: n=%d err=%v", n, err)
	}
	rollups := svc.aggregator.flushAll()
	if len(rollups) != 1 {
		t.Fatalf("expected samples merged into one bucket, got %d", len(rollups))
	}
	if rollups[0].Name != "dashboard load" || rollups[0].Source != domain.SourceClient || rollups[0].Count != 2 {
		t.Fatalf("unexpected rollup %+v", rollups[0])
	}
	if !rollups[0].BucketStart.Equal(now.Truncate(time.Minute)) {
		t.Fatalf("expected stale timestamp replaced by now, got %v", rollups[0].BucketStart)
	}
}

func TestListRollupsUsesConfiguredSpan(t *testing.T) {
	svc, store := newTestService()
	if _, err := svc.ListRollups(context.Background(), "op", "browser", 10); err == nil {
		t.Fatal("expected unknown source to be rejected")
	}
	if _, err := svc.ListRollups(context.Background(), " op ", "client", 10); err != nil {
		t.Fatalf("ListRollups: %v", err)
	}
	if store.listed.name != "op" || store.listed.source != "client" || store.listed.span != time.Minute {
		t.Fatalf("unexpected list arguments %+v", store.listed)
	}
}
