// Package performance times server requests and client operations and stores
// per-minute latency rollups.
package performance

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

const (
	defaultBucketSpan    = time.Minute
	defaultFlushInterval = 30 * time.Second
	maxClientBatch       = 100
)

// Service aggregates samples in memory and flushes closed buckets on an interval.
type Service struct {
	repo          repository.PerformanceRepository
	aggregator    *aggregator
	bucketSpan    time.Duration
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
	once          sync.Once
}

// New constructs a performance service.
func New(repo repository.PerformanceRepository, logger *slog.Logger, bucketSpan, flushInterval time.Duration) *Service {
	if bucketSpan <= 0 {
		bucketSpan = defaultBucketSpan
	}
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	if flushInterval > bucketSpan {
		flushInterval = bucketSpan
	}
	now := time.Now
	return &Service{
		repo:          repo,
		aggregator:    newAggregator(bucketSpan, 0, now),
		bucketSpan:    bucketSpan,
		flushInterval: flushInterval,
		logger:        logger.With("component", "performance"),
		now:           now,
	}
}

// Run flushes closed buckets until ctx is cancelled, then flushes everything left.
func (s *Service) Run(ctx context.Context) {
	s.once.Do(func() {
		s.logger.Info("performance monitor started", "bucket_span", s.bucketSpan, "flush_interval", s.flushInterval)
	})
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.persist(context.Background(), s.aggregator.flushAll())
			s.logger.Info("performance monitor stopped")
			return
		case <-ticker.C:
			s.flushStale(ctx)
		}
	}
}

// Record adds a server-side timing for the named operation.
func (s *Service) Record(name string, duration time.Duration, failed bool) {
	if s == nil || name == "" {
		return
	}
	s.aggregator.add(domain.PerformanceSample{
		Name:       name,
		Source:     domain.SourceServer,
		DurationMS: float64(duration) / float64(time.Millisecond),
		Error:      failed,
		OccurredAt: s.now(),
	})
}

// ClientSample is a timing reported by the dashboard.
type ClientSample struct {
	Name       string     `json:"name" validate:"required,max=120"`
	DurationMS float64    `json:"duration_ms" validate:"gte=0,lte=600000"`
	Error      bool       `json:"error"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// Ingest accepts a batch of client samples. Timestamps older than one bucket span, or in the
// future, are replaced by now so already flushed buckets are never reopened.
func (s *Service) Ingest(samples []ClientSample) (int, error) {
	if len(samples) == 0 {
		return 0, validate.FieldErrors{"samples": "is required"}
	}
	if len(samples) > maxClientBatch {
		return 0, validate.FieldErrors{"samples": "must contain at most 100 entries"}
	}
	for i := range samples {
		samples[i].Name = strings.ToLower(validate.Text(samples[i].Name))
		if err := validate.Struct(samples[i]); err != nil {
			return 0, err
		}
	}
	now := s.now()
	for _, sample := range samples {
		at := now
		if sample.OccurredAt != nil && !sample.OccurredAt.After(now) && now.Sub(*sample.OccurredAt) <= s.bucketSpan {
			at = *sample.OccurredAt
		}
		s.aggregator.add(domain.PerformanceSample{
			Name:       sample.Name,
			Source:     domain.SourceClient,
			DurationMS: sample.DurationMS,
			Error:      sample.Error,
			OccurredAt: at,
		})
	}
	return len(samples), nil
}

// ListRollups returns stored rollups, newest first.
func (s *Service) ListRollups(ctx context.Context, name, source string, limit int) ([]domain.PerformanceRollup, error) {
	source = strings.TrimSpace(source)
	if source != "" {
		if err := validate.Var("source", source, "oneof=server client"); err != nil {
			return nil, err
		}
	}
	return s.repo.ListPerformanceRollups(ctx, strings.TrimSpace(name), source, s.bucketSpan, limit)
}

func (s *Service) flushStale(ctx context.Context) {
	s.persist(ctx, s.aggregator.flushBefore(s.now().Add(-s.bucketSpan)))
}

func (s *Service) persist(ctx context.Context, rollups []domain.PerformanceRollup) {
	if len(rollups) == 0 {
		return
	}
	if err := s.repo.UpsertPerformanceRollups(ctx, rollups); err != nil {
		s.logger.Warn("failed to persist performance rollups", "error", err, "count", len(rollups))
	}
}
