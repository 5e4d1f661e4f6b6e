package performance

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

type bucketKey struct {
	name   string
	source string
	start  time.Time
}

type bucket struct {
	count      int64
	errorCount int64
	samples    []float64
	seen       int64
	sum        float64
	max        float64
}

// aggregator groups samples into fixed-span buckets and keeps a bounded reservoir per bucket
// for percentile estimates.
type aggregator struct {
	mu         sync.Mutex
	span       time.Duration
	maxSamples int
	buckets    map[bucketKey]*bucket
	now        func() time.Time
	random     *rand.Rand
}

const defaultReservoirSize = 512

func newAggregator(span time.Duration, maxSamples int, now func() time.Time) *aggregator {
	if span <= 0 {
		span = time.Minute
	}
	if maxSamples <= 0 {
		maxSamples = defaultReservoirSize
	}
	if now == nil {
		now = time.Now
	}
	return &aggregator{
		span:       span,
		maxSamples: maxSamples,
		buckets:    make(map[bucketKey]*bucket),
		now:        now,
		random:     rand.New(rand.NewSource(now().UnixNano())),
	}
}

func (a *aggregator) add(sample domain.PerformanceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := bucketKey{name: sample.Name, source: sample.Source, start: sample.OccurredAt.UTC().Truncate(a.span)}
	b := a.buckets[key]
	if b == nil {
		b = &bucket{}
		a.buckets[key] = b
	}
	b.count++
	if sample.Error {
		b.errorCount++
	}
	d := sample.DurationMS
	b.sum += d
	if b.count == 1 || d > b.max {
		b.max = d
	}
	b.seen++
	if len(b.samples) < a.maxSamples {
		b.samples = append(b.samples, d)
	} else if idx := a.random.Int63n(b.seen); idx < int64(a.maxSamples) {
		b.samples[idx] = d
	}
}

// flushBefore removes and returns every bucket that closed at or before cutoff.
func (a *aggregator) flushBefore(cutoff time.Time) []domain.PerformanceRollup {
	a.mu.Lock()
	defer a.mu.Unlock()

	var rollups []domain.PerformanceRollup
	now := a.now().UTC()
	for key, b := range a.buckets {
		if key.start.Add(a.span).After(cutoff) {
			continue
		}
		rollups = append(rollups, b.rollup(key, a.span, now))
		delete(a.buckets, key)
	}
	return rollups
}

func (a *aggregator) flushAll() []domain.PerformanceRollup {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.buckets) == 0 {
		return nil
	}
	now := a.now().UTC()
	rollups := make([]domain.PerformanceRollup, 0, len(a.buckets))
	for key, b := range a.buckets {
		rollups = append(rollups, b.rollup(key, a.span, now))
		delete(a.buckets, key)
	}
	return rollups
}

func (b *bucket) rollup(key bucketKey, span time.Duration, now time.Time) domain.PerformanceRollup {
	r := domain.PerformanceRollup{
		Name:        key.name,
		Source:      key.source,
		BucketStart: key.start,
		BucketSpan:  span,
		Count:       b.count,
		ErrorCount:  b.errorCount,
		UpdatedAt:   now,
	}
	if b.count == 0 {
		return r
	}
	avg := b.sum / float64(b.count)
	max := b.max
	r.AvgMS = &avg
	r.MaxMS = &max
	if len(b.samples) > 0 {
		sorted := append([]float64(nil), b.samples...)
		sort.Float64s(sorted)
		p50 := percentile(sorted, 0.50)
		p90 := percentile(sorted, 0.90)
		p95 := percentile(sorted, 0.95)
		p99 := percentile(sorted, 0.99)
		r.P50MS = &p50
		r.P90MS = &p90
		r.P95MS = &p95
		r.P99MS = &p99
	}
	return r
}

// percentile interpolates linearly between the closest ranks of sorted values.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	pos := p * float64(len(values)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return values[lower]
	}
	weight := pos - float64(lower)
	return values[lower]*(1-weight) + values[upper]*weight
}
