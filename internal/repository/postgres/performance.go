package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

// UpsertPerformanceRollups writes rollups, replacing any bucket already stored.
func (r *Repository) UpsertPerformanceRollups(ctx context.Context, rollups []domain.PerformanceRollup) error {
	if len(rollups) == 0 {
		return nil
	}
	const query = `INSERT INTO performance_rollups (
		name,
		source,
		bucket_start,
		bucket_span_seconds,
		count,
		error_count,
		p50_ms,
		p90_ms,
		p95_ms,
		p99_ms,
		max_ms,
		avg_ms,
		updated_at
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW()
	) ON CONFLICT (name, source, bucket_start, bucket_span_seconds)
	DO UPDATE SET
		count = EXCLUDED.count,
		error_count = EXCLUDED.error_count,
		p50_ms = EXCLUDED.p50_ms,
		p90_ms = EXCLUDED.p90_ms,
		p95_ms = EXCLUDED.p95_ms,
		p99_ms = EXCLUDED.p99_ms,
		max_ms = EXCLUDED.max_ms,
		avg_ms = EXCLUDED.avg_ms,
		updated_at = NOW()`
	batch := &pgx.Batch{}
	for _, rollup := range rollups {
		spanSeconds := int(rollup.BucketSpan.Seconds())
		if spanSeconds <= 0 {
			spanSeconds = 60
		}
		batch.Queue(query,
			rollup.Name,
			rollup.Source,
			rollup.BucketStart,
			spanSeconds,
			rollup.Count,
			rollup.ErrorCount,
			floatPtrToNil(rollup.P50MS),
			floatPtrToNil(rollup.P90MS),
			floatPtrToNil(rollup.P95MS),
			floatPtrToNil(rollup.P99MS),
			floatPtrToNil(rollup.MaxMS),
			floatPtrToNil(rollup.AvgMS),
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rollups {
		if _, err := br.Exec(); err != nil {
			return translateError(err)
		}
	}
	return nil
}

// ListPerformanceRollups returns the most recent rollups for the given span.
func (r *Repository) ListPerformanceRollups(ctx context.Context, name, source string, bucketSpan time.Duration, limit int) ([]domain.PerformanceRollup, error) {
	if limit <= 0 {
		limit = 100
	}
	spanSeconds := int(bucketSpan.Seconds())
	if spanSeconds <= 0 {
		spanSeconds = 60
	}
	const query = `SELECT
		name,
		source,
		bucket_start,
		bucket_span_seconds,
		count,
		error_count,
		p50_ms,
		p90_ms,
		p95_ms,
		p99_ms,
		max_ms,
		avg_ms,
		updated_at
	FROM performance_rollups
	WHERE bucket_span_seconds = $1
		AND ($2 = '' OR name = $2)
		AND ($3 = '' OR source = $3)
	ORDER BY bucket_start DESC, name ASC
	LIMIT $4`
	rows, err := r.pool.Query(ctx, query, spanSeconds, strings.TrimSpace(name), strings.TrimSpace(source), limit)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	rollups := make([]domain.PerformanceRollup, 0)
	for rows.Next() {
		var (
			rollup                       domain.PerformanceRollup
			bucketSpanSeconds            int
			p50, p90, p95, p99, max, avg sql.NullFloat64
		)
		if err := rows.Scan(
			&rollup.Name,
			&rollup.Source,
			&rollup.BucketStart,
			&bucketSpanSeconds,
			&rollup.Count,
			&rollup.ErrorCount,
			&p50,
			&p90,
			&p95,
			&p99,
			&max,
			&avg,
			&rollup.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if bucketSpanSeconds > 0 {
			rollup.BucketSpan = time.Duration(bucketSpanSeconds) * time.Second
		}
		rollup.P50MS = nullFloatPtr(p50)
		rollup.P90MS = nullFloatPtr(p90)
		rollup.P95MS = nullFloatPtr(p95)
		rollup.P99MS = nullFloatPtr(p99)
		rollup.MaxMS = nullFloatPtr(max)
		rollup.AvgMS = nullFloatPtr(avg)
		rollups = append(rollups, rollup)
	}
	return rollups, rows.Err()
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}
