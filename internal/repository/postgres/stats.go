package postgres

import (
	"context"
	"time"
)

// CountResources returns resource counts grouped by type and by status.
func (r *Repository) CountResources(ctx context.Context) (map[string]int, map[string]int, error) {
	const query = `SELECT type, status, COUNT(1) FROM resources GROUP BY type, status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, nil, translateError(err)
	}
	defer rows.Close()

	byType := make(map[string]int)
	byStatus := make(map[string]int)
	for rows.Next() {
		var (
			resourceType, status string
			count                int
		)
		if err := rows.Scan(&resourceType, &status, &count); err != nil {
			return nil, nil, err
		}
		byType[resourceType] += count
		byStatus[status] += count
	}
	return byType, byStatus, rows.Err()
}

// CountOpenAlertsBySeverity counts unresolved alerts per severity.
func (r *Repository) CountOpenAlertsBySeverity(ctx context.Context) (map[string]int, error) {
	const query = `SELECT severity, COUNT(1) FROM alerts WHERE status <> 'resolved' GROUP BY severity`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			severity string
			count    int
		)
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		counts[severity] = count
	}
	return counts, rows.Err()
}

// CountProfiles counts all profiles.
func (r *Repository) CountProfiles(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM profiles`).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

// CountAccessLogsSince counts access log entries created at or after since.
func (r *Repository) CountAccessLogsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(1) FROM access_logs WHERE created_at >= $1`, since.UTC()).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}
