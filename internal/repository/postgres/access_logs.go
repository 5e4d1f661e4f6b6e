package postgres

import (
	"context"
	"fmt"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

// InsertAccessLog persists an access log entry and fills its id and timestamp.
func (r *Repository) InsertAccessLog(ctx context.Context, entry *domain.AccessLog) error {
	if entry == nil {
		return fmt.Errorf("access log required")
	}
	const query = `INSERT INTO access_logs (user_id, resource_id, action, outcome, ip_address, user_agent, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8::timestamptz, NOW()))
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		stringPtrToNil(entry.UserID),
		stringPtrToNil(entry.ResourceID),
		entry.Action,
		entry.Outcome,
		emptyToNil(entry.IPAddress),
		emptyToNil(entry.UserAgent),
		bytesToNil(entry.Details),
		timePtrToNil(&entry.CreatedAt),
	).Scan(&entry.ID, &entry.CreatedAt)
	return translateError(err)
}

// ListAccessLogs returns entries matching filter, newest first.
func (r *Repository) ListAccessLogs(ctx context.Context, filter domain.AccessLogFilter) ([]domain.AccessLog, error) {
	const query = `SELECT id, user_id, resource_id, action, outcome, ip_address, user_agent, details, created_at
		FROM access_logs
		WHERE ($1 = '' OR user_id::text = $1)
			AND ($2 = '' OR resource_id::text = $2)
			AND ($3 = '' OR action = $3)
			AND ($4 = '' OR outcome = $4)
			AND ($5::timestamptz IS NULL OR created_at >= $5)
			AND ($6::timestamptz IS NULL OR created_at < $6)
		ORDER BY created_at DESC, id DESC
		LIMIT $7 OFFSET $8`
	rows, err := r.pool.Query(ctx, query,
		filter.UserID,
		filter.ResourceID,
		filter.Action,
		filter.Outcome,
		timePtrToNil(filter.Since),
		timePtrToNil(filter.Until),
		clampLimit(filter.Limit),
		clampOffset(filter.Offset),
	)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	entries := make([]domain.AccessLog, 0)
	for rows.Next() {
		var (
			entry         domain.AccessLog
			ip, userAgent *string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ResourceID, &entry.Action, &entry.Outcome, &ip, &userAgent, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.IPAddress = derefString(ip)
		entry.UserAgent = derefString(userAgent)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
