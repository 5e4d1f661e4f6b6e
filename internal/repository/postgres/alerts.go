package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

const alertColumns = `id, title, message, severity, status, resource_id, created_by, acknowledged_by,
	acknowledged_at, resolved_at, created_at, updated_at`

func scanAlert(row rowScanner) (domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Message,
		&a.Severity,
		&a.Status,
		&a.ResourceID,
		&a.CreatedBy,
		&a.AcknowledgedBy,
		&a.AcknowledgedAt,
		&a.ResolvedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

// CreateAlert inserts an alert.
func (r *Repository) CreateAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert required")
	}
	const query = `INSERT INTO alerts (id, title, message, severity, status, resource_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		alert.ID,
		alert.Title,
		alert.Message,
		alert.Severity,
		alert.Status,
		stringPtrToNil(alert.ResourceID),
		stringPtrToNil(alert.CreatedBy),
	).Scan(&alert.CreatedAt, &alert.UpdatedAt)
	return translateError(err)
}

// GetAlert returns an alert by id.
func (r *Repository) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	a, err := scanAlert(r.pool.QueryRow(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

// ListAlerts returns alerts matching filter, newest first.
func (r *Repository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	const query = `SELECT ` + alertColumns + ` FROM alerts
		WHERE ($1 = '' OR status = $1)
			AND ($2 = '' OR severity = $2)
			AND ($3 = '' OR resource_id::text = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, query, filter.Status, filter.Severity, filter.ResourceID, clampLimit(filter.Limit), clampOffset(filter.Offset))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// UpdateAlert stores the lifecycle columns of an alert still in fromStatus.
func (r *Repository) UpdateAlert(ctx context.Context, alert *domain.Alert, fromStatus string) error {
	if alert == nil {
		return fmt.Errorf("alert required")
	}
	const query = `UPDATE alerts SET
		status = $2,
		acknowledged_by = $3,
		acknowledged_at = $4,
		resolved_at = $5,
		updated_at = NOW()
	WHERE id = $1 AND status = $6 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		alert.ID,
		alert.Status,
		stringPtrToNil(alert.AcknowledgedBy),
		timePtrToNil(alert.AcknowledgedAt),
		timePtrToNil(alert.ResolvedAt),
		fromStatus,
	).Scan(&alert.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM alerts WHERE id = $1)`, alert.ID).Scan(&exists); err != nil {
			return translateError(err)
		}
		if exists {
			return repository.ErrStale
		}
		return repository.ErrNotFound
	}
	return translateError(err)
}

// DeleteAlert removes an alert.
func (r *Repository) DeleteAlert(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
