package postgres

import (
	"context"
	"fmt"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

// GetSettings returns stored settings for a user.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error) {
	const query = `SELECT user_id, theme, language, email_notifications, push_notifications, alert_threshold, updated_at
		FROM user_settings WHERE user_id = $1`
	var s domain.UserSettings
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&s.Theme,
		&s.Language,
		&s.EmailNotifications,
		&s.PushNotifications,
		&s.AlertThreshold,
		&s.UpdatedAt,
	); err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// UpsertSettings creates or replaces settings for a user.
func (r *Repository) UpsertSettings(ctx context.Context, settings *domain.UserSettings) error {
	if settings == nil {
		return fmt.Errorf("settings required")
	}
	const query = `INSERT INTO user_settings (user_id, theme, language, email_notifications, push_notifications, alert_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			theme = EXCLUDED.theme,
			language = EXCLUDED.language,
			email_notifications = EXCLUDED.email_notifications,
			push_notifications = EXCLUDED.push_notifications,
			alert_threshold = EXCLUDED.alert_threshold,
			updated_at = NOW()
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		settings.UserID,
		settings.Theme,
		settings.Language,
		settings.EmailNotifications,
		settings.PushNotifications,
		settings.AlertThreshold,
	).Scan(&settings.UpdatedAt)
	return translateError(err)
}
