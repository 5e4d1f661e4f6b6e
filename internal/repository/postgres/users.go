package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

// CreateAccount inserts a user together with its profile and settings.
func (r *Repository) CreateAccount(ctx context.Context, user *domain.User, profile *domain.Profile, settings *domain.UserSettings) error {
	if user == nil || profile == nil {
		return fmt.Errorf("user and profile required")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const userInsert = `INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := tx.Exec(ctx, userInsert, user.ID, user.Email, user.PasswordHash, user.CreatedAt); err != nil {
		return translateError(err)
	}

	const profileInsert = `INSERT INTO profiles (id, email, full_name, role, department, avatar_path, is_demo, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, profileInsert,
		profile.ID,
		profile.Email,
		profile.FullName,
		profile.Role,
		emptyToNil(profile.Department),
		emptyToNil(profile.AvatarPath),
		profile.IsDemo,
		profile.CreatedAt,
	).Scan(&profile.UpdatedAt); err != nil {
		return translateError(err)
	}

	if settings != nil {
		const settingsInsert = `INSERT INTO user_settings (user_id, theme, language, email_notifications, push_notifications, alert_threshold, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			RETURNING updated_at`
		if err := tx.QueryRow(ctx, settingsInsert,
			settings.UserID,
			settings.Theme,
			settings.Language,
			settings.EmailNotifications,
			settings.PushNotifications,
			settings.AlertThreshold,
		).Scan(&settings.UpdatedAt); err != nil {
			return translateError(err)
		}
	}
	return tx.Commit(ctx)
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
	var u domain.User
	if err := r.pool.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	var u domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return &u, nil
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, userID string, hash []byte) error {
	cmdTag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, session *domain.Session) error {
	const query = `INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	return translateError(err)
}

// GetSession loads a session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const query = `SELECT id, user_id, created_at, expires_at, revoked_at FROM sessions WHERE id = $1`
	var s domain.Session
	if err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt); err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// RevokeSession marks a session revoked. Revoking twice keeps the first timestamp.
func (r *Repository) RevokeSession(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`
	cmdTag, err := r.pool.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// RevokeUserSessions revokes every active session of a user.
func (r *Repository) RevokeUserSessions(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, query, userID, at.UTC())
	return translateError(err)
}

// CreatePasswordReset stores a reset token hash.
func (r *Repository) CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error {
	const query = `INSERT INTO password_resets (token_hash, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, reset.TokenHash, reset.UserID, reset.ExpiresAt, reset.CreatedAt)
	return translateError(err)
}

// GetPasswordReset loads a reset token by hash.
func (r *Repository) GetPasswordReset(ctx context.Context, tokenHash string) (*domain.PasswordReset, error) {
	const query = `SELECT token_hash, user_id, expires_at, used_at, created_at FROM password_resets WHERE token_hash = $1`
	var pr domain.PasswordReset
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&pr.TokenHash, &pr.UserID, &pr.ExpiresAt, &pr.UsedAt, &pr.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return &pr, nil
}

// CompletePasswordReset consumes the token, updates the password and revokes sessions.
func (r *Repository) CompletePasswordReset(ctx context.Context, tokenHash string, passwordHash []byte, at time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var userID string
	const consume = `UPDATE password_resets SET used_at = $2
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING user_id`
	if err := tx.QueryRow(ctx, consume, tokenHash, at.UTC()).Scan(&userID); err != nil {
		return translateError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, passwordHash); err != nil {
		return translateError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`, userID, at.UTC()); err != nil {
		return translateError(err)
	}
	return tx.Commit(ctx)
}
