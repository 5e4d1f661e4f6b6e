package repository

import (
	"context"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
)

// UserRepository persists accounts and credentials.
type UserRepository interface {
	// CreateAccount stores the user, its profile and default settings atomically.
	CreateAccount(ctx context.Context, user *domain.User, profile *domain.Profile, settings *domain.UserSettings) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID string, hash []byte) error
}

// SessionRepository tracks issued token sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	RevokeUserSessions(ctx context.Context, userID string, at time.Time) error
}

// PasswordResetRepository stores one-time reset tokens.
type PasswordResetRepository interface {
	CreatePasswordReset(ctx context.Context, reset *domain.PasswordReset) error
	GetPasswordReset(ctx context.Context, tokenHash string) (*domain.PasswordReset, error)
	// CompletePasswordReset marks the token used, stores the new hash and revokes every
	// session of the owner in one transaction.
	CompletePasswordReset(ctx context.Context, tokenHash string, passwordHash []byte, at time.Time) error
}

// ProfileRepository manages profiles.
type ProfileRepository interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	SetProfileRole(ctx context.Context, id, role string, at time.Time) error
	SetProfileAvatar(ctx context.Context, id, path string, at time.Time) error
	SetProfileDemo(ctx context.Context, id string, demo bool) error
}

// ResourceRepository persists tracked resources.
type ResourceRepository interface {
	CreateResource(ctx context.Context, resource *domain.Resource) error
	GetResource(ctx context.Context, id string) (*domain.Resource, error)
	ListResources(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error)
	UpdateResource(ctx context.Context, resource *domain.Resource) error
	DeleteResource(ctx context.Context, id string) error
}

// AccessLogRepository handles access log persistence and retrieval.
type AccessLogRepository interface {
	InsertAccessLog(ctx context.Context, entry *domain.AccessLog) error
	ListAccessLogs(ctx context.Context, filter domain.AccessLogFilter) ([]domain.AccessLog, error)
}

// AlertRepository persists alerts.
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *domain.Alert) error
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
	// UpdateAlert applies only while the stored status still equals fromStatus and returns
	// ErrStale otherwise.
	UpdateAlert(ctx context.Context, alert *domain.Alert, fromStatus string) error
	DeleteAlert(ctx context.Context, id string) error
}

// SettingsRepository stores user preferences.
type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string) (*domain.UserSettings, error)
	UpsertSettings(ctx context.Context, settings *domain.UserSettings) error
}

// FileRepository stores uploaded object metadata.
type FileRepository interface {
	CreateFile(ctx context.Context, file *domain.File) error
	GetFileByKey(ctx context.Context, objectKey string) (*domain.File, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

// PerformanceRepository persists performance rollups.
type PerformanceRepository interface {
	UpsertPerformanceRollups(ctx context.Context, rollups []domain.PerformanceRollup) error
	ListPerformanceRollups(ctx context.Context, name, source string, bucketSpan time.Duration, limit int) ([]domain.PerformanceRollup, error)
}

// StatsRepository answers aggregate queries for the dashboard.
type StatsRepository interface {
	CountResources(ctx context.Context) (byType map[string]int, byStatus map[string]int, err error)
	CountOpenAlertsBySeverity(ctx context.Context) (map[string]int, error)
	CountProfiles(ctx context.Context) (int, error)
	CountAccessLogsSince(ctx context.Context, since time.Time) (int, error)
}

// ChangeNotifier broadcasts change payloads to every listener on a channel.
type ChangeNotifier interface {
	Notify(ctx context.Context, channel string, payload []byte) error
	Listen(ctx context.Context, channel string, handle func(payload []byte)) error
}
