package postgres

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository          = (*Repository)(nil)
	_ repository.SessionRepository       = (*Repository)(nil)
	_ repository.PasswordResetRepository = (*Repository)(nil)
	_ repository.ProfileRepository       = (*Repository)(nil)
	_ repository.ResourceRepository      = (*Repository)(nil)
	_ repository.AccessLogRepository     = (*Repository)(nil)
	_ repository.AlertRepository         = (*Repository)(nil)
	_ repository.SettingsRepository      = (*Repository)(nil)
	_ repository.FileRepository          = (*Repository)(nil)
	_ repository.PerformanceRepository   = (*Repository)(nil)
	_ repository.StatsRepository         = (*Repository)(nil)
	_ repository.ChangeNotifier          = (*Repository)(nil)
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// translateError maps driver errors onto repository sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return repository.ErrConflict
		case "23503":
			return repository.ErrNotFound
		case "23514", "22P02", "22001":
			return repository.ErrInvalidArgument
		}
	}
	return err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func emptyToNil(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func stringPtrToNil(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}

func int64PtrToNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtrToNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func timePtrToNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func bytesToNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
