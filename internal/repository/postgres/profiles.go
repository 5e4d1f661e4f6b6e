package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

const profileColumns = `id, email, full_name, role, department, avatar_path, is_demo, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var (
		p                  domain.Profile
		department, avatar *string
	)
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Role, &department, &avatar, &p.IsDemo, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Profile{}, err
	}
	p.Department = derefString(department)
	p.AvatarPath = derefString(avatar)
	return p, nil
}

// GetProfile returns a profile by id.
func (r *Repository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

// ListProfiles returns profiles matching filter ordered by name.
func (r *Repository) ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	const query = `SELECT ` + profileColumns + ` FROM profiles
		WHERE ($1 = '' OR role = $1)
			AND ($2 = '' OR full_name ILIKE '%' || $2 || '%' ESCAPE '\' OR email ILIKE '%' || $2 || '%' ESCAPE '\')
		ORDER BY full_name ASC, created_at ASC
		LIMIT $3 OFFSET $4`
	rows, err := r.pool.Query(ctx, query, strings.TrimSpace(filter.Role), filter.Search, clampLimit(filter.Limit), clampOffset(filter.Offset))
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	profiles := make([]domain.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile stores editable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, profile *domain.Profile) error {
	if profile == nil {
		return fmt.Errorf("profile required")
	}
	const query = `UPDATE profiles SET full_name = $2, department = $3, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	if err := r.pool.QueryRow(ctx, query, profile.ID, profile.FullName, emptyToNil(profile.Department)).Scan(&profile.UpdatedAt); err != nil {
		return translateError(err)
	}
	return nil
}

// SetProfileRole changes a profile's role.
func (r *Repository) SetProfileRole(ctx context.Context, id, role string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx, `UPDATE profiles SET role = $2, updated_at = $3 WHERE id = $1`, id, role, at.UTC())
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetProfileAvatar stores the avatar object key.
func (r *Repository) SetProfileAvatar(ctx context.Context, id, path string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx, `UPDATE profiles SET avatar_path = $2, updated_at = $3 WHERE id = $1`, id, emptyToNil(path), at.UTC())
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetProfileDemo flags a profile as a demo account.
func (r *Repository) SetProfileDemo(ctx context.Context, id string, demo bool) error {
	cmdTag, err := r.pool.Exec(ctx, `UPDATE profiles SET is_demo = $2, updated_at = NOW() WHERE id = $1`, id, demo)
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
