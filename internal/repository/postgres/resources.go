package postgres

import (
	"context"
	"fmt"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

const resourceColumns = `id, name, type, status, location, serial_number, description, assigned_to,
	image_path, purchase_date, value_cents, created_by, created_at, updated_at`

func scanResource(row rowScanner) (domain.Resource, error) {
	var (
		res                                    domain.Resource
		location, serial, description, imgPath *string
	)
	if err := row.Scan(
		&res.ID,
		&res.Name,
		&res.Type,
		&res.Status,
		&location,
		&serial,
		&description,
		&res.AssignedTo,
		&imgPath,
		&res.PurchaseDate,
		&res.ValueCents,
		&res.CreatedBy,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		return domain.Resource{}, err
	}
	res.Location = derefString(location)
	res.SerialNumber = derefString(serial)
	res.Description = derefString(description)
	res.ImagePath = derefString(imgPath)
	return res, nil
}

// CreateResource inserts a resource.
func (r *Repository) CreateResource(ctx context.Context, resource *domain.Resource) error {
	if resource == nil {
		return fmt.Errorf("resource required")
	}
	const query = `INSERT INTO resources (
		id, name, type, status, location, serial_number, description, assigned_to,
		image_path, purchase_date, value_cents, created_by, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		resource.ID,
		resource.Name,
		resource.Type,
		resource.Status,
		emptyToNil(resource.Location),
		emptyToNil(resource.SerialNumber),
		emptyToNil(resource.Description),
		stringPtrToNil(resource.AssignedTo),
		emptyToNil(resource.ImagePath),
		timePtrToNil(resource.PurchaseDate),
		int64PtrToNil(resource.ValueCents),
		stringPtrToNil(resource.CreatedBy),
	).Scan(&resource.CreatedAt, &resource.UpdatedAt)
	return translateError(err)
}

// GetResource returns a resource by id.
func (r *Repository) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = $1`, id)
	res, err := scanResource(row)
	if err != nil {
		return nil, translateError(err)
	}
	return &res, nil
}

// ListResources returns resources matching filter, newest first.
func (r *Repository) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]domain.Resource, error) {
	const query = `SELECT ` + resourceColumns + ` FROM resources
		WHERE ($1 = '' OR type = $1)
			AND ($2 = '' OR status = $2)
			AND ($3 = '' OR assigned_to::text = $3)
			AND ($4 = '' OR name ILIKE '%' || $4 || '%' ESCAPE '\'
				OR serial_number ILIKE '%' || $4 || '%' ESCAPE '\'
				OR location ILIKE '%' || $4 || '%' ESCAPE '\')
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`
	rows, err := r.pool.Query(ctx, query,
		filter.Type,
		filter.Status,
		filter.AssignedTo,
		filter.Search,
		clampLimit(filter.Limit),
		clampOffset(filter.Offset),
	)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	resources := make([]domain.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// UpdateResource writes every mutable column of resource.
func (r *Repository) UpdateResource(ctx context.Context, resource *domain.Resource) error {
	if resource == nil {
		return fmt.Errorf("resource required")
	}
	const query = `UPDATE resources SET
		name = $2,
		type = $3,
		status = $4,
		location = $5,
		serial_number = $6,
		description = $7,
		assigned_to = $8,
		image_path = $9,
		purchase_date = $10,
		value_cents = $11,
		updated_at = NOW()
	WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		resource.ID,
		resource.Name,
		resource.Type,
		resource.Status,
		emptyToNil(resource.Location),
		emptyToNil(resource.SerialNumber),
		emptyToNil(resource.Description),
		stringPtrToNil(resource.AssignedTo),
		emptyToNil(resource.ImagePath),
		timePtrToNil(resource.PurchaseDate),
		int64PtrToNil(resource.ValueCents),
	).Scan(&resource.UpdatedAt)
	return translateError(err)
}

// DeleteResource removes a resource.
func (r *Repository) DeleteResource(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
