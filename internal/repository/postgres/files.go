package postgres

import (
	"context"
	"fmt"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
)

// CreateFile records uploaded object metadata.
func (r *Repository) CreateFile(ctx context.Context, file *domain.File) error {
	if file == nil {
		return fmt.Errorf("file required")
	}
	const query = `INSERT INTO files (id, owner_id, bucket, object_key, content_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		file.ID,
		stringPtrToNil(file.OwnerID),
		file.Bucket,
		file.ObjectKey,
		file.ContentType,
		file.SizeBytes,
	).Scan(&file.CreatedAt)
	return translateError(err)
}

// GetFileByKey returns metadata for an object key.
func (r *Repository) GetFileByKey(ctx context.Context, objectKey string) (*domain.File, error) {
	const query = `SELECT id, owner_id, bucket, object_key, content_type, size_bytes, created_at FROM files WHERE object_key = $1`
	var f domain.File
	if err := r.pool.QueryRow(ctx, query, objectKey).Scan(&f.ID, &f.OwnerID, &f.Bucket, &f.ObjectKey, &f.ContentType, &f.SizeBytes, &f.CreatedAt); err != nil {
		return nil, translateError(err)
	}
	return &f, nil
}

// DeleteFile removes metadata for an object key.
func (r *Repository) DeleteFile(ctx context.Context, objectKey string) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE object_key = $1`, objectKey)
	if err != nil {
		return translateError(err)
	}
	if cmdTag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
