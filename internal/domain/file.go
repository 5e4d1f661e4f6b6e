package domain

import "time"

// Storage buckets.
const (
	BucketAvatars        = "avatars"
	BucketResourceImages = "resource-images"
	BucketDocuments      = "documents"
)

// File is metadata for an uploaded object.
type File struct {
	ID          string    `json:"id"`
	OwnerID     *string   `json:"owner_id"`
	Bucket      string    `json:"bucket"`
	ObjectKey   string    `json:"object_key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
