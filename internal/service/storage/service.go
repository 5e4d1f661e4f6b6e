// Package storage stores uploaded files and issues expiring download links for them.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
	"github.com/wayneindustries/resourcemgmt/pkg/crypto"
)

var (
	ErrUnknownBucket   = errors.New("unknown storage bucket")
	ErrUnsupportedType = errors.New("content type not allowed for bucket")
	ErrTooLarge        = errors.New("file exceeds maximum upload size")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrInvalidToken    = errors.New("invalid or expired file link")
	ErrObjectNotFound  = errors.New("object not found")
)

var imageTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

var allowedTypes = map[string][]string{
	domain.BucketAvatars:        imageTypes,
	domain.BucketResourceImages: imageTypes,
	domain.BucketDocuments:      append([]string{"application/pdf", "text/plain", "text/csv"}, imageTypes...),
}

// Config holds storage limits and link settings.
type Config struct {
	Secret        string
	PublicBaseURL string
	MaxBytes      int64
	DefaultTTL    time.Duration
}

// Service stores files and resolves signed links.
type Service struct {
	repo   repository.FileRepository
	blobs  BlobStore
	logger *slog.Logger
	cfg    Config
	links  crypto.Sealer
	now    func() time.Time
}

// New constructs a storage service.
func New(repo repository.FileRepository, blobs BlobStore, logger *slog.Logger, cfg Config) Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Hour
	}
	return Service{repo: repo, blobs: blobs, logger: logger, cfg: cfg, links: crypto.NewSealer(cfg.Secret, "file-link"), now: time.Now}
}

// UploadInput describes an object to store.
type UploadInput struct {
	OwnerID     string
	Bucket      string
	Filename    string
	ContentType string
	Body        io.Reader
}

// Upload validates the declared and sniffed content type, writes the object and records it.
func (s Service) Upload(ctx context.Context, input UploadInput) (*domain.File, error) {
	allowed, ok := allowedTypes[input.Bucket]
	if !ok {
		return nil, ErrUnknownBucket
	}
	if input.Body == nil {
		return nil, validate.FieldErrors{"file": "is required"}
	}
	body := bufio.NewReaderSize(input.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, validate.FieldErrors{"file": "is empty"}
	}
	contentType, err := resolveContentType(input.ContentType, head)
	if err != nil {
		return nil, err
	}
	if !contains(allowed, contentType) {
		return nil, ErrUnsupportedType
	}

	id := uuid.NewString()
	owner := input.OwnerID
	if owner == "" {
		owner = "system"
	}
	key := fmt.Sprintf("%s/%s/%s-%s", input.Bucket, owner, id, validate.Filename(input.Filename))
	size, err := s.blobs.Put(ctx, key, body, s.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	file := &domain.File{
		ID:          id,
		Bucket:      input.Bucket,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   size,
	}
	if input.OwnerID != "" {
		ownerID := input.OwnerID
		file.OwnerID = &ownerID
	}
	if err := s.repo.CreateFile(ctx, file); err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.logger.Warn("orphaned object cleanup failed", "key", key, "error", delErr)
		}
		return nil, err
	}
	s.logger.Info("file uploaded", "key", key, "bytes", size, "content_type", contentType)
	return file, nil
}

type linkClaims struct {
	Key     string `json:"k"`
	Expires int64  `json:"e"`
}

// URL returns a download link for objectKey valid for ttl (the configured default when ttl <= 0).
func (s Service) URL(ctx context.Context, objectKey string, ttl time.Duration) (string, time.Time, error) {
	if _, err := s.repo.GetFileByKey(ctx, objectKey); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	expires := s.now().Add(ttl).UTC()
	payload, err := json.Marshal(linkClaims{Key: objectKey, Expires: expires.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	token, err := s.links.Seal(payload)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("seal link: %w", err)
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/files/" + token, expires, nil
}

// Open resolves a link token to the file metadata and its content.
func (s Service) Open(ctx context.Context, token string) (*domain.File, io.ReadCloser, error) {
	key, err := s.keyFromToken(token)
	if err != nil {
		return nil, nil, err
	}
	file, err := s.repo.GetFileByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return file, rc, nil
}

func (s Service) keyFromToken(token string) (string, error) {
	plain, err := s.links.Open(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	var claims linkClaims
	if err := json.Unmarshal(plain, &claims); err != nil || claims.Key == "" {
		return "", ErrInvalidToken
	}
	if s.now().Unix() >= claims.Expires {
		return "", ErrInvalidToken
	}
	return claims.Key, nil
}

// Delete removes an object. Only its owner or an admin may delete it.
func (s Service) Delete(ctx context.Context, actor domain.Actor, objectKey string) error {
	file, err := s.repo.GetFileByKey(ctx, objectKey)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && (file.OwnerID == nil || *file.OwnerID != actor.UserID) {
		return domain.ErrForbidden
	}
	if err := s.repo.DeleteFile(ctx, objectKey); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, objectKey); err != nil {
		s.logger.Warn("object delete failed", "key", objectKey, "error", err)
	}
	return nil
}

func resolveContentType(declared string, head []byte) (string, error) {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	if strings.TrimSpace(declared) == "" {
		return sniffed, nil
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", ErrUnsupportedType
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == "application/octet-stream" {
		return sniffed, nil
	}
	// Images and PDFs must look like what they claim to be.
	if (strings.HasPrefix(mediaType, "image/") || mediaType == "application/pdf") && sniffed != mediaType {
		return "", ErrUnsupportedType
	}
	return mediaType, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
