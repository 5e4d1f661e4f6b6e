package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/service/storage"
)

const (
	multipartSlack    = 1 << 20
	multipartMemory   = 8 << 20
	maxFileURLTTL     = 7 * 24 * time.Hour
	defaultFileURLTTL = time.Hour
)

func (r *Router) handleFiles(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		bucket := strings.TrimSpace(req.URL.Query().Get("bucket"))
		file, ok := r.receiveUpload(w, req, info, bucket)
		if !ok {
			return
		}
		if file.Bucket == domain.BucketAvatars {
			if _, err := r.svc.Profiles.SetAvatar(req.Context(), info.UserID, file.ObjectKey); err != nil {
				r.writeServiceError(w, req, err)
				return
			}
		}
		url, expires, err := r.svc.Storage.URL(req.Context(), file.ObjectKey, r.fileURLTTL(""))
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"file":       file,
			"url":        url,
			"expires_at": expires,
		})
	case http.MethodGet:
		key := strings.TrimSpace(req.URL.Query().Get("key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "key query parameter required")
			return
		}
		url, expires, err := r.svc.Storage.URL(req.Context(), key, r.fileURLTTL(req.URL.Query().Get("ttl")))
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url, "expires_at": expires})
	case http.MethodDelete:
		key := strings.TrimSpace(req.URL.Query().Get("key"))
		if key == "" {
			writeError(w, http.StatusBadRequest, "key query parameter required")
			return
		}
		if err := r.svc.Storage.Delete(req.Context(), info.actor(), key); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

// receiveUpload reads the multipart "file" field and stores it in bucket. The bucket may
// also come from a "bucket" form field when bucket is empty.
func (r *Router) receiveUpload(w http.ResponseWriter, req *http.Request, info authInfo, bucket string) (*domain.File, bool) {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartSlack)
	if err := req.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			r.writeServiceError(w, req, storage.ErrTooLarge)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "multipart form expected")
		return nil, false
	}
	defer func() {
		_ = req.MultipartForm.RemoveAll()
	}()
	if bucket == "" {
		bucket = strings.TrimSpace(req.FormValue("bucket"))
	}
	part, header, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field required")
		return nil, false
	}
	defer part.Close()

	file, err := r.svc.Storage.Upload(req.Context(), storage.UploadInput{
		OwnerID:     info.UserID,
		Bucket:      bucket,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        part,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return nil, false
	}
	r.recordUpload(file.Bucket, file.SizeBytes)
	return file, true
}

// handleFileDownload serves an object addressed by a signed link. The link is the credential.
func (r *Router) handleFileDownload(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w)
		return
	}
	parts := pathParts(req.URL.Path, "/files/")
	if len(parts) != 1 {
		r.notFound(w)
		return
	}
	file, body, err := r.svc.Storage.Open(req.Context(), parts[0])
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	defer body.Close()
	headers := w.Header()
	headers.Set("Content-Type", file.ContentType)
	headers.Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	headers.Set("Cache-Control", "private, max-age=300")
	headers.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if req.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		r.logger.Warn("file stream interrupted", "key", file.ObjectKey, "error", err)
	}
}

func (r *Router) fileURLTTL(raw string) time.Duration {
	ttl := r.fileTTL
	if ttl <= 0 {
		ttl = defaultFileURLTTL
	}
	if raw = strings.TrimSpace(raw); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			ttl = parsed
		} else if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}
	if ttl > maxFileURLTTL {
		ttl = maxFileURLTTL
	}
	return ttl
}
