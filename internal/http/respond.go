package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/repository"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/auth"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/service/profile"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/service/storage"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
	"github.com/wayneindustries/resourcemgmt/pkg/crypto"
)

const maxJSONBody = 1 << 20

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps a service error to its status and user-facing message.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	var fields validate.FieldErrors
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		fields = validate.FieldErrors{"password": fmt.Sprintf("must be at most %d bytes", validate.MaxPasswordBytes)}
	}
	if fields != nil || errors.As(err, &fields) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
		return
	}
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
	}
	writeError(w, status, msg)
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auth.ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrInvalidResetToken):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "you do not have permission to perform this action"
	case errors.Is(err, profile.ErrSelfDemotion),
		errors.Is(err, resource.ErrDuplicateSerial),
		errors.Is(err, alert.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, resource.ErrUnknownAssignee),
		errors.Is(err, changefeed.ErrUnknownTable),
		errors.Is(err, storage.ErrUnknownBucket),
		errors.Is(err, storage.ErrInvalidKey):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, storage.ErrInvalidToken):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, storage.ErrObjectNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflicts with an existing record"
	case errors.Is(err, repository.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid request"
	default:
		return http.StatusInternalServerError, "something went wrong, please try again"
	}
}

// decodeJSON reads a JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, req.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func pagination(req *http.Request) (limit, offset int) {
	q := req.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
