package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/settings"
	"github.com/wayneindustries/resourcemgmt/internal/validate"
)

func (r *Router) handleAlerts(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		limit, offset := pagination(req)
		alerts, err := r.svc.Alerts.List(req.Context(), domain.AlertFilter{
			Status:     q.Get("status"),
			Severity:   q.Get("severity"),
			ResourceID: q.Get("resource_id"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, alerts)
	case http.MethodPost:
		var payload alert.CreateInput
		if !decodeJSON(w, req, &payload) {
			return
		}
		created, err := r.svc.Alerts.Create(req.Context(), info.actor(), payload)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleAlertSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	parts := pathParts(req.URL.Path, "/alerts/")
	switch {
	case len(parts) == 1:
		switch req.Method {
		case http.MethodGet:
			a, err := r.svc.Alerts.Get(req.Context(), parts[0])
			if err != nil {
				r.writeServiceError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, a)
		case http.MethodDelete:
			if err := r.svc.Alerts.Delete(req.Context(), info.actor(), parts[0]); err != nil {
				r.writeServiceError(w, req, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		default:
			r.methodNotAllowed(w)
		}
	case len(parts) == 2 && (parts[1] == "acknowledge" || parts[1] == "resolve"):
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		var (
			a   *domain.Alert
			err error
		)
		if parts[1] == "acknowledge" {
			a, err = r.svc.Alerts.Acknowledge(req.Context(), info.actor(), parts[0])
		} else {
			a, err = r.svc.Alerts.Resolve(req.Context(), info.actor(), parts[0])
		}
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleAccessLogs(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		filter, err := accessLogFilter(req)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		viewer := domain.Profile{ID: info.UserID, Role: info.Role}
		entries, err := r.svc.AccessLogs.List(req.Context(), viewer, filter)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		// Client-side events such as viewing a resource or exporting a report.
		var payload struct {
			Action     string          `json:"action" validate:"required,max=64"`
			ResourceID *string         `json:"resource_id" validate:"omitempty,uuid"`
			Details    json.RawMessage `json:"details"`
		}
		if !decodeJSON(w, req, &payload) {
			return
		}
		if err := validate.Struct(payload); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		if len(payload.Details) > 0 && !json.Valid(payload.Details) {
			payload.Details = nil
		}
		r.svc.AccessLogs.Record(req.Context(), domain.AccessLog{
			UserID:     &info.UserID,
			ResourceID: payload.ResourceID,
			Action:     payload.Action,
			Outcome:    domain.OutcomeGranted,
			Details:    payload.Details,
		})
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
	default:
		r.methodNotAllowed(w)
	}
}

func accessLogFilter(req *http.Request) (domain.AccessLogFilter, error) {
	q := req.URL.Query()
	limit, offset := pagination(req)
	filter := domain.AccessLogFilter{
		UserID:     q.Get("user_id"),
		ResourceID: q.Get("resource_id"),
		Action:     q.Get("action"),
		Outcome:    q.Get("outcome"),
		Limit:      limit,
		Offset:     offset,
	}
	for name, target := range map[string]**time.Time{"since": &filter.Since, "until": &filter.Until} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, validate.FieldErrors{name: "must be an RFC 3339 timestamp"}
		}
		*target = &t
	}
	return filter, nil
}

func (r *Router) handleSettings(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		prefs, err := r.svc.Settings.Get(req.Context(), info.UserID)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodPut, http.MethodPatch:
		var patch settings.Patch
		if !decodeJSON(w, req, &patch) {
			return
		}
		prefs, err := r.svc.Settings.Update(req.Context(), info.UserID, patch)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	default:
		r.methodNotAllowed(w)
	}
}
