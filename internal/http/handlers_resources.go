package httpx

import (
	"errors"
	"net/http"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/service/storage"
)

func (r *Router) handleProfiles(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	q := req.URL.Query()
	limit, offset := pagination(req)
	profiles, err := r.svc.Profiles.List(req.Context(), domain.ProfileFilter{
		Role:   q.Get("role"),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (r *Router) handleProfileSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	parts := pathParts(req.URL.Path, "/profiles/")
	switch {
	case len(parts) == 1:
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		p, err := r.svc.Profiles.Get(req.Context(), parts[0])
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case len(parts) == 2 && parts[1] == "role":
		if req.Method != http.MethodPut {
			r.methodNotAllowed(w)
			return
		}
		var payload struct {
			Role string `json:"role"`
		}
		if !decodeJSON(w, req, &payload) {
			return
		}
		p, err := r.svc.Profiles.SetRole(req.Context(), info.actor(), parts[0], payload.Role)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleResources(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		q := req.URL.Query()
		limit, offset := pagination(req)
		resources, err := r.svc.Resources.List(req.Context(), domain.ResourceFilter{
			Type:       q.Get("type"),
			Status:     q.Get("status"),
			AssignedTo: q.Get("assigned_to"),
			Search:     q.Get("search"),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, resources)
	case http.MethodPost:
		var payload resource.CreateInput
		if !decodeJSON(w, req, &payload) {
			return
		}
		created, err := r.svc.Resources.Create(req.Context(), info.actor(), payload)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleResourceSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	parts := pathParts(req.URL.Path, "/resources/")
	if len(parts) == 0 || len(parts) > 2 {
		r.notFound(w)
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		switch parts[1] {
		case "assignee":
			r.handleResourceAssignee(w, req, info, id)
		case "image":
			r.handleResourceImage(w, req, info, id)
		default:
			r.notFound(w)
		}
		return
	}
	switch req.Method {
	case http.MethodGet:
		res, err := r.svc.Resources.Get(req.Context(), id)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPatch:
		var payload resource.UpdateInput
		if !decodeJSON(w, req, &payload) {
			return
		}
		res, err := r.svc.Resources.Update(req.Context(), info.actor(), id, payload)
		if err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodDelete:
		if err := r.svc.Resources.Delete(req.Context(), info.actor(), id); err != nil {
			r.writeServiceError(w, req, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleResourceAssignee(w http.ResponseWriter, req *http.Request, info authInfo, id string) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ProfileID *string `json:"profile_id"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	res, err := r.svc.Resources.Assign(req.Context(), info.actor(), id, payload.ProfileID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleResourceImage stores an uploaded image and attaches it to the resource.
func (r *Router) handleResourceImage(w http.ResponseWriter, req *http.Request, info authInfo, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !domain.CanManageResources(info.Role) {
		r.writeServiceError(w, req, domain.ErrForbidden)
		return
	}
	if _, err := r.svc.Resources.Get(req.Context(), id); err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	file, ok := r.receiveUpload(w, req, info, domain.BucketResourceImages)
	if !ok {
		return
	}
	res, err := r.svc.Resources.SetImage(req.Context(), info.actor(), id, file.ObjectKey)
	if err != nil {
		if delErr := r.svc.Storage.Delete(req.Context(), info.actor(), file.ObjectKey); delErr != nil && !errors.Is(delErr, storage.ErrObjectNotFound) {
			r.logger.Warn("uploaded image cleanup failed", "key", file.ObjectKey, "error", delErr)
		}
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
