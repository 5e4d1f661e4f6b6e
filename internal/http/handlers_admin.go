package httpx

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/wayneindustries/resourcemgmt/internal/service/demo"
	"github.com/wayneindustries/resourcemgmt/internal/service/performance"
)

func (r *Router) handleDashboardStats(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	summary, err := r.svc.Stats.Summary(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleDemoAccounts(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuth(w, req)
	if !ok {
		return
	}
	var payload demo.Input
	if !decodeJSON(w, req, &payload) {
		return
	}
	result, err := r.svc.Demo.Provision(req.Context(), info.actor(), payload)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	r.logger.Info("demo accounts provisioned", "user_id", info.UserID, "accounts", len(result.Accounts), "resources", result.SeededResources)
	writeJSON(w, http.StatusOK, result)
}

// handlePerformance ingests timing samples measured by clients.
func (r *Router) handlePerformance(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Samples []performance.ClientSample `json:"samples"`
	}
	if !decodeJSON(w, req, &payload) {
		return
	}
	accepted, err := r.svc.Performance.Ingest(payload.Samples)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

func (r *Router) handlePerformanceRollups(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	q := req.URL.Query()
	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	rollups, err := r.svc.Performance.ListRollups(req.Context(), strings.TrimSpace(q.Get("name")), strings.TrimSpace(q.Get("source")), limit)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, rollups)
}
