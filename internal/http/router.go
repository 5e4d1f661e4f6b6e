package httpx

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wayneindustries/resourcemgmt/internal/domain"
	"github.com/wayneindustries/resourcemgmt/internal/service/accesslog"
	"github.com/wayneindustries/resourcemgmt/internal/service/alert"
	"github.com/wayneindustries/resourcemgmt/internal/service/auth"
	"github.com/wayneindustries/resourcemgmt/internal/service/changefeed"
	"github.com/wayneindustries/resourcemgmt/internal/service/demo"
	"github.com/wayneindustries/resourcemgmt/internal/service/performance"
	"github.com/wayneindustries/resourcemgmt/internal/service/profile"
	"github.com/wayneindustries/resourcemgmt/internal/service/resource"
	"github.com/wayneindustries/resourcemgmt/internal/service/settings"
	"github.com/wayneindustries/resourcemgmt/internal/service/stats"
	"github.com/wayneindustries/resourcemgmt/internal/service/storage"
)

// Services groups the business services the router exposes.
type Services struct {
	Auth        auth.Service
	Profiles    profile.Service
	Resources   resource.Service
	AccessLogs  accesslog.Service
	Alerts      alert.Service
	Settings    settings.Service
	Storage     storage.Service
	Changes     changefeed.Service
	Demo        demo.Service
	Stats       stats.Service
	Performance *performance.Service
}

// Options tunes transport behaviour.
type Options struct {
	Limiter           RateLimiter
	DBHealth          func(context.Context) error
	RealtimeHeartbeat time.Duration
	MaxUploadBytes    int64
	FileURLTTL        time.Duration
	AllowedOrigins    []string
	// TrustedProxies lists peer addresses or CIDR ranges whose X-Forwarded-For is honoured.
	TrustedProxies []string
	Registerer     prometheus.Registerer
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux       *http.ServeMux
	handler   http.Handler
	logger    *slog.Logger
	svc       Services
	upgrader  websocket.Upgrader
	limiter   RateLimiter
	dbHealth  func(context.Context) error
	heartbeat time.Duration
	maxUpload int64
	fileTTL   time.Duration
	proxies   []netip.Prefix
	metrics   *routerMetrics
	draining  chan struct{}
	drainOnce sync.Once
}

const (
	healthCheckTimeout       = 2 * time.Second
	defaultRealtimeHeartbeat = 25 * time.Second
	defaultMaxUpload         = 10 << 20
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, svc Services, opts Options) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		svc:       svc,
		limiter:   opts.Limiter,
		dbHealth:  opts.DBHealth,
		heartbeat: opts.RealtimeHeartbeat,
		maxUpload: opts.MaxUploadBytes,
		fileTTL:   opts.FileURLTTL,
		draining:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(opts.AllowedOrigins),
		},
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.heartbeat <= 0 {
		r.heartbeat = defaultRealtimeHeartbeat
	}
	if r.maxUpload <= 0 {
		r.maxUpload = defaultMaxUpload
	}
	r.proxies = parseProxies(logger, opts.TrustedProxies)
	r.metrics = newRouterMetrics(opts.Registerer)
	r.register()
	r.handler = corsHandler(opts.AllowedOrigins)(r.mux)
	return r
}

// ServeHTTP delegates to the CORS wrapped mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func corsHandler(allowed []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		if trimmed := strings.TrimRight(strings.TrimSpace(origin), "/"); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Requested-With"}),
		handlers.ExposedHeaders([]string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"}),
		handlers.MaxAge(600),
	)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

// Drain ends open event streams. Register it with http.Server.RegisterOnShutdown.
func (r *Router) Drain() {
	r.drainOnce.Do(func() { close(r.draining) })
}

func (r *Router) register() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))

	r.mux.HandleFunc("/auth/signup", r.audit("/auth/signup", r.handlerIPRate("/auth/signup", ruleSignup, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit("/auth/login", r.handlerIPRate("/auth/login", ruleLogin, r.handleLogin)))
	r.mux.HandleFunc("/auth/refresh", r.audit("/auth/refresh", r.handlerIPRate("/auth/refresh", ruleRefresh, r.handleRefresh)))
	r.mux.HandleFunc("/auth/logout", r.audit("/auth/logout", r.handlerAuthRate("/auth/logout", ruleUserWrite, r.handleLogout)))
	r.mux.HandleFunc("/auth/password/forgot", r.audit("/auth/password/forgot", r.handlerIPRate("/auth/password/forgot", rulePassword, r.handleForgotPassword)))
	r.mux.HandleFunc("/auth/password/reset", r.audit("/auth/password/reset", r.handlerIPRate("/auth/password/reset", rulePassword, r.handleResetPassword)))
	r.mux.HandleFunc("/auth/password", r.audit("/auth/password", r.handlerAuthRate("/auth/password", rulePassword, r.handleChangePassword)))

	r.mux.HandleFunc("/me", r.audit("/me", r.handlerAuthRate("/me", ruleUserWrite, r.handleMe)))
	r.mux.HandleFunc("/profiles", r.audit("/profiles", r.handlerAuthRate("/profiles", ruleUserRead, r.handleProfiles)))
	r.mux.HandleFunc("/profiles/", r.audit("/profiles/{id}", r.handlerAuthRate("/profiles/{id}", ruleUserWrite, r.handleProfileSubroutes)))

	r.mux.HandleFunc("/resources", r.audit("/resources", r.handlerAuthRate("/resources", ruleUserRead, r.handleResources)))
	r.mux.HandleFunc("/resources/", r.audit("/resources/{id}", r.handlerAuthRate("/resources/{id}", ruleUserWrite, r.handleResourceSubroutes)))

	r.mux.HandleFunc("/access-logs", r.audit("/access-logs", r.handlerAuthRate("/access-logs", ruleUserRead, r.handleAccessLogs)))

	r.mux.HandleFunc("/alerts", r.audit("/alerts", r.handlerAuthRate("/alerts", ruleUserRead, r.handleAlerts)))
	r.mux.HandleFunc("/alerts/", r.audit("/alerts/{id}", r.handlerAuthRate("/alerts/{id}", ruleUserWrite, r.handleAlertSubroutes)))

	r.mux.HandleFunc("/settings", r.audit("/settings", r.handlerAuthRate("/settings", ruleUserWrite, r.handleSettings)))

	r.mux.HandleFunc("/files", r.audit("/files", r.handlerAuthRate("/files", ruleUpload, r.handleFiles)))
	r.mux.HandleFunc("/files/", r.audit("/files/{token}", r.handlerIPRate("/files/{token}", ruleFileFetch, r.handleFileDownload)))

	r.mux.HandleFunc("/dashboard/stats", r.audit("/dashboard/stats", r.handlerAuthRate("/dashboard/stats", ruleUserRead, r.handleDashboardStats)))
	r.mux.HandleFunc("/admin/demo-accounts", r.audit("/admin/demo-accounts", r.handlerAuthRate("/admin/demo-accounts", ruleAdminBatch, r.requireRole(r.handleDemoAccounts, domain.RoleAdmin))))

	r.mux.HandleFunc("/realtime/ws", r.audit("/realtime/ws", r.handlerAuthRate("/realtime/ws", ruleRealtime, r.handleRealtimeWS)))
	r.mux.HandleFunc("/realtime/sse", r.audit("/realtime/sse", r.handlerAuthRate("/realtime/sse", ruleRealtime, r.handleRealtimeSSE)))

	r.mux.HandleFunc("/performance", r.audit("/performance", r.handlerAuthRate("/performance", ruleTelemetry, r.handlePerformance)))
	r.mux.HandleFunc("/performance/rollups", r.audit("/performance/rollups", r.handlerAuthRate("/performance/rollups", ruleUserRead, r.handlePerformanceRollups)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	if hub := r.svc.Changes.Hub(); hub != nil {
		components["realtime"] = map[string]any{"status": "up", "subscribers": hub.Subscribers("")}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// audit logs every request, records its metrics and timing, and puts the caller's address
// and user agent on the context for access logging.
func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		ip := r.clientIP(req)
		req = req.WithContext(accesslog.WithClientInfo(req.Context(), ip, req.UserAgent()))
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)
		if !recorder.streaming {
			r.svc.Performance.Record(req.Method+" "+route, duration, status >= http.StatusInternalServerError)
		}

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"route", route,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = info.Role
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status    int
	bytes     int
	ctx       context.Context
	streaming bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	sr.streaming = true
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	sr.streaming = true
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

// clientIP returns the socket peer, or the nearest untrusted X-Forwarded-For hop when the
// peer is a trusted proxy.
func (r *Router) clientIP(req *http.Request) string {
	peer := remoteHost(req)
	if !r.trustedProxy(peer) {
		return peer
	}
	hops := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !r.trustedProxy(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

func (r *Router) trustedProxy(host string) bool {
	if len(r.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range r.proxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func parseProxies(logger *slog.Logger, entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				logger.Warn("ignoring invalid trusted proxy", "entry", entry, "error", err)
				continue
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logger.Warn("ignoring invalid trusted proxy", "entry", entry, "error", err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// pathParts splits the remainder of path after prefix into segments.
func pathParts(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
