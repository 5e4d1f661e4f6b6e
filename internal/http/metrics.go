package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type routerMetrics struct {
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
	uploadBytes *prometheus.CounterVec
}

func newRouterMetrics(reg prometheus.Registerer) *routerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &routerMetrics{
		requests: registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wayne",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Processed HTTP requests by route and status.",
		}, []string{"method", "route", "status"})),
		latency: registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wayne",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Handler latency by route and status.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "status"})),
		rateLimited: registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wayne",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route", "key"})),
		subscribers: registerCollector(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "wayne",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Open realtime subscriptions by transport and table.",
		}, []string{"transport", "table"})),
		uploadBytes: registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wayne",
			Subsystem: "storage",
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted into each storage bucket.",
		}, []string{"bucket"})),
	}
}

// registerCollector adds c to reg, reusing the collector already registered under the same name.
func registerCollector[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "route": route, "status": strconv.Itoa(status)}
	r.metrics.requests.With(labels).Inc()
	r.metrics.latency.With(labels).Observe(duration.Seconds())
}

func (r *Router) recordRateLimitHit(route, key string) {
	r.metrics.rateLimited.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (r *Router) trackSubscriber(transport, table string, delta float64) {
	r.metrics.subscribers.With(prometheus.Labels{"transport": transport, "table": table}).Add(delta)
}

func (r *Router) recordUpload(bucket string, size int64) {
	r.metrics.uploadBytes.WithLabelValues(bucket).Add(float64(size))
}
