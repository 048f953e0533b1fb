package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics records inbound request counts and latency for the /metrics scrape.
type HTTPMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics builds the collectors on a private registry.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	registry := prometheus.NewRegistry()

	constLabels := prometheus.Labels{"service": serviceLabel(cfg.ServiceName)}
	if cfg.Environment != "" {
		constLabels["env"] = cfg.Environment
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "petfeeder_http_requests_total",
		Help:        "HTTP requests served, by route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "petfeeder_http_request_duration_seconds",
		Help:        "HTTP request latency.",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	}, []string{"method", "route"})
	registry.MustRegister(requests, duration)

	return &HTTPMetrics{registry: registry, requests: requests, duration: duration}
}

// Middleware observes every request after the handler chain completes.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			// Static pages are unbounded; fold them into one series.
			route = "static"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the HTTP collectors together with the default registry,
// which carries the runtime collectors and the gorm connection pool stats.
func (m *HTTPMetrics) Handler() http.Handler {
	gatherers := prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}

func (m *HTTPMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func serviceLabel(name string) string {
	if name == "" {
		return "petfeeder"
	}
	return name
}
