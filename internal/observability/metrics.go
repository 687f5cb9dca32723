package observability

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the HTTP layer and the
// provider-facing workflows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	providerRequestsTotal   *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	deletionOutcomesTotal   *prometheus.CounterVec
	workflowsTotal          *prometheus.CounterVec
	rateLimitedTotal        *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signature_gateway",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "signature_gateway",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		providerRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signature_gateway",
				Name:      "provider_requests_total",
				Help:      "Total number of calls made to the e-signature provider by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		providerRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "signature_gateway",
				Name:      "provider_request_duration_seconds",
				Help:      "Provider call duration in seconds grouped by method.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"method"},
		),
		deletionOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signature_gateway",
				Name:      "deletion_outcomes_total",
				Help:      "Total number of settled submission deletions by settle status.",
			},
			[]string{"status"},
		),
		workflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signature_gateway",
				Name:      "workflows_total",
				Help:      "Total number of submission workflows run, by operation and result.",
			},
			[]string{"operation", "result"},
		),
		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signature_gateway",
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter.",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.providerRequestsTotal,
		m.providerRequestDuration,
		m.deletionOutcomesTotal,
		m.workflowsTotal,
		m.rateLimitedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) ObserveProviderCall(method string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	methodLabel := normalizeLabel(strings.ToLower(method))
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerRequestsTotal.WithLabelValues(methodLabel, outcome).Inc()
	m.providerRequestDuration.WithLabelValues(methodLabel).Observe(seconds)
}

func (m *Metrics) IncDeletionOutcome(status string) {
	if m == nil {
		return
	}
	m.deletionOutcomesTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncWorkflow(operation string, result string) {
	if m == nil {
		return
	}
	m.workflowsTotal.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (m *Metrics) IncRateLimited(backend string) {
	if m == nil {
		return
	}
	m.rateLimitedTotal.WithLabelValues(normalizeLabel(backend)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

// statusCoder is implemented by errors that know the HTTP status they render as.
type statusCoder interface {
	StatusCode() int
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		var coded statusCoder
		if errors.As(err, &coded) {
			return coded.StatusCode()
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
