package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsWorkflowCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.ObserveProviderCall("DELETE", true, 120*time.Millisecond)
	metrics.ObserveProviderCall("delete", false, 80*time.Millisecond)
	metrics.IncDeletionOutcome("fulfilled")
	metrics.IncDeletionOutcome("Rejected")
	metrics.IncWorkflow("reconcile", "partial")
	metrics.IncRateLimited("redis")

	if got := testutil.ToFloat64(metrics.providerRequestsTotal.WithLabelValues("delete", "success")); got != 1 {
		t.Fatalf("provider_requests_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.providerRequestsTotal.WithLabelValues("delete", "failure")); got != 1 {
		t.Fatalf("provider_requests_total{failure} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deletionOutcomesTotal.WithLabelValues("rejected")); got != 1 {
		t.Fatalf("deletion_outcomes_total{rejected} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.workflowsTotal.WithLabelValues("reconcile", "partial")); got != 1 {
		t.Fatalf("workflows_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitedTotal.WithLabelValues("redis")); got != 1 {
		t.Fatalf("rate_limited_total = %v, want 1", got)
	}
}

func TestMetricsNilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.ObserveProviderCall("GET", true, time.Millisecond)
	metrics.IncDeletionOutcome("fulfilled")
	metrics.IncWorkflow("purge", "success")
	metrics.IncRateLimited("memory")

	if metrics.Handler() == nil {
		t.Fatal("Handler() should fall back to the default handler")
	}
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/health", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

type codedError struct{ code int }

func (e codedError) Error() string   { return "coded" }
func (e codedError) StatusCode() int { return e.code }

func TestMetricsHTTPMiddlewareUsesErrorStatusCode(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(statusFromResult(c, err))
		},
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/bad", func(c *fiber.Ctx) error {
		return codedError{code: fiber.StatusBadRequest}
	})

	if _, err := app.Test(httptest.NewRequest("GET", "/bad", nil)); err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/bad", "400")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}
