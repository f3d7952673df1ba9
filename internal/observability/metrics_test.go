package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across http, service, store and structure packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses path template to avoid cardinality (e.g. /api/project/{id} not /api/project/p1)
	HTTPRequestsTotal.WithLabelValues("GET", "/api/project/{id}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/project/{id}").Observe(0.01)
	LoginAttemptsTotal.WithLabelValues("success").Inc()
	RegistrationsTotal.WithLabelValues("created").Inc()
	ProjectOperationsTotal.WithLabelValues("create", "user").Inc()
	GuestLimitRejectionsTotal.WithLabelValues("projects").Inc()
	StoreOperationsTotal.WithLabelValues("write", "success").Inc()
	StoreOperationDuration.WithLabelValues("read").Observe(0.001)
	SessionErrorsTotal.WithLabelValues("get").Inc()
	StructureRunsTotal.WithLabelValues("check").Inc()
	RateLimitDeniedTotal.Inc()
	RecordStructureDrift(2, 1)
	RecordSessionCircuitTransition("closed", "open", 1)
}

// TestRegisterSessionGauge_Idempotent verifies that registering the session
// gauge twice does not panic on duplicate registration.
func TestRegisterSessionGauge_Idempotent(t *testing.T) {
	RegisterSessionGauge(func() int { return 3 })
	RegisterSessionGauge(func() int { return 4 })
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
