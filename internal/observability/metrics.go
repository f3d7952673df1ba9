package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Login attempts by result (success, invalid, error). Watch for: spikes of invalid (credential stuffing).
	LoginAttemptsTotal *prometheus.CounterVec

	// Registrations by result (created, rejected, disabled).
	RegistrationsTotal *prometheus.CounterVec

	// Project mutations by operation and owner kind (user, guest).
	ProjectOperationsTotal *prometheus.CounterVec

	// Guest requests refused by guest limits, by limit name.
	GuestLimitRejectionsTotal *prometheus.CounterVec

	// JSON file operations by op (read, write, remove) and status (success, error).
	StoreOperationsTotal *prometheus.CounterVec

	// JSON file operation latency.
	StoreOperationDuration *prometheus.HistogramVec

	// Session backend errors by operation.
	SessionErrorsTotal *prometheus.CounterVec

	// Session backend circuit state (0 closed, 1 open, 2 half-open). Watch for: sustained 1.
	SessionCircuitState prometheus.Gauge

	// Session backend circuit transitions by from/to state.
	SessionCircuitTransitionsTotal *prometheus.CounterVec

	// Drift found by the last structure check, by kind (missing, orphan).
	StructureDriftItems *prometheus.GaugeVec

	// Structure tool runs by action (check, generate, fix, restore, report).
	StructureRunsTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: brute force against /login.
	RateLimitDeniedTotal prometheus.Counter

	sessionGaugeOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	LoginAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginAttemptsTotal",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
	RegistrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrationsTotal",
			Help: "Registration attempts by result",
		},
		[]string{"result"},
	)
	ProjectOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projectOperationsTotal",
			Help: "Project mutations by operation and owner kind",
		},
		[]string{"op", "owner"},
	)
	GuestLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guestLimitRejectionsTotal",
			Help: "Guest writes refused by guest limits",
		},
		[]string{"limit"},
	)
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeOperationsTotal",
			Help: "JSON file store operations by op and status",
		},
		[]string{"op", "status"},
	)
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "JSON file store operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op"},
	)
	SessionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionErrorsTotal",
			Help: "Session backend errors by operation",
		},
		[]string{"op"},
	)
	SessionCircuitState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionCircuitState",
			Help: "Session backend circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
	SessionCircuitTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionCircuitTransitionsTotal",
			Help: "Session backend circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)
	StructureDriftItems = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "structureDriftItems",
			Help: "Items found out of place by the last structure check",
		},
		[]string{"kind"},
	)
	StructureRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "structureRunsTotal",
			Help: "Structure tool runs by action",
		},
		[]string{"action"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		LoginAttemptsTotal, RegistrationsTotal,
		ProjectOperationsTotal, GuestLimitRejectionsTotal,
		StoreOperationsTotal, StoreOperationDuration,
		SessionErrorsTotal, SessionCircuitState, SessionCircuitTransitionsTotal,
		StructureDriftItems, StructureRunsTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterSessionGauge exposes the number of live sessions when the backend can count them.
// Safe to call more than once; only the first call registers.
func RegisterSessionGauge(count func() int) {
	sessionGaugeOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "sessionsActive",
				Help: "Sessions currently held by the in-memory session store",
			},
			func() float64 { return float64(count()) },
		))
	})
}

// RecordSessionCircuitTransition counts a breaker transition and updates the state gauge.
func RecordSessionCircuitTransition(from, to string, state int) {
	SessionCircuitTransitionsTotal.WithLabelValues(from, to).Inc()
	SessionCircuitState.Set(float64(state))
}

// RecordStructureDrift sets the drift gauges from a structure check.
func RecordStructureDrift(missing, orphans int) {
	StructureDriftItems.WithLabelValues("missing").Set(float64(missing))
	StructureDriftItems.WithLabelValues("orphan").Set(float64(orphans))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
