package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/lifecycle"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
	"github.com/kjstillabower/project-tracker-service/internal/traffic"
)

// Options holds session, page and health settings for the handler.
type Options struct {
	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration

	PagesDir  string
	StaticDir string
	// DataDir is hidden from the static file server when it lies below StaticDir.
	DataDir string

	DegradedWindow   time.Duration
	DegradedErrorPct int
	// SessionPing, when set, is called to check session backend reachability. Used when backend is memcached.
	SessionPing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc       *service.Service
	sessions  session.Store
	structure *structure.Tool
	outcomes  *traffic.Tracker
	logger    *zap.Logger
	opts      Options

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. structureTool and outcomes may be nil.
func NewHandler(
	svc *service.Service,
	sessions session.Store,
	structureTool *structure.Tool,
	outcomes *traffic.Tracker,
	logger *zap.Logger,
	opts Options,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "session_id"
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Handler{
		svc:       svc,
		sessions:  sessions,
		structure: structureTool,
		outcomes:  outcomes,
		logger:    logger,
		opts:      opts,
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"storage": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["storage"] = "unhealthy"
	}
	if h.opts.SessionPing != nil {
		if result.reason == "session_backend_unreachable" {
			checks["sessions"] = "unhealthy"
		} else {
			checks["sessions"] = "healthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "project-tracker-service",
		"version":   "dev",
		"checks":    checks,
		"uptime":    lifecycle.Uptime().Truncate(time.Second).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > session backend unreachable > storage error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.opts.SessionPing != nil {
		if err := h.opts.SessionPing(); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "session_backend_unreachable"}
		}
	}
	if h.opts.DegradedWindow > 0 && h.opts.DegradedErrorPct > 0 {
		errors, total := h.outcomes.ErrorRate(h.opts.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.opts.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) degradedWindow() time.Duration {
	if h.opts.DegradedWindow > 0 {
		return h.opts.DegradedWindow
	}
	return 60 * time.Second
}

// GetTestStatus handles GET /test. Returns the storage outcome counts health works from.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := h.degradedWindow()
	errors, total := h.outcomes.ErrorRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_in_window":           total,
		"errors_in_window":          errors,
		"denied_requests_in_window": h.outcomes.DenialCount(window),
		"window_length":             window.String(),
		"shutting_down":             lifecycle.IsShuttingDown(),
		"config": map[string]interface{}{
			"degraded_error_pct": h.opts.DegradedErrorPct,
		},
	})
}

// PostTestAction handles POST /test/{action} for load, error, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	switch action {
	case "load", "error":
		h.postTestOutcomes(w, r, action)
	case "reset":
		h.outcomes.Reset()
		lifecycle.SetShuttingDown(false)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "reset",
			"message": "All simulated state cleared",
		})
	case "shutdown":
		lifecycle.SetShuttingDown(true)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":      true,
			"action":  "shutdown",
			"message": "Shutting-down flag set",
		})
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
	}
}

// maxTestOutcomes caps the count accepted by postTestOutcomes.
const maxTestOutcomes = 1000

// postTestOutcomes records count successful ("load") or failed ("error") storage
// operations and reports the resulting health state.
func (h *Handler) postTestOutcomes(w http.ResponseWriter, r *http.Request, action string) {
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 1
	}
	if body.Count > maxTestOutcomes {
		body.Count = maxTestOutcomes
	}
	for i := 0; i < body.Count; i++ {
		if action == "error" {
			h.outcomes.RecordError()
		} else {
			h.outcomes.RecordSuccess()
		}
	}
	errors, total := h.outcomes.ErrorRate(h.degradedWindow())
	pct := 0
	if total > 0 {
		pct = errors * 100 / total
	}
	result := h.computeHealthStatus(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":             true,
		"action":         action,
		"message":        "Recorded " + strconv.Itoa(body.Count) + " outcomes",
		"state":          result.status,
		"error_rate_pct": pct,
	})
}
