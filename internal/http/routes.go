package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// LoginLimiter guards POST /login; nil disables rate limiting.
	LoginLimiter   *rate.Limiter
	RequestTimeout time.Duration
	// TestingMode exposes /test and /test/{action}.
	TestingMode bool
}

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(h *Handler, ro RouterOptions) *mux.Router {
	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(h.logger))
	r.Use(MetricsMiddleware)
	r.Use(h.SessionMiddleware)

	r.HandleFunc("/health", h.GetHealth).Methods("GET")
	r.Handle("/metrics", observability.MetricsHandler()).Methods("GET")

	if ro.TestingMode {
		r.HandleFunc("/test", h.GetTestStatus).Methods("GET")
		r.HandleFunc("/test/{action}", h.PostTestAction).Methods("POST")
	}

	limitLogin := RateLimitMiddleware(ro.LoginLimiter, h.outcomes)
	r.Handle("/login", limitLogin(http.HandlerFunc(h.PostLogin))).Methods("POST")
	r.HandleFunc("/login", h.GetLoginPage).Methods("GET")
	r.Handle("/register", h.MaintenanceMiddleware(http.HandlerFunc(h.PostRegister))).Methods("POST")
	r.HandleFunc("/logout", h.GetLogout).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	if ro.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(ro.RequestTimeout))
	}
	api.Use(h.MaintenanceMiddleware)

	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/global-settings", h.GetPublicSettings).Methods("GET")
	api.HandleFunc("/guest", h.PostGuest).Methods("POST")

	api.HandleFunc("/projects", h.withOwner(h.GetProjects)).Methods("GET")
	api.HandleFunc("/project", h.withOwner(h.PostNewProject)).Methods("POST")
	api.HandleFunc("/project/{id}", h.withOwner(h.GetProject)).Methods("GET")
	api.HandleFunc("/project/{id}", h.withOwner(h.PostProject)).Methods("POST")
	api.HandleFunc("/project/{id}", h.withOwner(h.DeleteProject)).Methods("DELETE")
	api.HandleFunc("/reset-all-data", h.withOwner(h.PostResetAll)).Methods("POST")
	api.HandleFunc("/initial-project", h.withOwner(h.GetInitialProject)).Methods("GET")
	api.HandleFunc("/templates", h.withOwner(h.GetTemplates)).Methods("GET")
	api.HandleFunc("/template/{id}", h.withOwner(h.GetTemplate)).Methods("GET")
	api.HandleFunc("/settings", h.withOwner(h.GetSettings)).Methods("GET")
	api.HandleFunc("/settings", h.withOwner(h.PostSettings)).Methods("POST")

	api.HandleFunc("/profile", h.withUser(h.GetProfile)).Methods("GET")
	api.HandleFunc("/profile", h.withUser(h.PostProfile)).Methods("POST")
	api.HandleFunc("/logs", h.withUser(h.GetLogs)).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/users", h.withAdmin(h.GetUsers)).Methods("GET")
	admin.HandleFunc("/user/{id}", h.withAdmin(h.PutUser)).Methods("PUT")
	admin.HandleFunc("/user/{id}", h.withAdmin(h.DeleteUser)).Methods("DELETE")
	admin.HandleFunc("/global-settings", h.withAdmin(h.GetGlobalSettings)).Methods("GET")
	admin.HandleFunc("/global-settings", h.withAdmin(h.PostGlobalSettings)).Methods("POST")
	admin.HandleFunc("/run-check", h.withAdmin(h.PostRunCheck)).Methods("POST")
	admin.HandleFunc("/get-structure", h.withAdmin(h.GetStructure)).Methods("GET")
	admin.HandleFunc("/backups", h.withAdmin(h.GetBackups)).Methods("GET")
	admin.HandleFunc("/backups/{name}", h.withAdmin(h.GetBackupFiles)).Methods("GET")
	admin.HandleFunc("/restore", h.withAdmin(h.PostRestore)).Methods("POST")
	admin.HandleFunc("/structure-report", h.withAdmin(h.GetStructureReport)).Methods("GET")
	admin.HandleFunc("/run-factory-reset", h.withAdmin(h.PostFactoryReset)).Methods("POST")

	r.PathPrefix("/static/").Handler(h.StaticHandler()).Methods("GET", "HEAD")

	pages := []struct {
		path   string
		file   string
		access pageAccess
	}{
		{"/", "index.html", pagePublic},
		{"/register", "register.html", pagePublic},
		{"/info", "info.html", pagePublic},
		{"/agb", "agb.html", pagePublic},
		{"/dashboard", "dashboard.html", pageSession},
		{"/settings", "settings.html", pageSession},
		{"/project/{id}", "project.html", pageSession},
		{"/project/{id}/overview", "overview.html", pageSession},
		{"/project/{id}/checklist", "checklist.html", pageSession},
		{"/admin", "admin.html", pageAdmin},
	}
	for _, p := range pages {
		r.HandleFunc(p.path, h.servePage(p.file, p.access)).Methods("GET")
	}

	return r
}
