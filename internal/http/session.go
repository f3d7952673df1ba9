package http

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

func withSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFrom returns the session resolved by SessionMiddleware, or nil.
func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey).(*session.Session)
	return s
}

// SessionMiddleware resolves the session cookie. Sessions of registered users are
// resolved by user ID against users.json on every request: deleted accounts lose
// access at once, while username and admin rights follow the stored record.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(h.opts.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		logger := requestLogger(r, h.logger)
		s, ok, err := h.sessions.Get(r.Context(), c.Value)
		if err != nil {
			observability.SessionErrorsTotal.WithLabelValues("get").Inc()
			logger.Warn("session lookup failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			h.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if s.LoggedIn() {
			u, err := h.svc.CurrentUser(s.UserID)
			switch {
			case errors.Is(err, service.ErrUserNotFound):
				logger.Info("session dropped for missing account", zap.String("userId", s.UserID))
				h.destroySession(w, r, s)
				next.ServeHTTP(w, r)
				return
			case err != nil:
				logger.Warn("session account check failed", zap.Error(err))
			default:
				if s.Username != u.Username || s.IsAdmin != u.IsAdmin {
					s.Username, s.IsAdmin = u.Username, u.IsAdmin
					if err := h.saveSession(r, s); err != nil {
						logger.Warn("session refresh failed", zap.Error(err))
					}
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
	})
}

// startSession stores s and sets its cookie.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, s *session.Session) error {
	if old := sessionFrom(r); old != nil {
		h.destroySession(w, r, old)
	}
	if err := h.saveSession(r, s); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(h.opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *Handler) saveSession(r *http.Request, s *session.Session) error {
	if err := h.sessions.Set(r.Context(), s, h.opts.SessionTTL); err != nil {
		observability.SessionErrorsTotal.WithLabelValues("set").Inc()
		return err
	}
	return nil
}

func (h *Handler) destroySession(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := h.sessions.Delete(r.Context(), s.ID); err != nil {
		observability.SessionErrorsTotal.WithLabelValues("delete").Inc()
		requestLogger(r, h.logger).Warn("session delete failed", zap.Error(err))
	}
	h.clearCookie(w)
}

func (h *Handler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ownerFor maps a session to the owner of the projects it works on.
func ownerFor(s *session.Session) *service.Owner {
	if s.IsGuest {
		return service.GuestOwner(s.GuestProjects)
	}
	return service.UserOwner(s.UserID)
}

type ownerHandler func(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner)

// withOwner requires a user or guest session.
func (h *Handler) withOwner(fn ownerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if s == nil || (!s.LoggedIn() && !s.IsGuest) {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Login required")
			return
		}
		fn(w, r, s, ownerFor(s))
	}
}

// withUser requires a registered user.
func (h *Handler) withUser(fn func(w http.ResponseWriter, r *http.Request, s *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		if !s.LoggedIn() {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Login required")
			return
		}
		fn(w, r, s)
	}
}

// withAdmin requires a registered user with admin rights.
func (h *Handler) withAdmin(fn func(w http.ResponseWriter, r *http.Request, s *session.Session)) http.HandlerFunc {
	return h.withUser(func(w http.ResponseWriter, r *http.Request, s *session.Session) {
		if !s.IsAdmin {
			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "Administrator rights required")
			return
		}
		fn(w, r, s)
	})
}

// persistGuest writes the owner's guest projects back into the session.
func (h *Handler) persistGuest(r *http.Request, s *session.Session, o *service.Owner) error {
	if !o.Guest {
		return nil
	}
	s.GuestProjects = o.GuestProjects
	return h.saveSession(r, s)
}

// MaintenanceMiddleware answers 503 MAINTENANCE to everyone but administrators
// while maintenance mode is on. Session and public settings stay readable so
// the pages can show the notice.
func (h *Handler) MaintenanceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/session", "/api/global-settings":
			next.ServeHTTP(w, r)
			return
		}
		if s := sessionFrom(r); s != nil && s.IsAdmin {
			next.ServeHTTP(w, r)
			return
		}
		on, err := h.maintenanceOn(r)
		if err != nil {
			requestLogger(r, h.logger).Warn("maintenance check failed", zap.Error(err))
		}
		if on {
			writeError(w, r, http.StatusServiceUnavailable, "MAINTENANCE", "Service is in maintenance mode")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) maintenanceOn(r *http.Request) (bool, error) {
	gs, err := h.svc.GlobalSettings(r.Context())
	if err != nil {
		return false, err
	}
	return gs.MaintenanceMode, nil
}
