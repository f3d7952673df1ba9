package http

import (
	"errors"
	"mime"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
)

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// wantsJSON reports whether the client posted JSON. HTML forms get redirects instead.
func wantsJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// readCredentials accepts a JSON body or form fields.
func (h *Handler) readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if wantsJSON(r) {
		return c, h.decodeBody(w, r, &c)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_FORM", "request body is not a valid form")
		return c, false
	}
	c.Username = r.PostFormValue("username")
	c.Email = r.PostFormValue("email")
	c.Password = r.PostFormValue("password")
	return c, true
}

func redirectWithError(w http.ResponseWriter, r *http.Request, page, code string) {
	http.Redirect(w, r, page+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// PostLogin handles POST /login.
func (h *Handler) PostLogin(w http.ResponseWriter, r *http.Request) {
	c, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Authenticate(r.Context(), c.Username, c.Password)
	if err != nil {
		if !wantsJSON(r) && errors.Is(err, service.ErrInvalidCredentials) {
			redirectWithError(w, r, "/login", "invalid_credentials")
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	if !u.IsAdmin {
		if on, _ := h.maintenanceOn(r); on {
			if !wantsJSON(r) {
				redirectWithError(w, r, "/login", "maintenance")
				return
			}
			writeError(w, r, http.StatusServiceUnavailable, "MAINTENANCE", "Service is in maintenance mode")
			return
		}
	}
	s := session.NewUser(u.Username, u.ID, u.IsAdmin)
	if err := h.startSession(w, r, s); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	requestLogger(r, h.logger).Info("user logged in", zap.String("userId", u.ID))
	if !wantsJSON(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	writeSuccess(w, map[string]interface{}{"user": u})
}

// PostRegister handles POST /register.
func (h *Handler) PostRegister(w http.ResponseWriter, r *http.Request) {
	c, ok := h.readCredentials(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Register(r.Context(), c.Username, c.Email, c.Password)
	if err != nil {
		if !wantsJSON(r) {
			_, code, _ := h.classify(r, err)
			redirectWithError(w, r, "/register", code)
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	if !wantsJSON(r) {
		http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "user": u})
}

// GetLogout handles GET /logout.
func (h *Handler) GetLogout(w http.ResponseWriter, r *http.Request) {
	if s := sessionFrom(r); s != nil {
		h.destroySession(w, r, s)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// PostGuest handles POST /api/guest: it starts a fresh guest session.
func (h *Handler) PostGuest(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.PublicSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	s := session.NewGuest()
	if err := h.startSession(w, r, s); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"is_guest": true, "guest_limits": ps.GuestLimits})
}

// GetSession handles GET /api/session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	resp := map[string]interface{}{"logged_in": false}
	switch {
	case s.LoggedIn():
		resp["logged_in"] = true
		resp["username"] = s.Username
		resp["is_admin"] = s.IsAdmin
	case s != nil && s.IsGuest:
		resp["is_guest"] = true
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPublicSettings handles GET /api/global-settings.
func (h *Handler) GetPublicSettings(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.PublicSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	st, err := h.svc.Settings(r.Context(), o)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PostSettings handles POST /api/settings.
func (h *Handler) PostSettings(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	var upd models.UserSettings
	if !h.decodeBody(w, r, &upd) {
		return
	}
	st, err := h.svc.SaveSettings(r.Context(), o, upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"settings": st})
}

// GetProfile handles GET /api/profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request, s *session.Session) {
	p, err := h.svc.Profile(r.Context(), s.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PostProfile handles POST /api/profile.
func (h *Handler) PostProfile(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var p models.Profile
	if !h.decodeBody(w, r, &p) {
		return
	}
	saved, err := h.svc.SaveProfile(r.Context(), s.UserID, p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"profile": saved})
}

// GetLogs handles GET /api/logs.
func (h *Handler) GetLogs(w http.ResponseWriter, r *http.Request, s *session.Session) {
	logs, err := h.svc.Logs(r.Context(), s.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
