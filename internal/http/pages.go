package http

import (
	"net/http"
	"path/filepath"
	"strings"
)

// pageAccess says who may open a page.
type pageAccess int

const (
	pagePublic pageAccess = iota
	pageSession
	pageAdmin
)

// servePage serves an HTML file from the pages directory. Pages behind a
// session redirect to /login; the admin page redirects other users to /dashboard.
func (h *Handler) servePage(file string, access pageAccess) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := sessionFrom(r)
		switch access {
		case pageSession:
			if s == nil || (!s.LoggedIn() && !s.IsGuest) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
		case pageAdmin:
			if !s.LoggedIn() {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if !s.IsAdmin {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
		}
		http.ServeFile(w, r, filepath.Join(h.opts.PagesDir, file))
	}
}

// GetLoginPage handles GET /login; logged-in users go straight to the dashboard.
func (h *Handler) GetLoginPage(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r).LoggedIn() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.opts.PagesDir, "login.html"))
}

// StaticHandler serves the static directory under /static/. The data directory
// is never served when it lives inside the static directory.
func (h *Handler) StaticHandler() http.Handler {
	files := http.StripPrefix("/static/", http.FileServer(http.Dir(h.opts.StaticDir)))
	hidden := hiddenPrefix(h.opts.StaticDir, h.opts.DataDir)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hidden != "" {
			rel := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+strings.TrimPrefix(r.URL.Path, "/static/"))), "/")
			if hidden == "." || rel == hidden || strings.HasPrefix(rel, hidden+"/") {
				http.NotFound(w, r)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}

// hiddenPrefix returns dataDir relative to staticDir in slash form, or "" when
// dataDir is not below staticDir.
func hiddenPrefix(staticDir, dataDir string) string {
	if staticDir == "" || dataDir == "" {
		return ""
	}
	sa, err1 := filepath.Abs(staticDir)
	da, err2 := filepath.Abs(dataDir)
	if err1 != nil || err2 != nil {
		return ""
	}
	rel, err := filepath.Rel(sa, da)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return filepath.ToSlash(rel)
}
