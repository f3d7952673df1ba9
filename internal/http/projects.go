package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
)

// GetProjects handles GET /api/projects.
func (h *Handler) GetProjects(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	list, err := h.svc.ListProjects(r.Context(), o)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetProject handles GET /api/project/{id}. A missing project is an empty object.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	p, ok, err := h.svc.GetProject(r.Context(), o, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PostNewProject handles POST /api/project.
func (h *Handler) PostNewProject(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	raw, err := readBody(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := service.DecodeProject(raw)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	id, err := h.svc.CreateProject(r.Context(), o, p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.persistGuest(r, s, o); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"id": id})
}

// PostProject handles POST /api/project/{id}.
func (h *Handler) PostProject(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	raw, err := readBody(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	p, err := service.DecodeProject(raw)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.svc.SaveProject(r.Context(), o, mux.Vars(r)["id"], p); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.persistGuest(r, s, o); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// DeleteProject handles DELETE /api/project/{id}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	if err := h.svc.DeleteProject(r.Context(), o, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.persistGuest(r, s, o); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// PostResetAll handles POST /api/reset-all-data.
func (h *Handler) PostResetAll(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	if err := h.svc.ResetAll(r.Context(), o); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if err := h.persistGuest(r, s, o); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// GetInitialProject handles GET /api/initial-project.
func (h *Handler) GetInitialProject(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	writeJSON(w, http.StatusOK, service.InitialProject(o.Guest))
}

// GetTemplates handles GET /api/templates.
func (h *Handler) GetTemplates(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	list, err := h.svc.ListTemplates(r.Context(), o)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetTemplate handles GET /api/template/{id}.
func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request, s *session.Session, o *service.Owner) {
	p, err := h.svc.GetTemplate(r.Context(), o, mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
