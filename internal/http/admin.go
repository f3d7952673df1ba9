package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
)

// GetUsers handles GET /api/admin/users.
func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request, s *session.Session) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// PutUser handles PUT /api/admin/user/{id}.
func (h *Handler) PutUser(w http.ResponseWriter, r *http.Request, s *session.Session) {
	var upd service.UserUpdate
	if !h.decodeBody(w, r, &upd) {
		return
	}
	pw, err := h.svc.UpdateUser(r.Context(), s.UserID, mux.Vars(r)["id"], upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	extra := map[string]interface{}{}
	if pw != "" {
		extra["new_password"] = pw
	}
	writeSuccess(w, extra)
}

// DeleteUser handles DELETE /api/admin/user/{id}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if err := h.svc.DeleteUser(r.Context(), s.UserID, mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, nil)
}

// GetGlobalSettings handles GET /api/admin/global-settings.
func (h *Handler) GetGlobalSettings(w http.ResponseWriter, r *http.Request, s *session.Session) {
	gs, err := h.svc.GlobalSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gs)
}

// PostGlobalSettings handles POST /api/admin/global-settings. Fields absent from
// the body keep their stored values.
func (h *Handler) PostGlobalSettings(w http.ResponseWriter, r *http.Request, s *session.Session) {
	gs, err := h.svc.GlobalSettings(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.decodeBody(w, r, &gs) {
		return
	}
	if err := h.svc.SaveGlobalSettings(r.Context(), gs); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"settings": gs})
}

// PostFactoryReset handles POST /api/admin/run-factory-reset.
func (h *Handler) PostFactoryReset(w http.ResponseWriter, r *http.Request, s *session.Session) {
	lines, err := h.svc.FactoryReset(r.Context())
	if err != nil {
		status, code, msg := h.classify(r, err)
		body := errorBody(r, code, msg)
		body["log"] = lines
		writeJSON(w, status, body)
		return
	}
	requestLogger(r, h.logger).Warn("factory reset performed", zap.String("adminId", s.UserID))
	writeJSON(w, http.StatusOK, map[string]interface{}{"log": lines})
}

// structureTool returns the tool or writes 503 when none is configured.
func (h *Handler) structureTool(w http.ResponseWriter, r *http.Request) (*structure.Tool, bool) {
	if h.structure == nil {
		writeError(w, r, http.StatusServiceUnavailable, "STRUCTURE_UNAVAILABLE", "Structure tool is not configured")
		return nil, false
	}
	return h.structure, true
}

// logText renders a structure run's log as newline-separated text.
func logText(log *structure.Log) string {
	entries := log.Entries()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// writeRun writes the outcome of a structure run together with its log.
func (h *Handler) writeRun(w http.ResponseWriter, r *http.Request, log *structure.Log, report interface{}, err error) {
	if err != nil {
		status, code, msg := h.classify(r, err)
		body := errorBody(r, code, msg)
		body["log"] = logText(log)
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"log": logText(log), "report": report})
}

// PostRunCheck handles POST /api/admin/run-check with {"flag": "--check" | "--generate" | "--fix"}.
func (h *Handler) PostRunCheck(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	var body struct {
		Flag string `json:"flag"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	log := structure.NewLog(requestLogger(r, h.logger))
	switch body.Flag {
	case "--check", "":
		report, err := t.Check(log)
		h.writeRun(w, r, log, report, err)
	case "--generate":
		root, err := t.Generate(log)
		h.writeRun(w, r, log, root, err)
	case "--fix":
		report, err := t.Check(log)
		if err != nil {
			h.writeRun(w, r, log, nil, err)
			return
		}
		res, err := t.Apply(log, report)
		h.writeRun(w, r, log, map[string]interface{}{"drift": report, "result": res}, err)
	default:
		writeError(w, r, http.StatusBadRequest, "INVALID_FLAG", "flag must be --check, --generate or --fix")
	}
}

// GetStructure handles GET /api/admin/get-structure. The body is the manifest's
// root node.
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	root, err := t.LoadManifest()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// GetBackups handles GET /api/admin/backups.
func (h *Handler) GetBackups(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	names, err := t.ListBackups()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// GetBackupFiles handles GET /api/admin/backups/{name}.
func (h *Handler) GetBackupFiles(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	files, err := t.BackupFiles(mux.Vars(r)["name"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if files == nil {
		files = []structure.BackupFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// PostRestore handles POST /api/admin/restore with {"backup": name, "files": "all" | "1,3"}.
func (h *Handler) PostRestore(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	var body struct {
		Backup string `json:"backup"`
		Files  string `json:"files"`
	}
	if !h.decodeBody(w, r, &body) {
		return
	}
	sel, err := structure.ParseSelection(body.Files)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	log := structure.NewLog(requestLogger(r, h.logger))
	n, err := t.Restore(log, body.Backup, sel)
	h.writeRun(w, r, log, map[string]interface{}{"restored": n}, err)
}

// GetStructureReport handles GET /api/admin/structure-report.
func (h *Handler) GetStructureReport(w http.ResponseWriter, r *http.Request, s *session.Session) {
	t, ok := h.structureTool(w, r)
	if !ok {
		return
	}
	log := structure.NewLog(requestLogger(r, h.logger))
	a, err := t.Report(log)
	if err != nil {
		h.writeRun(w, r, log, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"log": logText(log), "report": a, "text": a.Summary()})
}
