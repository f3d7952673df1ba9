package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/schema"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
	"github.com/kjstillabower/project-tracker-service/internal/validation"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, extra map[string]interface{}) {
	resp := map[string]interface{}{"success": true}
	for k, v := range extra {
		resp[k] = v
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestID(r *http.Request) string {
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		return v
	}
	return ""
}

func requestLogger(r *http.Request, fallback *zap.Logger) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	if fallback == nil {
		return zap.NewNop()
	}
	return fallback
}

// errorBody builds the standard error envelope.
func errorBody(r *http.Request, code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": requestID(r),
		},
	}
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorBody(r, code, message))
}

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order; the first errors.Is match wins.
var errorMappings = []errorMapping{
	{service.ErrRegistrationDisabled, http.StatusForbidden, "REGISTRATION_DISABLED"},
	{service.ErrUserExists, http.StatusConflict, "USER_EXISTS"},
	{store.ErrExists, http.StatusConflict, "USER_EXISTS"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{service.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{service.ErrSelfDelete, http.StatusBadRequest, "SELF_DELETE"},
	{service.ErrSelfDemote, http.StatusBadRequest, "SELF_DEMOTE"},
	{service.ErrProjectIDRequired, http.StatusBadRequest, "PROJECT_ID_REQUIRED"},
	{service.ErrInvalidProjectID, http.StatusBadRequest, "INVALID_PROJECT_ID"},
	{service.ErrInvalidProject, http.StatusBadRequest, "INVALID_PROJECT"},
	{schema.ErrInvalid, http.StatusBadRequest, "INVALID_PROJECT"},
	{service.ErrGuestLimit, http.StatusForbidden, "GUEST_LIMIT"},
	{service.ErrGuestForbidden, http.StatusForbidden, "FORBIDDEN"},
	{service.ErrTemplateNotFound, http.StatusNotFound, "TEMPLATE_NOT_FOUND"},
	{service.ErrInvalidSettings, http.StatusBadRequest, "INVALID_SETTINGS"},
	{validation.ErrUsernameEmpty, http.StatusBadRequest, "VALIDATION_FAILED"},
	{validation.ErrUsernameLength, http.StatusBadRequest, "VALIDATION_FAILED"},
	{validation.ErrUsernameInvalidChars, http.StatusBadRequest, "VALIDATION_FAILED"},
	{validation.ErrEmailInvalid, http.StatusBadRequest, "VALIDATION_FAILED"},
	{validation.ErrPasswordTooShort, http.StatusBadRequest, "VALIDATION_FAILED"},
	{validation.ErrIDInvalid, http.StatusBadRequest, "VALIDATION_FAILED"},
	{structure.ErrNoManifest, http.StatusNotFound, "NO_MANIFEST"},
	{structure.ErrInvalidManifest, http.StatusUnprocessableEntity, "INVALID_MANIFEST"},
	{structure.ErrBackupNotFound, http.StatusNotFound, "BACKUP_NOT_FOUND"},
	{structure.ErrInvalidSelection, http.StatusBadRequest, "INVALID_SELECTION"},
	{structure.ErrNothingSelected, http.StatusBadRequest, "INVALID_SELECTION"},
	{errBodyTooLarge, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE"},
}

// classify maps a domain error to its status, code and client message.
// Unmapped errors are logged and reported as 500 without detail.
func (h *Handler) classify(r *http.Request, err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			requestLogger(r, h.logger).Debug("request rejected", zap.String("code", m.code), zap.Error(err))
			return m.status, m.code, err.Error()
		}
	}
	requestLogger(r, h.logger).Error("request failed", zap.Error(err))
	return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
}

// writeServiceError writes err in the standard error format.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := h.classify(r, err)
	writeError(w, r, status, code, msg)
}

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, errBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// decodeBody decodes a JSON request body into v. A malformed body is written as 400 and false is returned.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	data, err := readBody(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "request body is not valid JSON")
		return false
	}
	return true
}
