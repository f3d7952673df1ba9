// Package service implements accounts, projects, per-user documents and
// administration on top of the JSON file store.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/store"
)

var (
	ErrRegistrationDisabled = errors.New("registration is disabled")
	ErrUserExists           = errors.New("username already taken")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrSelfDelete           = errors.New("administrators cannot delete their own account")
	ErrSelfDemote           = errors.New("administrators cannot remove their own admin rights")
	ErrProjectIDRequired    = errors.New("project ID is required")
	ErrInvalidProjectID     = errors.New("project ID is invalid")
	ErrInvalidProject       = errors.New("project document is invalid")
	ErrGuestLimit           = errors.New("guest limit reached")
	ErrGuestForbidden       = errors.New("not available to guests")
	ErrTemplateNotFound     = errors.New("template not found")
	ErrInvalidSettings      = errors.New("settings are invalid")
)

// Service holds the stores every operation works on.
type Service struct {
	fs        *store.FS
	users     *store.UserStore
	globals   *store.GlobalSettingsStore
	data      *store.UserDataStore
	templates *store.TemplateStore
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Service over the data root managed by fs. templatesDir may be
// empty to use <data root>/templates.
func New(fs *store.FS, templatesDir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fs:        fs,
		users:     store.NewUserStore(fs),
		globals:   store.NewGlobalSettingsStore(fs),
		data:      store.NewUserDataStore(fs),
		templates: store.NewTemplateStore(fs, templatesDir),
		logger:    logger,
		now:       time.Now,
	}
}

// loggerFromContext returns the request logger if the HTTP layer stored one,
// otherwise the service logger.
func (s *Service) loggerFromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if v := ctx.Value("logger"); v != nil {
			if l, ok := v.(*zap.Logger); ok && l != nil {
				return l
			}
		}
	}
	return s.logger
}

// record appends to the user's activity log. Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, userID, action, detail string) {
	if userID == "" {
		return
	}
	entry := models.ActivityEntry{Timestamp: s.now().UTC(), Action: action, Detail: detail}
	if err := s.data.AppendLog(userID, entry); err != nil {
		s.loggerFromContext(ctx).Warn("activity log append failed",
			zap.String("userId", userID), zap.String("action", action), zap.Error(err))
	}
}
