package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/store"
)

// GlobalSettings returns the administrator settings.
func (s *Service) GlobalSettings(ctx context.Context) (models.GlobalSettings, error) {
	return s.globals.Load()
}

// PublicSettings returns the settings every visitor may read.
func (s *Service) PublicSettings(ctx context.Context) (models.PublicSettings, error) {
	gs, err := s.globals.Load()
	if err != nil {
		return models.PublicSettings{}, err
	}
	return models.PublicSettings{
		GuestLimits:         gs.GuestLimits,
		RegistrationEnabled: gs.RegistrationEnabled,
		MaintenanceMode:     gs.MaintenanceMode,
	}, nil
}

// SaveGlobalSettings validates and stores gs, then applies the debug flag to the process log level.
func (s *Service) SaveGlobalSettings(ctx context.Context, gs models.GlobalSettings) error {
	l := gs.GuestLimits
	if l.Projects < 0 || l.PhasesPerProject < 0 || l.TasksPerPhase < 0 || l.SubtasksPerTask < 0 {
		return fmt.Errorf("%w: guest limits must not be negative", ErrInvalidSettings)
	}
	if err := s.globals.Save(gs); err != nil {
		return err
	}
	observability.SetDebug(gs.GeneralDebugMode)
	s.loggerFromContext(ctx).Info("global settings updated",
		zap.Bool("registrationEnabled", gs.RegistrationEnabled),
		zap.Bool("maintenanceMode", gs.MaintenanceMode),
		zap.Bool("debugMode", gs.GeneralDebugMode))
	return nil
}

// ApplyDebugMode sets the process log level from the stored settings. Called at startup.
func (s *Service) ApplyDebugMode(ctx context.Context) error {
	gs, err := s.globals.Load()
	if err != nil {
		return err
	}
	observability.SetDebug(gs.GeneralDebugMode)
	return nil
}

// DefaultAccount is an account created by FactoryReset.
type DefaultAccount struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

// DefaultAccounts are recreated by FactoryReset.
var DefaultAccounts = []DefaultAccount{
	{Username: "admin", Email: "admin@example.com", Password: "password123", IsAdmin: true},
	{Username: "testuser", Email: "test@example.com", Password: "test"},
}

// FactoryReset deletes all user data and recreates the default accounts.
// Templates and global settings are kept. It returns a human-readable log.
func (s *Service) FactoryReset(ctx context.Context) ([]string, error) {
	logger := s.loggerFromContext(ctx)
	var lines []string
	logf := func(format string, args ...any) {
		line := fmt.Sprintf(format, args...)
		lines = append(lines, line)
		logger.Info("factory reset", zap.String("step", line))
	}

	logf("Deleting %s", s.fs.Path(store.UserDataDir))
	if err := s.data.RemoveAll(); err != nil {
		logf("ERROR: %v", err)
		return lines, err
	}

	users := make(map[string]models.User, len(DefaultAccounts))
	for _, a := range DefaultAccounts {
		u := models.User{ID: uuid.NewString(), Email: a.Email, Password: a.Password, IsAdmin: a.IsAdmin}
		users[a.Username] = u
		if err := s.data.EnsureUserDir(u.ID); err != nil {
			logf("ERROR: creating data for %s: %v", a.Username, err)
			return lines, err
		}
		role := "user"
		if a.IsAdmin {
			role = "admin"
		}
		logf("Created %s %q with data directory %s", role, a.Username, u.ID)
	}
	if err := s.users.Replace(users); err != nil {
		logf("ERROR: writing %s: %v", store.UsersFile, err)
		return lines, err
	}
	logf("Wrote %s with %d accounts", store.UsersFile, len(users))
	logf("Templates kept")
	logf("Factory reset complete")
	return lines, nil
}
