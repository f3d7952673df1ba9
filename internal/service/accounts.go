package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/validation"
)

const (
	resetPasswordLen      = 12
	resetPasswordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Register creates a non-admin account with its data directory.
func (s *Service) Register(ctx context.Context, username, email, password string) (models.UserView, error) {
	gs, err := s.globals.Load()
	if err != nil {
		observability.RegistrationsTotal.WithLabelValues("error").Inc()
		return models.UserView{}, err
	}
	if !gs.RegistrationEnabled {
		observability.RegistrationsTotal.WithLabelValues("disabled").Inc()
		return models.UserView{}, ErrRegistrationDisabled
	}

	name, err := validation.ValidateUsername(username)
	if err == nil {
		email, err = validation.ValidateEmail(email)
	}
	if err == nil {
		err = validation.ValidatePassword(password)
	}
	if err != nil {
		observability.RegistrationsTotal.WithLabelValues("rejected").Inc()
		return models.UserView{}, err
	}

	u := models.User{ID: uuid.NewString(), Email: email, Password: password}
	err = s.users.Modify(func(users map[string]models.User) error {
		if _, ok := users[name]; ok {
			return ErrUserExists
		}
		users[name] = u
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, ErrUserExists) {
			result = "rejected"
		}
		observability.RegistrationsTotal.WithLabelValues(result).Inc()
		return models.UserView{}, err
	}
	if err := s.data.EnsureUserDir(u.ID); err != nil {
		observability.RegistrationsTotal.WithLabelValues("error").Inc()
		if rbErr := s.users.Delete(name); rbErr != nil {
			s.loggerFromContext(ctx).Error("registration rollback failed",
				zap.String("username", name), zap.Error(rbErr))
		}
		return models.UserView{}, fmt.Errorf("create data for %s: %w", name, err)
	}
	observability.RegistrationsTotal.WithLabelValues("created").Inc()
	s.record(ctx, u.ID, "register", "")
	s.loggerFromContext(ctx).Info("user registered", zap.String("username", name), zap.String("userId", u.ID))
	return models.UserView{ID: u.ID, Username: name, Email: u.Email}, nil
}

// Authenticate checks the credentials and returns the account view.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.UserView, error) {
	username = strings.TrimSpace(username)
	u, err := s.users.Get(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			observability.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			return models.UserView{}, ErrInvalidCredentials
		}
		observability.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return models.UserView{}, err
	}
	if subtle.ConstantTimeCompare([]byte(u.Password), []byte(password)) != 1 {
		observability.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return models.UserView{}, ErrInvalidCredentials
	}
	observability.LoginAttemptsTotal.WithLabelValues("success").Inc()
	if err := s.data.EnsureUserDir(u.ID); err != nil {
		s.loggerFromContext(ctx).Warn("ensure user dir failed", zap.String("userId", u.ID), zap.Error(err))
	}
	s.record(ctx, u.ID, "login", "")
	return models.UserView{ID: u.ID, Username: username, Email: u.Email, IsAdmin: u.IsAdmin}, nil
}

// CurrentUser resolves a session's account by ID, so a renamed account keeps
// its session and reports its new username. It returns ErrUserNotFound when
// the account was deleted since login.
func (s *Service) CurrentUser(userID string) (models.UserView, error) {
	name, u, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.UserView{}, ErrUserNotFound
		}
		return models.UserView{}, err
	}
	return models.UserView{ID: u.ID, Username: name, Email: u.Email, IsAdmin: u.IsAdmin}, nil
}

// ListUsers returns every account sorted by username, without passwords.
func (s *Service) ListUsers(ctx context.Context) ([]models.UserView, error) {
	users, err := s.users.All()
	if err != nil {
		return nil, err
	}
	out := make([]models.UserView, 0, len(users))
	for name, u := range users {
		out = append(out, models.UserView{ID: u.ID, Username: name, Email: u.Email, IsAdmin: u.IsAdmin})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// UserUpdate carries the fields an administrator may change. Nil fields are left as is.
// ResetPassword takes precedence over every other field.
type UserUpdate struct {
	Username      *string `json:"username"`
	Email         *string `json:"email"`
	IsAdmin       *bool   `json:"isAdmin"`
	ResetPassword bool    `json:"reset_password"`
}

// UpdateUser applies upd to the account with the given ID on behalf of actorID.
// A password reset returns the generated password; it is not retrievable later.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, upd UserUpdate) (string, error) {
	var newPassword string
	if upd.ResetPassword {
		pw, err := randomPassword()
		if err != nil {
			return "", err
		}
		newPassword = pw
	}

	var name, email string
	if !upd.ResetPassword {
		if upd.Username != nil {
			n, err := validation.ValidateUsername(*upd.Username)
			if err != nil {
				return "", err
			}
			name = n
		}
		if upd.Email != nil && *upd.Email != "" {
			e, err := validation.ValidateEmail(*upd.Email)
			if err != nil {
				return "", err
			}
			email = e
		}
		if upd.IsAdmin != nil && !*upd.IsAdmin && id == actorID {
			return "", ErrSelfDemote
		}
	}

	current, u, err := s.users.FindByID(id)
	if err != nil {
		return "", accountErr(err)
	}
	action := "password_reset"
	if upd.ResetPassword {
		u.Password = newPassword
	} else {
		action = "account_updated"
		if upd.Email != nil {
			u.Email = email
		}
		if upd.IsAdmin != nil {
			u.IsAdmin = *upd.IsAdmin
		}
		if name != "" && name != current {
			if err := s.users.Rename(current, name); err != nil {
				return "", accountErr(err)
			}
			current = name
		}
	}
	if err := s.users.Put(current, u); err != nil {
		return "", err
	}
	s.record(ctx, id, action, "")
	s.loggerFromContext(ctx).Info("user updated by admin",
		zap.String("userId", id), zap.String("adminId", actorID), zap.String("action", action))
	return newPassword, nil
}

// DeleteUser removes the account and its data directory.
func (s *Service) DeleteUser(ctx context.Context, actorID, id string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	name, _, err := s.users.FindByID(id)
	if err == nil {
		err = s.users.Delete(name)
	}
	if err != nil {
		return accountErr(err)
	}
	if err := s.data.RemoveUserDir(id); err != nil {
		return fmt.Errorf("remove data for %s: %w", id, err)
	}
	s.loggerFromContext(ctx).Info("user deleted by admin", zap.String("userId", id), zap.String("adminId", actorID))
	return nil
}

// accountErr maps registry lookup errors to the service's account errors.
func accountErr(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrUserNotFound
	case errors.Is(err, store.ErrExists):
		return ErrUserExists
	}
	return err
}

func randomPassword() (string, error) {
	b := make([]byte, resetPasswordLen)
	max := big.NewInt(int64(len(resetPasswordAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = resetPasswordAlphabet[n.Int64()]
	}
	return string(b), nil
}
