package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/kjstillabower/project-tracker-service/internal/models"
)

const (
	maxSettingLen = 32
	maxAboutMeLen = 2000
	maxProfileLen = 128
	maxAge        = 150
)

// Settings returns the owner's settings. Guests always see the defaults.
func (s *Service) Settings(ctx context.Context, o *Owner) (models.UserSettings, error) {
	if o.Guest {
		return models.DefaultUserSettings(), nil
	}
	return s.data.Settings(o.UserID)
}

// SaveSettings overlays the non-empty fields of upd onto the stored settings and
// returns the result. Guest settings are not persisted.
func (s *Service) SaveSettings(ctx context.Context, o *Owner, upd models.UserSettings) (models.UserSettings, error) {
	if utf8.RuneCountInString(upd.Theme) > maxSettingLen || utf8.RuneCountInString(upd.Design) > maxSettingLen {
		return models.UserSettings{}, fmt.Errorf("%w: values are limited to %d characters", ErrInvalidSettings, maxSettingLen)
	}
	current, err := s.Settings(ctx, o)
	if err != nil {
		return models.UserSettings{}, err
	}
	if upd.Theme != "" {
		current.Theme = upd.Theme
	}
	if upd.Design != "" {
		current.Design = upd.Design
	}
	if o.Guest {
		return current, nil
	}
	if err := s.data.SaveSettings(o.UserID, current); err != nil {
		return models.UserSettings{}, err
	}
	s.record(ctx, o.UserID, "settings_updated", "")
	return current, nil
}

// Profile returns the user's profile.
func (s *Service) Profile(ctx context.Context, userID string) (models.Profile, error) {
	return s.data.Profile(userID)
}

// SaveProfile replaces the user's profile. An empty picture keeps the standard one.
func (s *Service) SaveProfile(ctx context.Context, userID string, p models.Profile) (models.Profile, error) {
	if p.Age < 0 || p.Age > maxAge {
		return models.Profile{}, fmt.Errorf("%w: age must be between 0 and %d", ErrInvalidSettings, maxAge)
	}
	if utf8.RuneCountInString(p.AboutMe) > maxAboutMeLen {
		return models.Profile{}, fmt.Errorf("%w: about me is limited to %d characters", ErrInvalidSettings, maxAboutMeLen)
	}
	for _, v := range []string{p.Picture, p.City, p.Country, p.PostCode} {
		if utf8.RuneCountInString(v) > maxProfileLen {
			return models.Profile{}, fmt.Errorf("%w: profile fields are limited to %d characters", ErrInvalidSettings, maxProfileLen)
		}
	}
	if p.Picture == "" {
		p.Picture = models.StandardProfilePicture
	}
	if err := s.data.SaveProfile(userID, p); err != nil {
		return models.Profile{}, err
	}
	s.record(ctx, userID, "profile_updated", "")
	return p, nil
}

// Logs returns the user's activity log, newest first.
func (s *Service) Logs(ctx context.Context, userID string) ([]models.ActivityEntry, error) {
	entries, err := s.data.Logs(userID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
