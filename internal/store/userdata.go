package store

import (
	"fmt"
	"os"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/validation"
)

const (
	// UserDataDir holds one directory per account, named by the account ID.
	UserDataDir = "user_data"

	projectsFile = "projects.json"
	settingsFile = "settings.json"
	profileFile  = "profile.json"
	logsFile     = "logs.json"
	imgDir       = "img"

	// MaxLogEntries bounds logs.json; older entries are dropped first.
	MaxLogEntries = 200
)

// UserDataStore holds the per-account documents below user_data/<id>/.
type UserDataStore struct {
	fs *FS
}

func NewUserDataStore(fs *FS) *UserDataStore {
	return &UserDataStore{fs: fs}
}

func (s *UserDataStore) dir(userID string) (string, error) {
	if _, err := validation.ValidateID(userID); err != nil {
		return "", fmt.Errorf("user id %q: %w", userID, err)
	}
	return s.fs.Path(UserDataDir, userID), nil
}

func (s *UserDataStore) file(userID, name string) (string, error) {
	dir, err := s.dir(userID)
	if err != nil {
		return "", err
	}
	return dir + string(os.PathSeparator) + name, nil
}

// EnsureUserDir creates the account directory with its image folder and writes
// default documents for any that do not exist yet.
func (s *UserDataStore) EnsureUserDir(userID string) error {
	dir, err := s.dir(userID)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dir + string(os.PathSeparator) + imgDir); err != nil {
		return err
	}
	defaults := []struct {
		name  string
		value any
	}{
		{projectsFile, map[string]models.Project{}},
		{settingsFile, models.DefaultUserSettings()},
		{logsFile, []models.ActivityEntry{}},
		{profileFile, models.DefaultProfile()},
	}
	for _, d := range defaults {
		path := dir + string(os.PathSeparator) + d.name
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := s.fs.WriteJSON(path, d.value); err != nil {
			return err
		}
	}
	return nil
}

// Projects returns the account's projects keyed by project ID.
func (s *UserDataStore) Projects(userID string) (map[string]models.Project, error) {
	path, err := s.file(userID, projectsFile)
	if err != nil {
		return nil, err
	}
	projects := make(map[string]models.Project)
	if _, err := s.fs.readOrDefault(path, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = make(map[string]models.Project)
	}
	return projects, nil
}

// UpdateProjects applies fn to the account's projects under the file lock.
func (s *UserDataStore) UpdateProjects(userID string, fn func(projects map[string]models.Project) error) error {
	path, err := s.file(userID, projectsFile)
	if err != nil {
		return err
	}
	projects := make(map[string]models.Project)
	return s.fs.Update(path, &projects, func(bool) error {
		if projects == nil {
			projects = make(map[string]models.Project)
		}
		return fn(projects)
	})
}

// SaveProjects replaces the account's projects.
func (s *UserDataStore) SaveProjects(userID string, projects map[string]models.Project) error {
	path, err := s.file(userID, projectsFile)
	if err != nil {
		return err
	}
	return s.fs.WriteJSON(path, projects)
}

// Settings returns the account's settings, defaults when none are stored.
func (s *UserDataStore) Settings(userID string) (models.UserSettings, error) {
	path, err := s.file(userID, settingsFile)
	if err != nil {
		return models.UserSettings{}, err
	}
	st := models.DefaultUserSettings()
	if _, err := s.fs.readOrDefault(path, &st); err != nil {
		return models.DefaultUserSettings(), err
	}
	return st, nil
}

// SaveSettings replaces the account's settings.
func (s *UserDataStore) SaveSettings(userID string, st models.UserSettings) error {
	path, err := s.file(userID, settingsFile)
	if err != nil {
		return err
	}
	return s.fs.WriteJSON(path, st)
}

// Profile returns the account's profile, defaults when none is stored.
func (s *UserDataStore) Profile(userID string) (models.Profile, error) {
	path, err := s.file(userID, profileFile)
	if err != nil {
		return models.Profile{}, err
	}
	p := models.DefaultProfile()
	if _, err := s.fs.readOrDefault(path, &p); err != nil {
		return models.DefaultProfile(), err
	}
	return p, nil
}

// SaveProfile replaces the account's profile.
func (s *UserDataStore) SaveProfile(userID string, p models.Profile) error {
	path, err := s.file(userID, profileFile)
	if err != nil {
		return err
	}
	return s.fs.WriteJSON(path, p)
}

// Logs returns the account's activity log, oldest first.
func (s *UserDataStore) Logs(userID string) ([]models.ActivityEntry, error) {
	path, err := s.file(userID, logsFile)
	if err != nil {
		return nil, err
	}
	var entries []models.ActivityEntry
	if _, err := s.fs.readOrDefault(path, &entries); err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.ActivityEntry{}
	}
	return entries, nil
}

// AppendLog adds an entry to the activity log, keeping at most MaxLogEntries.
func (s *UserDataStore) AppendLog(userID string, entry models.ActivityEntry) error {
	path, err := s.file(userID, logsFile)
	if err != nil {
		return err
	}
	var entries []models.ActivityEntry
	return s.fs.Update(path, &entries, func(bool) error {
		entries = append(entries, entry)
		if len(entries) > MaxLogEntries {
			entries = entries[len(entries)-MaxLogEntries:]
		}
		return nil
	})
}

// RemoveUserDir deletes the account directory and everything in it.
func (s *UserDataStore) RemoveUserDir(userID string) error {
	dir, err := s.dir(userID)
	if err != nil {
		return err
	}
	return s.fs.RemoveAll(dir)
}

// RemoveAll deletes the whole user_data directory.
func (s *UserDataStore) RemoveAll() error {
	return s.fs.RemoveAll(s.fs.Path(UserDataDir))
}
