package store

import (
	"github.com/kjstillabower/project-tracker-service/internal/models"
)

// GlobalSettingsFile is the name of the administrator settings document.
const GlobalSettingsFile = "global_settings.json"

// GlobalSettingsStore holds global_settings.json.
type GlobalSettingsStore struct {
	fs   *FS
	path string
}

func NewGlobalSettingsStore(fs *FS) *GlobalSettingsStore {
	return &GlobalSettingsStore{fs: fs, path: fs.Path(GlobalSettingsFile)}
}

// Load returns the stored settings, or the defaults when none are stored.
// Fields absent from the file keep their default values.
func (s *GlobalSettingsStore) Load() (models.GlobalSettings, error) {
	gs := models.DefaultGlobalSettings()
	if _, err := s.fs.readOrDefault(s.path, &gs); err != nil {
		return models.DefaultGlobalSettings(), err
	}
	return gs, nil
}

// Save replaces the stored settings.
func (s *GlobalSettingsStore) Save(gs models.GlobalSettings) error {
	return s.fs.WriteJSON(s.path, gs)
}
