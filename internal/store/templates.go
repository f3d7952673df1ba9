package store

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/validation"
)

// TemplateStore reads project templates from <dir>/<id>.json. Templates are read-only.
type TemplateStore struct {
	fs  *FS
	dir string
}

// NewTemplateStore returns a store over dir; an empty dir means <data root>/templates.
func NewTemplateStore(fs *FS, dir string) *TemplateStore {
	if dir == "" {
		dir = fs.Path("templates")
	}
	return &TemplateStore{fs: fs, dir: dir}
}

// List returns the templates that carry a name and a valid ID, sorted by ID. A
// missing directory yields an empty list; unreadable templates are skipped.
func (s *TemplateStore) List() ([]models.TemplateSummary, error) {
	out := []models.TemplateSummary{}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if valid, err := validation.ValidateID(id); err != nil || valid != id {
			continue
		}
		var t models.Template
		found, err := s.fs.ReadJSON(filepath.Join(s.dir, e.Name()), &t)
		if err != nil {
			s.fs.logger.Warn("template skipped", zap.String("template", id), zap.Error(err))
			continue
		}
		if !found || t.Name == "" {
			continue
		}
		out = append(out, models.TemplateSummary{ID: id, Name: t.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns the project content of the template or ErrNotFound.
func (s *TemplateStore) Get(id string) (models.Project, error) {
	if _, err := validation.ValidateID(id); err != nil {
		return models.Project{}, ErrNotFound
	}
	var t models.Template
	found, err := s.fs.ReadJSON(filepath.Join(s.dir, id+".json"), &t)
	if err != nil {
		return models.Project{}, err
	}
	if !found {
		return models.Project{}, ErrNotFound
	}
	return t.Data, nil
}
