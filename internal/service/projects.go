package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/models"
	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/schema"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/validation"
)

// Owner identifies whose projects an operation works on. Registered users are
// backed by files; guests by GuestProjects, which the caller persists in the session.
type Owner struct {
	UserID        string
	Guest         bool
	GuestProjects map[string]models.Project
}

// UserOwner returns the owner for a registered user.
func UserOwner(userID string) *Owner {
	return &Owner{UserID: userID}
}

// GuestOwner returns the owner for a guest session's projects.
func GuestOwner(projects map[string]models.Project) *Owner {
	if projects == nil {
		projects = make(map[string]models.Project)
	}
	return &Owner{Guest: true, GuestProjects: projects}
}

func (o *Owner) kind() string {
	if o.Guest {
		return "guest"
	}
	return "user"
}

// LimitError reports which guest limit a write would exceed.
type LimitError struct {
	Limit string
	Max   int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("guest limit reached: at most %d %s", e.Max, limitNoun(e.Limit))
}

func (e *LimitError) Is(target error) bool {
	return target == ErrGuestLimit
}

func limitNoun(limit string) string {
	switch limit {
	case "projects":
		return "projects"
	case "phases_per_project":
		return "phases per project"
	case "tasks_per_phase":
		return "tasks per phase"
	case "subtasks_per_task":
		return "subtasks per task"
	}
	return limit
}

// Progress returns the completion percentage of p. Leaves are subtasks, or the
// task itself when it has none. Halves round to even; an empty project is 0.
func Progress(p models.Project) int {
	var total, done int
	for _, ph := range p.Phases {
		for _, t := range ph.Tasks {
			if len(t.Subtasks) > 0 {
				for _, st := range t.Subtasks {
					total++
					if st.Completed {
						done++
					}
				}
				continue
			}
			total++
			if t.Completed {
				done++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(done) / float64(total) * 100))
}

// DecodeProject validates a request body against the project schema and decodes it.
func DecodeProject(raw []byte) (models.Project, error) {
	if err := projectSchema.Validate(raw); err != nil {
		return models.Project{}, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	var p models.Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.Project{}, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	return p, nil
}

func (s *Service) projects(o *Owner) (map[string]models.Project, error) {
	if o.Guest {
		return o.GuestProjects, nil
	}
	return s.data.Projects(o.UserID)
}

// ListProjects returns the owner's projects sorted by name, then ID.
func (s *Service) ListProjects(ctx context.Context, o *Owner) ([]models.ProjectSummary, error) {
	projects, err := s.projects(o)
	if err != nil {
		return nil, err
	}
	out := make([]models.ProjectSummary, 0, len(projects))
	for id, p := range projects {
		out = append(out, models.ProjectSummary{ID: id, Name: p.ProjectName, Progress: Progress(p)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetProject returns the project and whether it exists.
func (s *Service) GetProject(ctx context.Context, o *Owner, id string) (models.Project, bool, error) {
	projects, err := s.projects(o)
	if err != nil {
		return models.Project{}, false, err
	}
	p, ok := projects[id]
	return p, ok, nil
}

// CreateProject stores p under its projectId and returns the ID.
func (s *Service) CreateProject(ctx context.Context, o *Owner, p models.Project) (string, error) {
	if p.ProjectID == "" {
		return "", ErrProjectIDRequired
	}
	id, err := validation.ValidateID(p.ProjectID)
	if err != nil {
		return "", ErrInvalidProjectID
	}
	p.ProjectID = id
	if err := s.put(ctx, o, id, p); err != nil {
		return "", err
	}
	observability.ProjectOperationsTotal.WithLabelValues("create", o.kind()).Inc()
	s.record(ctx, o.UserID, "project_created", id)
	return id, nil
}

// SaveProject replaces the project stored under id. A body without projectId takes id.
func (s *Service) SaveProject(ctx context.Context, o *Owner, id string, p models.Project) error {
	id, err := validation.ValidateID(id)
	if err != nil {
		return ErrInvalidProjectID
	}
	if p.ProjectID == "" {
		p.ProjectID = id
	}
	if err := s.put(ctx, o, id, p); err != nil {
		return err
	}
	observability.ProjectOperationsTotal.WithLabelValues("save", o.kind()).Inc()
	return nil
}

func (s *Service) put(ctx context.Context, o *Owner, id string, p models.Project) error {
	if o.Guest {
		gs, err := s.globals.Load()
		if err != nil {
			return err
		}
		if o.GuestProjects == nil {
			o.GuestProjects = make(map[string]models.Project)
		}
		if err := checkGuestLimits(gs.GuestLimits, o.GuestProjects, id, p); err != nil {
			var le *LimitError
			if errors.As(err, &le) {
				observability.GuestLimitRejectionsTotal.WithLabelValues(le.Limit).Inc()
			}
			s.loggerFromContext(ctx).Debug("guest limit rejected write", zap.String("projectId", id), zap.Error(err))
			return err
		}
		o.GuestProjects[id] = p
		return nil
	}
	return s.data.UpdateProjects(o.UserID, func(projects map[string]models.Project) error {
		projects[id] = p
		return nil
	})
}

// checkGuestLimits reports the first limit that storing p under id would exceed.
func checkGuestLimits(l models.GuestLimits, projects map[string]models.Project, id string, p models.Project) error {
	if _, exists := projects[id]; !exists && len(projects) >= l.Projects {
		return &LimitError{Limit: "projects", Max: l.Projects}
	}
	if len(p.Phases) > l.PhasesPerProject {
		return &LimitError{Limit: "phases_per_project", Max: l.PhasesPerProject}
	}
	for _, ph := range p.Phases {
		if len(ph.Tasks) > l.TasksPerPhase {
			return &LimitError{Limit: "tasks_per_phase", Max: l.TasksPerPhase}
		}
		for _, t := range ph.Tasks {
			if len(t.Subtasks) > l.SubtasksPerTask {
				return &LimitError{Limit: "subtasks_per_task", Max: l.SubtasksPerTask}
			}
		}
	}
	return nil
}

// DeleteProject removes the project; a missing project is not an error.
func (s *Service) DeleteProject(ctx context.Context, o *Owner, id string) error {
	if o.Guest {
		delete(o.GuestProjects, id)
	} else {
		err := s.data.UpdateProjects(o.UserID, func(projects map[string]models.Project) error {
			delete(projects, id)
			return nil
		})
		if err != nil {
			return err
		}
	}
	observability.ProjectOperationsTotal.WithLabelValues("delete", o.kind()).Inc()
	s.record(ctx, o.UserID, "project_deleted", id)
	return nil
}

// ResetAll drops every project. Registered users get the sample project back;
// guests are left with none.
func (s *Service) ResetAll(ctx context.Context, o *Owner) error {
	if o.Guest {
		o.GuestProjects = make(map[string]models.Project)
	} else {
		sample := InitialProject(false)
		if err := s.data.SaveProjects(o.UserID, map[string]models.Project{sample.ProjectID: sample}); err != nil {
			return err
		}
	}
	observability.ProjectOperationsTotal.WithLabelValues("reset", o.kind()).Inc()
	s.record(ctx, o.UserID, "projects_reset", "")
	return nil
}

// ListTemplates returns the available templates; guests get none.
func (s *Service) ListTemplates(ctx context.Context, o *Owner) ([]models.TemplateSummary, error) {
	if o.Guest {
		return []models.TemplateSummary{}, nil
	}
	return s.templates.List()
}

// GetTemplate returns a template's project content.
func (s *Service) GetTemplate(ctx context.Context, o *Owner, id string) (models.Project, error) {
	if o.Guest {
		return models.Project{}, ErrGuestForbidden
	}
	p, err := s.templates.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Project{}, ErrTemplateNotFound
	}
	return p, err
}

// InitialProject returns the sample project offered on first use.
func InitialProject(guest bool) models.Project {
	if guest {
		return models.Project{
			ProjectID:   "bsp_guest",
			ProjectName: "Beispielprojekt (Gast)",
			Phases: []models.Phase{{
				PhaseID:    "phase01",
				PhaseName:  "Erste Schritte",
				IsExpanded: true,
				Tasks: []models.Task{
					{TaskID: "task01", TaskName: "App erkunden", Subtasks: []models.Subtask{}},
				},
			}},
		}
	}
	return models.Project{
		ProjectID:   "p1",
		ProjectName: "Beispielprojekt",
		Phases: []models.Phase{{
			PhaseID:    "phase01",
			PhaseName:  "Planungsphase",
			IsExpanded: true,
			Tasks: []models.Task{{
				TaskID:     "task01",
				TaskName:   "Analyse",
				IsExpanded: true,
				Subtasks: []models.Subtask{
					{SubtaskID: "sub01", SubtaskName: "Anforderungen definieren", Completed: true},
					{SubtaskID: "sub02", SubtaskName: "Stakeholder befragen"},
				},
			}},
		}},
	}
}

var projectSchema = schema.MustCompile("project.json", projectSchemaJSON)

const projectSchemaJSON = `{
  "type": "object",
  "properties": {
    "projectId": {"type": "string"},
    "projectName": {"type": "string"},
    "description": {"type": ["string", "null"]},
    "phases": {"type": ["array", "null"], "items": {"$ref": "#/definitions/phase"}}
  },
  "definitions": {
    "comment": {
      "type": "object",
      "properties": {
        "author": {"type": "string"},
        "text": {"type": "string"},
        "timestamp": {"type": ["string", "number", "null"]}
      }
    },
    "comments": {"type": ["array", "null"], "items": {"$ref": "#/definitions/comment"}},
    "subtask": {
      "type": "object",
      "properties": {
        "subtaskId": {"type": "string"},
        "subtaskName": {"type": "string"},
        "completed": {"type": "boolean"},
        "comments": {"$ref": "#/definitions/comments"}
      }
    },
    "task": {
      "type": "object",
      "properties": {
        "taskId": {"type": "string"},
        "taskName": {"type": "string"},
        "isExpanded": {"type": "boolean"},
        "completed": {"type": "boolean"},
        "comments": {"$ref": "#/definitions/comments"},
        "subtasks": {"type": ["array", "null"], "items": {"$ref": "#/definitions/subtask"}}
      }
    },
    "phase": {
      "type": "object",
      "properties": {
        "phaseId": {"type": "string"},
        "phaseName": {"type": "string"},
        "isExpanded": {"type": "boolean"},
        "completed": {"type": "boolean"},
        "comments": {"$ref": "#/definitions/comments"},
        "tasks": {"type": ["array", "null"], "items": {"$ref": "#/definitions/task"}}
      }
    }
  }
}`
