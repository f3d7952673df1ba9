package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Project is a user-owned document: phases contain tasks, tasks optionally contain subtasks.
// Members the server does not model are kept in Extra at every level and
// written back unchanged.
type Project struct {
	ProjectID   string  `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Description string  `json:"description,omitempty"`
	Phases      []Phase `json:"phases"`
	Extra       Extra   `json:"-"`
}

type Phase struct {
	PhaseID    string    `json:"phaseId"`
	PhaseName  string    `json:"phaseName"`
	IsExpanded bool      `json:"isExpanded"`
	Completed  *bool     `json:"completed,omitempty"`
	Comments   []Comment `json:"comments,omitempty"`
	Tasks      []Task    `json:"tasks"`
	Extra      Extra     `json:"-"`
}

type Task struct {
	TaskID     string    `json:"taskId"`
	TaskName   string    `json:"taskName"`
	IsExpanded bool      `json:"isExpanded"`
	Completed  bool      `json:"completed"`
	Comments   []Comment `json:"comments,omitempty"`
	Subtasks   []Subtask `json:"subtasks"`
	Extra      Extra     `json:"-"`
}

type Subtask struct {
	SubtaskID   string    `json:"subtaskId"`
	SubtaskName string    `json:"subtaskName"`
	Completed   bool      `json:"completed"`
	Comments    []Comment `json:"comments,omitempty"`
	Extra       Extra     `json:"-"`
}

type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp Timestamp `json:"timestamp"`
	Extra     Extra     `json:"-"`
}

var (
	projectKeys = jsonKeys(reflect.TypeOf(Project{}))
	phaseKeys   = jsonKeys(reflect.TypeOf(Phase{}))
	taskKeys    = jsonKeys(reflect.TypeOf(Task{}))
	subtaskKeys = jsonKeys(reflect.TypeOf(Subtask{}))
	commentKeys = jsonKeys(reflect.TypeOf(Comment{}))
)

func (p *Project) UnmarshalJSON(b []byte) error {
	type plain Project
	if err := json.Unmarshal(b, (*plain)(p)); err != nil {
		return err
	}
	return p.Extra.collect(b, projectKeys)
}

func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return p.Extra.marshal(plain(p))
}

func (p *Phase) UnmarshalJSON(b []byte) error {
	type plain Phase
	if err := json.Unmarshal(b, (*plain)(p)); err != nil {
		return err
	}
	return p.Extra.collect(b, phaseKeys)
}

func (p Phase) MarshalJSON() ([]byte, error) {
	type plain Phase
	return p.Extra.marshal(plain(p))
}

func (t *Task) UnmarshalJSON(b []byte) error {
	type plain Task
	if err := json.Unmarshal(b, (*plain)(t)); err != nil {
		return err
	}
	return t.Extra.collect(b, taskKeys)
}

func (t Task) MarshalJSON() ([]byte, error) {
	type plain Task
	return t.Extra.marshal(plain(t))
}

func (s *Subtask) UnmarshalJSON(b []byte) error {
	type plain Subtask
	if err := json.Unmarshal(b, (*plain)(s)); err != nil {
		return err
	}
	return s.Extra.collect(b, subtaskKeys)
}

func (s Subtask) MarshalJSON() ([]byte, error) {
	type plain Subtask
	return s.Extra.marshal(plain(s))
}

func (c *Comment) UnmarshalJSON(b []byte) error {
	type plain Comment
	if err := json.Unmarshal(b, (*plain)(c)); err != nil {
		return err
	}
	return c.Extra.collect(b, commentKeys)
}

func (c Comment) MarshalJSON() ([]byte, error) {
	type plain Comment
	return c.Extra.marshal(plain(c))
}

// Extra holds object members without a struct field, keyed by member name.
type Extra map[string]json.RawMessage

// collect stores the members of object b that are not in known.
func (e *Extra) collect(b []byte, known map[string]bool) error {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	*e = nil
	for k, v := range all {
		if known[k] {
			continue
		}
		if *e == nil {
			*e = make(Extra)
		}
		(*e)[k] = v
	}
	return nil
}

// marshal encodes v, an object, and appends the extra members after its own.
func (e Extra) marshal(v any) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil || len(e) == 0 {
		return base, err
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	comma := len(bytes.TrimSpace(base[1:len(base)-1])) > 0
	for _, k := range keys {
		if comma {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(e[k])
		comma = true
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonKeys returns the member names encoded for the fields of struct type t.
func jsonKeys(t reflect.Type) map[string]bool {
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "-" || name == "" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// Timestamp holds a comment time as the browser sent it: a millisecond epoch
// written either as a JSON number or as a string. The raw JSON token is kept,
// so both forms are written back as they came in.
type Timestamp string

// Text returns the timestamp without JSON string quotes.
func (t Timestamp) Text() string {
	var s string
	if err := json.Unmarshal([]byte(t), &s); err == nil {
		return s
	}
	return string(t)
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if !json.Valid(b) {
		return fmt.Errorf("invalid timestamp %q", b)
	}
	*t = Timestamp(b)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte(`""`), nil
	}
	if !json.Valid([]byte(t)) {
		return json.Marshal(string(t))
	}
	return []byte(t), nil
}

// ProjectSummary is the dashboard view of a project.
type ProjectSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
}

// Template is a stored project blueprint.
type Template struct {
	Name string  `json:"name"`
	Data Project `json:"data"`
}

// TemplateSummary lists a template without its content.
type TemplateSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
