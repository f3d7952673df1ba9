// Package schema validates JSON documents against embedded JSON Schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("document does not match schema")

// Violation is one leaf failure reported by the validator.
type Violation struct {
	Path    string
	Message string
}

// Error lists the violations found in a document.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return ErrInvalid.Error()
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		if v.Path == "" {
			parts = append(parts, v.Message)
			continue
		}
		parts = append(parts, v.Path+": "+v.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Schema is a compiled schema.
type Schema struct {
	s *jsonschema.Schema
}

// Compile compiles a schema document registered under name.
func Compile(name, src string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	url := "mem://" + name
	if err := compiler.AddResource(url, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{s: s}, nil
}

// MustCompile is Compile for package-level schemas; it panics on error.
func MustCompile(name, src string) *Schema {
	s, err := Compile(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks raw JSON against the schema. Malformed JSON and schema
// violations are both reported as *Error.
func (s *Schema) Validate(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return &Error{Violations: []Violation{{Message: "malformed JSON: " + err.Error()}}}
	}
	if err := s.s.Validate(doc); err != nil {
		return toError(err)
	}
	return nil
}

func toError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &Error{Violations: []Violation{{Message: err.Error()}}}
	}
	out := &Error{}
	collect(out, ve)
	return out
}

func collect(out *Error, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		out.Violations = append(out.Violations, Violation{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collect(out, cause)
	}
}

// pointerToPath turns a JSON pointer like /phases/0/tasks into phases[0].tasks.
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
