// Package store persists the application's JSON documents on the local filesystem.
//
// Every document is a whole file: reads decode the full file and writes replace
// it atomically (temp file then rename). Read-modify-write cycles go through
// Update, which serializes writers of the same file inside the process.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/traffic"
)

var (
	// ErrNotFound is returned when a requested record or file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned when a file exists but does not hold valid JSON.
	ErrCorrupt = errors.New("corrupt json document")
	// ErrExists is returned when a record key is already taken.
	ErrExists = errors.New("already exists")
)

const (
	dirMode  = 0o755
	fileMode = 0o600
)

// FS reads and writes JSON documents below a data root.
type FS struct {
	root     string
	logger   *zap.Logger
	outcomes *traffic.Tracker

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFS returns an FS rooted at root. outcomes may be nil; logger may be nil.
func NewFS(root string, logger *zap.Logger, outcomes *traffic.Tracker) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{
		root:     filepath.Clean(root),
		logger:   logger,
		outcomes: outcomes,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Root returns the data root directory.
func (f *FS) Root() string {
	return f.root
}

// Path joins elem onto the data root.
func (f *FS) Path(elem ...string) string {
	return filepath.Join(append([]string{f.root}, elem...)...)
}

func (f *FS) lock(path string) func() {
	f.mu.Lock()
	l, ok := f.locks[path]
	if !ok {
		l = &sync.Mutex{}
		f.locks[path] = l
	}
	f.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (f *FS) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StoreOperationsTotal.WithLabelValues(op, status).Inc()
	observability.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	f.outcomes.Record(err)
}

// ReadJSON decodes the file at path into v. It returns false with a nil error
// when the file is missing or empty. A file holding invalid JSON yields ErrCorrupt.
func (f *FS) ReadJSON(path string, v any) (bool, error) {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.observe("read", start, nil)
			return false, nil
		}
		err = fmt.Errorf("read %s: %w", path, err)
		f.observe("read", start, err)
		return false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		f.observe("read", start, nil)
		return false, nil
	}
	if !json.Valid(data) {
		f.observe("read", start, nil)
		return false, fmt.Errorf("%w: %s", ErrCorrupt, path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		f.observe("read", start, nil)
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	f.observe("read", start, nil)
	return true, nil
}

// readOrDefault is ReadJSON for callers that fall back to a default value on a
// missing or corrupt file. Corruption is logged.
func (f *FS) readOrDefault(path string, v any) (bool, error) {
	found, err := f.ReadJSON(path, v)
	if errors.Is(err, ErrCorrupt) {
		f.logger.Warn("corrupt document replaced by defaults", zap.String("path", path), zap.Error(err))
		return false, nil
	}
	return found, err
}

// WriteJSON encodes v with two-space indentation and atomically replaces path.
func (f *FS) WriteJSON(path string, v any) error {
	unlock := f.lock(path)
	defer unlock()
	return f.writeLocked(path, v)
}

func (f *FS) writeLocked(path string, v any) error {
	start := time.Now()
	err := writeFileAtomic(path, v)
	f.observe("write", start, err)
	return err
}

func writeFileAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), fileMode); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Update runs a read-modify-write cycle on path while holding the file's lock.
// v is filled from disk (left untouched when the file is missing or corrupt),
// fn mutates it, and v is written back when fn returns nil.
func (f *FS) Update(path string, v any, fn func(found bool) error) error {
	return f.update(path, v, fn, f.readOrDefault)
}

// UpdateStrict is Update for files that must not be rebuilt from defaults.
// A corrupt file yields ErrCorrupt and is left as it is.
func (f *FS) UpdateStrict(path string, v any, fn func(found bool) error) error {
	return f.update(path, v, fn, f.ReadJSON)
}

func (f *FS) update(path string, v any, fn func(found bool) error, read func(string, any) (bool, error)) error {
	unlock := f.lock(path)
	defer unlock()
	found, err := read(path, v)
	if err != nil {
		return err
	}
	if err := fn(found); err != nil {
		return err
	}
	return f.writeLocked(path, v)
}

// RemoveAll deletes path and everything below it. A missing path is not an error.
func (f *FS) RemoveAll(path string) error {
	start := time.Now()
	err := os.RemoveAll(path)
	if err != nil {
		err = fmt.Errorf("remove %s: %w", path, err)
	}
	f.observe("remove", start, err)
	return err
}

// MkdirAll creates a directory and its parents.
func (f *FS) MkdirAll(path string) error {
	if err := os.MkdirAll(path, dirMode); err != nil {
		return fmt.Errorf("create dir %s: %w", path, err)
	}
	return nil
}
