// Package structure compares a project directory with its declared layout in
// a manifest file, repairs drift, and keeps timestamped backups of what it changes.
package structure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/store"
)

const (
	// DefaultManifest is the manifest file name inside the base directory.
	DefaultManifest = "structure.json"
	// DefaultBackupDir is the backup directory name inside the base directory.
	DefaultBackupDir = "structure_backup"
	backupSuffix     = ".backup"
)

// DefaultIgnoredDirs are never scanned, reported or created.
var DefaultIgnoredDirs = []string{"__pycache__", ".git", ".vscode", "venv", DefaultBackupDir}

// Options configures a Tool. Zero values select the defaults.
type Options struct {
	BaseDir    string
	Manifest   string
	BackupDir  string
	IgnoreDirs []string
	Logger     *zap.Logger
	Now        func() time.Time
}

// Tool runs structure operations against one base directory.
type Tool struct {
	base      string
	manifest  string
	backupDir string
	ignored   map[string]bool
	fs        *store.FS
	logger    *zap.Logger
	now       func() time.Time
}

// New returns a Tool for opts.
func New(opts Options) (*Tool, error) {
	base := opts.BaseDir
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	t := &Tool{
		base:     abs,
		manifest: opts.Manifest,
		logger:   opts.Logger,
		now:      opts.Now,
		ignored:  make(map[string]bool),
	}
	if t.manifest == "" {
		t.manifest = DefaultManifest
	}
	t.backupDir = opts.BackupDir
	if t.backupDir == "" {
		t.backupDir = filepath.Join(abs, DefaultBackupDir)
	} else if !filepath.IsAbs(t.backupDir) {
		t.backupDir = filepath.Join(abs, t.backupDir)
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.now == nil {
		t.now = time.Now
	}
	for _, d := range DefaultIgnoredDirs {
		t.ignored[d] = true
	}
	for _, d := range opts.IgnoreDirs {
		t.ignored[d] = true
	}
	t.ignored[filepath.Base(t.backupDir)] = true
	t.fs = store.NewFS(abs, t.logger, nil)
	return t, nil
}

// BaseDir returns the absolute base directory.
func (t *Tool) BaseDir() string { return t.base }

// BackupDir returns the absolute backup directory.
func (t *Tool) BackupDir() string { return t.backupDir }

// NewLog returns a run log that mirrors to the tool's logger.
func (t *Tool) NewLog() *Log { return NewLog(t.logger) }

func (t *Tool) manifestPath() string {
	return filepath.Join(t.base, t.manifest)
}

func (t *Tool) abs(rel string) string {
	return filepath.Join(t.base, filepath.FromSlash(rel))
}

func (t *Tool) ignoredFile(name string) bool {
	return name == filepath.Base(t.manifest) || strings.Contains(name, backupSuffix)
}

// skip reports whether an entry is excluded from scans and checks. Top-level
// hidden entries are skipped in addition to ignored directories and files.
func (t *Tool) skip(rel string, isDir bool) bool {
	name := filepath.Base(rel)
	if !strings.Contains(rel, "/") && strings.HasPrefix(name, ".") {
		return true
	}
	if isDir {
		return t.ignored[name]
	}
	return t.ignoredFile(name)
}

// Scan builds a manifest tree from the current directory contents.
func (t *Tool) Scan() (*Node, error) {
	root := &Node{Name: filepath.Base(t.base), Type: TypeRoot, Children: []*Node{}}
	children, err := t.scanDir("")
	if err != nil {
		return nil, err
	}
	root.Children = children
	return root, nil
}

func (t *Tool) scanDir(rel string) ([]*Node, error) {
	entries, err := os.ReadDir(t.abs(rel))
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", rel, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := []*Node{}
	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		isDir := e.IsDir()
		if !isDir && e.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(t.abs(childRel)); err == nil {
				isDir = info.IsDir()
			}
		}
		if t.skip(childRel, isDir) {
			continue
		}
		if !isDir {
			out = append(out, &Node{Path: childRel, Type: TypeFile})
			continue
		}
		kids, err := t.scanDir(childRel)
		if err != nil {
			return nil, err
		}
		out = append(out, &Node{Path: childRel, Type: TypeDirectory, Children: kids})
	}
	return out, nil
}

// Generate writes a manifest describing the current directory. An existing
// manifest is first copied into a new backup session.
func (t *Tool) Generate(log *Log) (*Node, error) {
	observability.StructureRunsTotal.WithLabelValues("generate").Inc()
	log.info("Generating %s from the current project layout", t.manifest)

	if _, err := os.Stat(t.manifestPath()); err == nil {
		session, err := t.newSession()
		if err != nil {
			log.errorf("Could not create backup session: %v", err)
			return nil, err
		}
		if err := t.backupItem(session, t.manifest); err != nil {
			log.errorf("Backup of %s failed: %v", t.manifest, err)
			return nil, err
		}
		log.info("Existing %s saved in %s", t.manifest, filepath.Base(session))
	}

	root, err := t.Scan()
	if err != nil {
		log.errorf("Scan failed: %v", err)
		return nil, err
	}
	if err := t.fs.WriteJSON(t.manifestPath(), root); err != nil {
		log.errorf("Could not write %s: %v", t.manifest, err)
		return nil, err
	}
	log.success("%s written", t.manifest)
	return root, nil
}
