package structure

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
)

// Action kinds reported by Check.
const (
	ActionCreate = "create"
	ActionDelete = "delete_orphan"
)

// Action is one repair step: create a declared entry or remove an undeclared one.
type Action struct {
	Kind     string `json:"type"`
	Path     string `json:"path"`
	NodeType string `json:"nodeType"`
	node     *Node
}

// Report is the drift between manifest and directory.
type Report struct {
	Missing []Action `json:"missing"`
	Orphans []Action `json:"orphans"`
}

// Clean reports whether no drift was found.
func (r *Report) Clean() bool {
	return r == nil || len(r.Missing) == 0 && len(r.Orphans) == 0
}

// Actions returns missing entries followed by orphans.
func (r *Report) Actions() []Action {
	if r == nil {
		return nil
	}
	out := make([]Action, 0, len(r.Missing)+len(r.Orphans))
	out = append(out, r.Missing...)
	return append(out, r.Orphans...)
}

// Check compares the manifest with the directory. Declared entries that are
// absent are reported as missing. Present entries that are not declared are
// orphans; an orphan directory is reported once without its contents.
func (t *Tool) Check(log *Log) (*Report, error) {
	observability.StructureRunsTotal.WithLabelValues("check").Inc()
	root, err := t.LoadManifest()
	if err != nil {
		if errors.Is(err, ErrNoManifest) {
			log.errorf("%s not found", t.manifest)
		} else {
			log.errorf("%v", err)
		}
		return nil, err
	}
	log.info("Validating project layout against %s", t.manifest)

	declared := make(map[string]bool)
	report := &Report{Missing: []Action{}, Orphans: []Action{}}
	root.Walk(func(n *Node) {
		declared[n.Path] = true
		if _, err := os.Lstat(t.abs(n.Path)); errors.Is(err, os.ErrNotExist) {
			report.Missing = append(report.Missing, Action{Kind: ActionCreate, Path: n.Path, NodeType: n.Type, node: n})
		}
	})

	err = filepath.WalkDir(t.base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == t.base {
			return nil
		}
		rel, err := filepath.Rel(t.base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if t.skip(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if declared[rel] {
			return nil
		}
		kind := TypeFile
		if d.IsDir() {
			kind = TypeDirectory
		}
		report.Orphans = append(report.Orphans, Action{Kind: ActionDelete, Path: rel, NodeType: kind})
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		log.errorf("Walking %s failed: %v", t.base, err)
		return nil, fmt.Errorf("walk base dir: %w", err)
	}

	observability.RecordStructureDrift(len(report.Missing), len(report.Orphans))
	if report.Clean() {
		log.success("Project layout is complete and correct")
		return report, nil
	}
	for _, a := range report.Missing {
		log.warn("Missing: [%s] %s", strings.ToUpper(a.NodeType), a.Path)
	}
	for _, a := range report.Orphans {
		log.warn("Orphan: %s is not declared in %s", a.Path, t.manifest)
	}
	return report, nil
}

// ApplyResult summarizes a repair run.
type ApplyResult struct {
	Backup  string `json:"backup"`
	Created int    `json:"created"`
	Removed int    `json:"removed"`
	Failed  int    `json:"failed"`
}

// Apply repairs the drift in report. Orphans are copied into a new backup
// session before removal; missing entries are created, files with their
// declared content. Failures of single actions are logged and counted.
func (t *Tool) Apply(log *Log, report *Report) (ApplyResult, error) {
	observability.StructureRunsTotal.WithLabelValues("fix").Inc()
	var res ApplyResult
	if report.Clean() {
		log.info("Nothing to repair")
		return res, nil
	}
	session, err := t.newSession()
	if err != nil {
		log.errorf("Could not create backup session: %v", err)
		return res, err
	}
	res.Backup = filepath.Base(session)
	log.info("Backup session created: %s", res.Backup)

	for _, a := range report.Orphans {
		if err := t.backupItem(session, a.Path); err != nil {
			log.errorf("Backup of %s failed, left in place: %v", a.Path, err)
			res.Failed++
			continue
		}
		log.info("%s backed up", a.Path)
		if err := os.RemoveAll(t.abs(a.Path)); err != nil {
			log.errorf("Removing %s failed: %v", a.Path, err)
			res.Failed++
			continue
		}
		log.success("%s removed", a.Path)
		res.Removed++
	}

	for _, a := range report.Missing {
		if err := t.create(a); err != nil {
			log.errorf("Creating %s failed: %v", a.Path, err)
			res.Failed++
			continue
		}
		log.success("%s created", a.Path)
		res.Created++
	}
	if res.Failed == 0 {
		observability.RecordStructureDrift(0, 0)
	}
	return res, nil
}

func (t *Tool) create(a Action) error {
	p := t.abs(a.Path)
	if a.NodeType == TypeDirectory {
		return os.MkdirAll(p, 0o755)
	}
	if _, err := os.Lstat(p); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	var content string
	if a.node != nil && a.node.Content != nil {
		content = *a.node.Content
	}
	return os.WriteFile(p, []byte(content), 0o644)
}
