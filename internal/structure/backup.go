package structure

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
)

const sessionPrefix = "backup_"

var (
	ErrBackupNotFound   = errors.New("backup not found")
	ErrNothingSelected  = errors.New("no restorable files selected")
	ErrInvalidSelection = errors.New("invalid file selection")
)

// newSession creates backup_<n>_<timestamp> where n is one more than the
// number of existing backup sessions.
func (t *Tool) newSession() (string, error) {
	if err := os.MkdirAll(t.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}
	entries, err := os.ReadDir(t.backupDir)
	if err != nil {
		return "", fmt.Errorf("read backup dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), sessionPrefix) {
			n++
		}
	}
	stamp := t.now().Format("2006-01-02_15-04-05")
	for {
		n++
		p := filepath.Join(t.backupDir, fmt.Sprintf("%s%d_%s", sessionPrefix, n, stamp))
		err := os.Mkdir(p, 0o755)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create backup session: %w", err)
		}
	}
}

// backupItem copies rel into session, keeping its relative location. Every
// copied file gets the .backup suffix, including files inside directories.
func (t *Tool) backupItem(session, rel string) error {
	src := t.abs(rel)
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	dest := filepath.Join(session, filepath.FromSlash(rel))
	if !info.IsDir() {
		return copyFile(src, dest+backupSuffix, info)
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		r, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, r)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		fi, err := os.Stat(p)
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		return copyFile(p, target+backupSuffix, fi)
	})
}

// copyFile copies src to dest, creating parents and keeping mode and modification time.
func copyFile(src, dest string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// ListBackups returns the backup session names, oldest session number first.
func (t *Tool) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(t.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		ni, nj := sessionNumber(names[i]), sessionNumber(names[j])
		if ni != nj {
			return ni < nj
		}
		return names[i] < names[j]
	})
	return names, nil
}

// sessionNumber extracts n from backup_<n>_...; other names sort last.
func sessionNumber(name string) int {
	rest, ok := strings.CutPrefix(name, sessionPrefix)
	if !ok {
		return int(^uint(0) >> 1)
	}
	num, _, _ := strings.Cut(rest, "_")
	n, err := strconv.Atoi(num)
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// BackupFile is a restorable file inside a backup session.
type BackupFile struct {
	Index    int    `json:"index"`
	Original string `json:"original"`
	path     string
}

func (t *Tool) sessionPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", ErrBackupNotFound
	}
	p := filepath.Join(t.backupDir, name)
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return "", ErrBackupNotFound
	}
	return p, nil
}

// BackupFiles lists the restorable files of a session, numbered from 1.
func (t *Tool) BackupFiles(name string) ([]BackupFile, error) {
	session, err := t.sessionPath(name)
	if err != nil {
		return nil, err
	}
	files := []BackupFile{}
	err = filepath.WalkDir(session, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), backupSuffix) {
			return nil
		}
		rel, err := filepath.Rel(session, p)
		if err != nil {
			return err
		}
		files = append(files, BackupFile{
			Index:    len(files) + 1,
			Original: strings.TrimSuffix(filepath.ToSlash(rel), backupSuffix),
			path:     p,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", name, err)
	}
	return files, nil
}

// Selection picks files of a backup: all of them, or 1-based indices.
type Selection struct {
	All     bool
	Indices []int
}

// ParseSelection accepts "all" (or "alle") and comma-separated 1-based numbers.
func ParseSelection(s string) (Selection, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "all" || s == "alle" {
		return Selection{All: true}, nil
	}
	var sel Selection
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Selection{}, fmt.Errorf("%w: %q", ErrInvalidSelection, part)
		}
		sel.Indices = append(sel.Indices, n)
	}
	return sel, nil
}

func (s Selection) apply(files []BackupFile) []BackupFile {
	if s.All {
		return files
	}
	var out []BackupFile
	seen := make(map[int]bool)
	for _, i := range s.Indices {
		if i < 1 || i > len(files) || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, files[i-1])
	}
	return out
}

// Restore copies the selected files of a backup session back into the base
// directory, overwriting existing files. Out-of-range indices are ignored.
// It returns the number of files restored.
func (t *Tool) Restore(log *Log, name string, sel Selection) (int, error) {
	observability.StructureRunsTotal.WithLabelValues("restore").Inc()
	files, err := t.BackupFiles(name)
	if err != nil {
		log.errorf("%v: %s", err, name)
		return 0, err
	}
	if len(files) == 0 {
		log.info("Backup %s holds no restorable files", name)
		return 0, ErrNothingSelected
	}
	selected := sel.apply(files)
	if len(selected) == 0 {
		log.info("No valid files selected")
		return 0, ErrNothingSelected
	}
	restored := 0
	for _, f := range selected {
		if _, err := cleanRel(f.Original); err != nil {
			log.errorf("Skipping %s: %v", f.Original, err)
			continue
		}
		info, err := os.Stat(f.path)
		if err == nil {
			err = copyFile(f.path, t.abs(f.Original), info)
		}
		if err != nil {
			log.errorf("Restoring %s failed: %v", f.Original, err)
			continue
		}
		log.success("%s restored", f.Original)
		restored++
	}
	return restored, nil
}
