package structure

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kjstillabower/project-tracker-service/internal/observability"
)

// NoExtension is the file type key for files without an extension.
const NoExtension = ".<none>"

// JSONFileStats describes the shape of one JSON document.
type JSONFileStats struct {
	Path     string `json:"path"`
	Keys     int    `json:"keys"`
	MaxDepth int    `json:"max_depth"`
}

// Analysis is the output of Report.
type Analysis struct {
	ProjectName  string          `json:"project_name"`
	AnalysisDate time.Time       `json:"analysis_date"`
	FolderCount  int             `json:"folder_count"`
	FileCount    int             `json:"file_count"`
	FileTypes    map[string]int  `json:"file_types"`
	JSONFiles    []JSONFileStats `json:"json_files"`
	Structure    *Node           `json:"structure"`
}

// Report counts folders and files by extension below the base directory,
// profiles every JSON file, and includes the scanned layout. Only ignored
// directories are excluded; unreadable JSON files are logged and skipped.
func (t *Tool) Report(log *Log) (*Analysis, error) {
	observability.StructureRunsTotal.WithLabelValues("report").Inc()
	a := &Analysis{
		ProjectName:  filepath.Base(t.base),
		AnalysisDate: t.now(),
		FileTypes:    make(map[string]int),
		JSONFiles:    []JSONFileStats{},
	}
	err := filepath.WalkDir(t.base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == t.base {
			return nil
		}
		if d.IsDir() {
			if t.ignored[d.Name()] {
				return filepath.SkipDir
			}
			a.FolderCount++
			return nil
		}
		a.FileCount++
		ext := fileExt(d.Name())
		a.FileTypes[ext]++
		if ext != ".json" {
			return nil
		}
		rel, _ := filepath.Rel(t.base, p)
		rel = filepath.ToSlash(rel)
		stats, err := analyzeJSON(p)
		if err != nil {
			log.errorf("Could not analyze %s: %v", rel, err)
			return nil
		}
		stats.Path = rel
		a.JSONFiles = append(a.JSONFiles, stats)
		return nil
	})
	if err != nil {
		log.errorf("Walking %s failed: %v", t.base, err)
		return nil, fmt.Errorf("walk base dir: %w", err)
	}
	sort.Slice(a.JSONFiles, func(i, j int) bool { return a.JSONFiles[i].Path < a.JSONFiles[j].Path })

	a.Structure, err = t.Scan()
	if err != nil {
		log.errorf("Scan failed: %v", err)
		return nil, err
	}
	log.info("%d folders, %d files, %d JSON files analyzed", a.FolderCount, a.FileCount, len(a.JSONFiles))
	return a, nil
}

// fileExt returns the lower-cased extension. Names like ".env" have none.
func fileExt(name string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimLeft(name, ".")))
	if ext == "" {
		return NoExtension
	}
	return ext
}

// analyzeJSON counts object keys and the nesting depth of a document.
// A scalar document has depth 1; each object or array level adds one.
func analyzeJSON(path string) (JSONFileStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return JSONFileStats{}, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return JSONFileStats{}, err
	}
	var stats JSONFileStats
	var walk func(v interface{}, depth int)
	walk = func(v interface{}, depth int) {
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		switch x := v.(type) {
		case map[string]interface{}:
			for _, child := range x {
				stats.Keys++
				walk(child, depth+1)
			}
		case []interface{}:
			for _, child := range x {
				walk(child, depth+1)
			}
		}
	}
	walk(doc, 1)
	return stats, nil
}

// Summary renders the analysis as the text block shown by the CLI.
func (a *Analysis) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", a.ProjectName)
	fmt.Fprintf(&b, "Analyzed: %s\n", a.AnalysisDate.Format(time.RFC3339))
	fmt.Fprintf(&b, "Folders: %d\n", a.FolderCount)
	fmt.Fprintf(&b, "Files: %d\n", a.FileCount)
	b.WriteString("File types:\n")
	exts := make([]string, 0, len(a.FileTypes))
	for ext := range a.FileTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Fprintf(&b, "  - %s: %d\n", ext, a.FileTypes[ext])
	}
	fmt.Fprintf(&b, "JSON files analyzed: %d\n", len(a.JSONFiles))
	for _, f := range a.JSONFiles {
		fmt.Fprintf(&b, "  - %s: %d keys, depth %d\n", f.Path, f.Keys, f.MaxDepth)
	}
	return b.String()
}
