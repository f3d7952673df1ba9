package structure

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

// newTree creates files (paths ending in "/" are directories) under a temp base dir.
func newTree(t *testing.T, paths ...string) string {
	t.Helper()
	base := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(base, filepath.FromSlash(p))
		if strings.HasSuffix(p, "/") {
			require.NoError(t, os.MkdirAll(full, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+p), 0o644))
	}
	return base
}

func newTool(t *testing.T, base string) *Tool {
	t.Helper()
	tool, err := New(Options{BaseDir: base, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return tool
}

func paths(actions []Action) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Path)
	}
	return out
}

// TestScan_IgnoresAndSorts verifies ignored directories, backup files, hidden top-level entries and ordering.
func TestScan_IgnoresAndSorts(t *testing.T) {
	base := newTree(t,
		"b.txt", "a/z.json", "a/y.py", "a/old.py.backup", ".env",
		"__pycache__/x.pyc", "venv/bin/python", "structure_backup/backup_1/x.backup",
		"structure.json", "empty/",
	)
	tool := newTool(t, base)

	root, err := tool.Scan()

	require.NoError(t, err)
	assert.Equal(t, TypeRoot, root.Type)
	assert.Equal(t, filepath.Base(base), root.Name)
	var got []string
	root.Walk(func(n *Node) { got = append(got, n.Type+":"+n.Path) })
	assert.Equal(t, []string{"directory:a", "file:a/y.py", "file:a/z.json", "file:b.txt", "directory:empty"}, got)
}

// TestGenerate_WritesManifestAndBacksUpOld verifies manifest output and that a previous manifest is saved.
func TestGenerate_WritesManifestAndBacksUpOld(t *testing.T) {
	base := newTree(t, "app.go", "empty/")
	tool := newTool(t, base)
	require.NoError(t, os.WriteFile(filepath.Join(base, "structure.json"), []byte(`{"old":true}`), 0o644))

	_, err := tool.Generate(tool.NewLog())
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(base, "structure.json"))
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "project_root", doc["type"])
	children := doc["children"].([]interface{})
	require.Len(t, children, 2)
	empty := children[1].(map[string]interface{})
	assert.Equal(t, "empty", empty["path"])
	assert.Equal(t, []interface{}{}, empty["children"])
	_, hasChildren := children[0].(map[string]interface{})["children"]
	assert.False(t, hasChildren, "file nodes carry no children")

	backups, err := tool.ListBackups()
	require.NoError(t, err)
	require.Equal(t, []string{"backup_1_2025-03-04_05-06-07"}, backups)
	old, err := os.ReadFile(filepath.Join(tool.BackupDir(), backups[0], "structure.json.backup"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"old":true}`, string(old))
}

// TestCheck_CleanAfterGenerate verifies that a freshly generated manifest reports no drift.
func TestCheck_CleanAfterGenerate(t *testing.T) {
	base := newTree(t, "a/b.txt", "c.txt", ".hidden")
	tool := newTool(t, base)
	_, err := tool.Generate(nil)
	require.NoError(t, err)

	report, err := tool.Check(tool.NewLog())

	require.NoError(t, err)
	assert.True(t, report.Clean())
}

// TestCheck_FindsMissingAndOrphans verifies drift detection, including orphan directories reported once.
func TestCheck_FindsMissingAndOrphans(t *testing.T) {
	base := newTree(t, "keep.txt", "extra.txt", "junk/deep/file.txt")
	manifest := `{"name":"x","type":"project_root","children":[
	  {"path":"keep.txt","type":"file"},
	  {"path":"docs","type":"directory","children":[{"path":"docs/readme.md","type":"file","content":"# hi"}]}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(base, "structure.json"), []byte(manifest), 0o644))
	tool := newTool(t, base)
	log := tool.NewLog()

	report, err := tool.Check(log)

	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "docs/readme.md"}, paths(report.Missing))
	assert.Equal(t, []string{"extra.txt", "junk"}, paths(report.Orphans))
	assert.Equal(t, TypeDirectory, report.Orphans[1].NodeType)
	assert.Contains(t, log.String(), "[WARN]: Missing: [DIRECTORY] docs")
}

// TestApply_RepairsAndBacksUp verifies that Apply removes orphans after backing them up
// and creates missing entries with declared content.
func TestApply_RepairsAndBacksUp(t *testing.T) {
	base := newTree(t, "keep.txt", "extra.txt", "junk/deep/file.txt")
	manifest := `{"name":"x","type":"project_root","children":[
	  {"path":"keep.txt","type":"file"},
	  {"path":"docs","type":"directory","children":[{"path":"docs/readme.md","type":"file","content":"# hi"}]}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(base, "structure.json"), []byte(manifest), 0o644))
	tool := newTool(t, base)
	report, err := tool.Check(nil)
	require.NoError(t, err)

	res, err := tool.Apply(tool.NewLog(), report)

	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Backup: "backup_1_2025-03-04_05-06-07", Created: 2, Removed: 2}, res)
	readme, err := os.ReadFile(filepath.Join(base, "docs", "readme.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hi", string(readme))
	_, err = os.Stat(filepath.Join(base, "junk"))
	assert.True(t, os.IsNotExist(err))

	files, err := tool.BackupFiles(res.Backup)
	require.NoError(t, err)
	var originals []string
	for _, f := range files {
		originals = append(originals, f.Original)
	}
	assert.ElementsMatch(t, []string{"extra.txt", "junk/deep/file.txt"}, originals)

	again, err := tool.Check(nil)
	require.NoError(t, err)
	assert.True(t, again.Clean())
}

// TestRestore verifies restoring all files and a numeric selection, overwriting current content.
func TestRestore(t *testing.T) {
	base := newTree(t, "a.txt", "dir/b.txt")
	tool := newTool(t, base)
	session, err := tool.newSession()
	require.NoError(t, err)
	require.NoError(t, tool.backupItem(session, "a.txt"))
	require.NoError(t, tool.backupItem(session, "dir"))
	require.NoError(t, os.WriteFile(filepath.Join(base, "a.txt"), []byte("changed"), 0o644))
	require.NoError(t, os.RemoveAll(filepath.Join(base, "dir")))
	name := filepath.Base(session)

	sel, err := ParseSelection("1")
	require.NoError(t, err)
	n, err := tool.Restore(tool.NewLog(), name, sel)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := os.ReadFile(filepath.Join(base, "a.txt"))
	assert.Equal(t, "content of a.txt", string(got))

	n, err = tool.Restore(nil, name, Selection{All: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, _ = os.ReadFile(filepath.Join(base, "dir", "b.txt"))
	assert.Equal(t, "content of dir/b.txt", string(got))

	_, err = tool.Restore(nil, name, Selection{Indices: []int{9}})
	assert.ErrorIs(t, err, ErrNothingSelected)
	_, err = tool.Restore(nil, "../etc", Selection{All: true})
	assert.ErrorIs(t, err, ErrBackupNotFound)
}

// TestNewSession_Numbering verifies sequential session numbering within the same second.
func TestNewSession_Numbering(t *testing.T) {
	tool := newTool(t, t.TempDir())

	first, err := tool.newSession()
	require.NoError(t, err)
	second, err := tool.newSession()
	require.NoError(t, err)

	assert.Equal(t, "backup_1_2025-03-04_05-06-07", filepath.Base(first))
	assert.Equal(t, "backup_2_2025-03-04_05-06-07", filepath.Base(second))
}

// TestListBackups_NumericOrder verifies that session 10 sorts after session 2.
func TestListBackups_NumericOrder(t *testing.T) {
	tool := newTool(t, t.TempDir())
	for _, n := range []string{"backup_10_x", "backup_2_x", "manual"} {
		require.NoError(t, os.MkdirAll(filepath.Join(tool.BackupDir(), n), 0o755))
	}

	got, err := tool.ListBackups()

	require.NoError(t, err)
	assert.Equal(t, []string{"backup_2_x", "backup_10_x", "manual"}, got)
}

// TestParseSelection covers the accepted selection forms.
func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(" ALL ")
	require.NoError(t, err)
	assert.True(t, sel.All)

	sel, err = ParseSelection("1, 3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, sel.Indices)

	_, err = ParseSelection("1,x")
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

// TestParseManifest_Rejects verifies schema violations and escaping paths.
func TestParseManifest_Rejects(t *testing.T) {
	tests := map[string]string{
		"wrong root type": `{"type":"directory","children":[]}`,
		"bad node type":   `{"type":"project_root","children":[{"path":"a","type":"link"}]}`,
		"missing path":    `{"type":"project_root","children":[{"type":"file"}]}`,
		"escaping path":   `{"type":"project_root","children":[{"path":"../outside","type":"file"}]}`,
		"absolute path":   `{"type":"project_root","children":[{"path":"/etc/passwd","type":"file"}]}`,
		"not json":        `{`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseManifest([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

// TestCheck_NoManifest verifies the error when no manifest exists.
func TestCheck_NoManifest(t *testing.T) {
	tool := newTool(t, t.TempDir())

	_, err := tool.Check(nil)

	assert.ErrorIs(t, err, ErrNoManifest)
}

// TestReport verifies counts, extension grouping and JSON profiling.
func TestReport(t *testing.T) {
	base := newTree(t, "Makefile", "a/b.PY", "a/c.py", ".git/config", "venv/x.py")
	require.NoError(t, os.WriteFile(filepath.Join(base, "a", "d.json"), []byte(`{"x":{"y":[1,{"z":2}]},"w":3}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "broken.json"), []byte(`{`), 0o644))
	tool := newTool(t, base)
	log := tool.NewLog()

	a, err := tool.Report(log)

	require.NoError(t, err)
	assert.Equal(t, 1, a.FolderCount)
	assert.Equal(t, 5, a.FileCount)
	assert.Equal(t, map[string]int{NoExtension: 1, ".py": 2, ".json": 2}, a.FileTypes)
	require.Len(t, a.JSONFiles, 1)
	assert.Equal(t, JSONFileStats{Path: "a/d.json", Keys: 4, MaxDepth: 5}, a.JSONFiles[0])
	assert.Contains(t, log.String(), "broken.json")
	assert.NotNil(t, a.Structure)
	assert.Contains(t, a.Summary(), "  - .py: 2")
}

// TestFormatTree verifies the indented text rendering.
func TestFormatTree(t *testing.T) {
	root := &Node{Name: "proj", Type: TypeRoot, Children: []*Node{
		{Path: "a", Type: TypeDirectory, Children: []*Node{{Path: "a/b.txt", Type: TypeFile}}},
	}}

	assert.Equal(t, "📁 proj\n  📁 a\n    📄 a/b.txt\n", FormatTree(root))
}
