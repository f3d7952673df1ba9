package structure

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/kjstillabower/project-tracker-service/internal/schema"
)

// Node types used in a manifest.
const (
	TypeRoot      = "project_root"
	TypeDirectory = "directory"
	TypeFile      = "file"
)

var (
	ErrNoManifest      = errors.New("structure manifest not found")
	ErrInvalidManifest = errors.New("structure manifest is invalid")
)

// Node is an entry of the manifest tree. The root carries Name and type
// project_root; every other node carries a slash-separated Path relative to
// the base directory. Content is written when a missing file is created.
type Node struct {
	Name     string  `json:"name,omitempty"`
	Path     string  `json:"path,omitempty"`
	Type     string  `json:"type"`
	Content  *string `json:"content,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// MarshalJSON always emits children for the root and directories, even when empty.
func (n *Node) MarshalJSON() ([]byte, error) {
	type plain Node
	if n.Type == TypeFile {
		return json.Marshal((*plain)(n))
	}
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	return json.Marshal(struct {
		*plain
		Children []*Node `json:"children"`
	}{plain: (*plain)(n), Children: children})
}

// Walk calls fn for n's descendants in pre-order. The root itself is not visited.
func (n *Node) Walk(fn func(*Node)) {
	for _, c := range n.Children {
		fn(c)
		if c.Type == TypeDirectory {
			c.Walk(fn)
		}
	}
}

var manifestSchema = schema.MustCompile("structure.json", `{
  "type": "object",
  "required": ["type", "children"],
  "properties": {
    "name": {"type": "string"},
    "type": {"const": "project_root"},
    "children": {"type": "array", "items": {"$ref": "#/definitions/node"}}
  },
  "definitions": {
    "node": {
      "type": "object",
      "required": ["path", "type"],
      "properties": {
        "path": {"type": "string", "minLength": 1},
        "type": {"enum": ["directory", "file"]},
        "content": {"type": "string"},
        "children": {"type": "array", "items": {"$ref": "#/definitions/node"}}
      }
    }
  }
}`)

// ParseManifest validates raw against the manifest schema and decodes it.
// Paths must stay inside the base directory.
func ParseManifest(raw []byte) (*Node, error) {
	if err := manifestSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	var bad error
	root.Walk(func(n *Node) {
		if bad != nil {
			return
		}
		p, err := cleanRel(n.Path)
		if err != nil {
			bad = err
			return
		}
		n.Path = p
	})
	if bad != nil {
		return nil, bad
	}
	return &root, nil
}

// cleanRel normalizes a manifest path to slash form and rejects paths that leave the base.
func cleanRel(p string) (string, error) {
	p = path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if p == "." || path.IsAbs(p) || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: path %q escapes the base directory", ErrInvalidManifest, p)
	}
	return p, nil
}

// LoadManifest reads and validates the manifest file.
func (t *Tool) LoadManifest() (*Node, error) {
	raw, err := os.ReadFile(t.manifestPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(raw)
}

// FormatTree renders n as an indented listing, two spaces per level.
func FormatTree(n *Node) string {
	var b strings.Builder
	formatTree(&b, n, "")
	return b.String()
}

func formatTree(b *strings.Builder, n *Node, indent string) {
	icon := "📄"
	if n.Type != TypeFile {
		icon = "📁"
	}
	label := n.Path
	if n.Type == TypeRoot {
		label = n.Name
	}
	fmt.Fprintf(b, "%s%s %s\n", indent, icon, label)
	for _, c := range n.Children {
		formatTree(b, c, indent+"  ")
	}
}
