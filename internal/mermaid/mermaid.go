// Package mermaid renders a dependency graph as a Mermaid flowchart.
//
// Output is deterministic: class definitions first, then table nodes and
// view nodes each sorted by name, then edges sorted by (target, source).
// Node names are emitted unquoted, so names outside a conservative
// character set are rejected with a *RenderError.
package mermaid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/chviewgraph/internal/dag"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Style classes assigned to nodes.
const (
	TableClass = "chTable"
	ViewClass  = "chView"

	tableClassDef = "classDef chTable fill:#ffdd00,stroke:#000000,stroke-width:2px,color:#000000"
	viewClassDef  = "classDef chView fill:#d6e4f8,stroke:#154360,stroke-width:2px,color:#154360"
)

// Default option values.
const (
	DefaultDirection = "LR"
	DefaultIndent    = "  "
)

// ErrInvalidDirection is returned for a direction other than LR, TB, RL or BT.
var ErrInvalidDirection = errors.New("direction must be one of LR, TB, RL, BT")

// nodeNameRE is the allow-list for unquoted flowchart node ids.
var nodeNameRE = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)

// Options configures rendering.
type Options struct {
	// Direction is the flowchart direction, LR by default.
	Direction string
	// Indent prefixes every line after the header, two spaces by default.
	Indent string
	// OmitIsolated drops nodes that have no edges.
	OmitIsolated bool
}

// RenderError reports a node name that cannot be emitted unquoted.
type RenderError struct {
	Name string
	// Ambiguous is set when the name is valid text but a quoted schema or
	// name part contained a dot, so distinct entities would share the node.
	Ambiguous bool
}

func (e *RenderError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("invalid node name for unquoted Mermaid output: %q (a quoted schema or name contains '.', so distinct relations would share one node)", e.Name)
	}
	return fmt.Sprintf("invalid node name for unquoted Mermaid output: %q (allowed pattern: [A-Za-z0-9_.:-]+, not ending in ':')", e.Name)
}

// ValidateName returns a *RenderError if name cannot be used as a node id.
func ValidateName(name string) error {
	if !nodeNameRE.MatchString(name) || strings.HasSuffix(name, ":") {
		return &RenderError{Name: name}
	}
	return nil
}

// NormalizeDirection trims and upper-cases d, defaulting to LR.
func NormalizeDirection(d string) (string, error) {
	d = strings.ToUpper(strings.TrimSpace(d))
	switch d {
	case "":
		return DefaultDirection, nil
	case "LR", "TB", "RL", "BT":
		return d, nil
	default:
		return "", ErrInvalidDirection
	}
}

// Render serializes g. The result ends with a newline.
func Render(g *dag.Graph, opts Options) (string, error) {
	direction, err := NormalizeDirection(opts.Direction)
	if err != nil {
		return "", err
	}
	indent := opts.Indent
	if indent == "" {
		indent = DefaultIndent
	}

	for _, node := range g.GetAllNodes() {
		if err := ValidateName(node.ID); err != nil {
			return "", err
		}
		if node.Ambiguous {
			return "", &RenderError{Name: node.ID, Ambiguous: true}
		}
	}

	var b strings.Builder
	b.WriteString("graph " + direction + "\n")
	b.WriteString(indent + tableClassDef + "\n")
	b.WriteString(indent + viewClassDef + "\n")

	writeNodes := func(kind core.NodeKind, class string) {
		for _, node := range g.NodesOfKind(kind) {
			if opts.OmitIsolated && g.IsIsolated(node.ID) {
				continue
			}
			b.WriteString(indent + node.ID + ":::" + class + "\n")
		}
	}
	writeNodes(core.KindTable, TableClass)
	writeNodes(core.KindView, ViewClass)

	for _, e := range g.Edges() {
		b.WriteString(indent + e.Source + " -.-> " + e.Target + "\n")
	}

	return b.String(), nil
}
