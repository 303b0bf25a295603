// Package report reads and writes the view dependency report.
//
// The payload maps every parsed view to its direct dependencies and every
// failed view to its error message:
//
//	{"view_dependencies": {"db.v": ["db.t"]}, "errors": {"db.bad": "ParseError: ..."}}
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/chviewgraph/internal/dag"
	"github.com/leapstack-labs/chviewgraph/internal/engine"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Payload keys.
const (
	KeyViewDependencies = "view_dependencies"
	KeyErrors           = "errors"
)

// Report is the dependency report of one build.
type Report struct {
	ViewDependencies map[string][]string `json:"view_dependencies" yaml:"view_dependencies"`
	Errors           map[string]string   `json:"errors" yaml:"errors"`
}

// DecodeError is returned when a report payload is malformed.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FromResult converts a build result into a report.
func FromResult(res *engine.Result) *Report {
	r := &Report{
		ViewDependencies: make(map[string][]string, len(res.References)),
		Errors:           make(map[string]string, len(res.Failures)),
	}
	for view, refs := range res.References {
		deps := make([]string, len(refs))
		for i, ref := range refs {
			deps[i] = ref.String()
		}
		r.ViewDependencies[view] = deps
	}
	for _, f := range res.Failures {
		r.Errors[f.View.String()] = "ParseError: " + f.Detail()
	}
	return r
}

// Views returns every view named in the report, sorted.
func (r *Report) Views() []string {
	views := make([]string, 0, len(r.ViewDependencies)+len(r.Errors))
	for v := range r.ViewDependencies {
		views = append(views, v)
	}
	for v := range r.Errors {
		if _, ok := r.ViewDependencies[v]; !ok {
			views = append(views, v)
		}
	}
	slices.Sort(views)
	return views
}

// ToGraph rebuilds the dependency graph. Every view in the report becomes
// a view node, failed views included; other dependencies become tables.
func (r *Report) ToGraph() *dag.Graph {
	g := dag.NewGraph()
	views := r.Views()
	for _, v := range views {
		g.AddNode(v, core.KindView)
	}
	for _, v := range views {
		for _, dep := range r.ViewDependencies[v] {
			g.AddNode(dep, core.KindTable)
			// Both endpoints were just added.
			_ = g.AddEdge(dep, v)
		}
	}
	return g
}

// WriteJSON writes the report as indented JSON with sorted keys.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.normalized()); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteYAML writes the report as YAML.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.normalized()); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// normalized replaces nil maps and lists so they encode as {} and [].
func (r *Report) normalized() *Report {
	out := &Report{
		ViewDependencies: make(map[string][]string, len(r.ViewDependencies)),
		Errors:           make(map[string]string, len(r.Errors)),
	}
	for v, deps := range r.ViewDependencies {
		if deps == nil {
			deps = []string{}
		}
		out.ViewDependencies[v] = deps
	}
	for v, msg := range r.Errors {
		out.Errors[v] = msg
	}
	return out
}

// ReadJSON decodes a JSON report from r.
func ReadJSON(r io.Reader) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return DecodeJSON(data)
}

// DecodeJSON decodes a JSON report. A null dependency list counts as empty
// and the errors key is optional.
func DecodeJSON(data []byte) (*Report, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Message: "invalid JSON", Err: err}
	}
	return decode(raw)
}

// DecodeYAML decodes a YAML report with the same rules as DecodeJSON.
func DecodeYAML(data []byte) (*Report, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Message: "invalid YAML", Err: err}
	}
	return decode(raw)
}

func decode(raw any) (*Report, error) {
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, &DecodeError{Message: "top-level JSON must be an object"}
	}

	depsRaw, ok := top[KeyViewDependencies]
	if !ok {
		return nil, &DecodeError{Message: "missing required key " + KeyViewDependencies}
	}
	depsMap, ok := depsRaw.(map[string]any)
	if !ok {
		return nil, &DecodeError{Message: KeyViewDependencies + " must be a dictionary"}
	}

	r := &Report{
		ViewDependencies: make(map[string][]string, len(depsMap)),
		Errors:           make(map[string]string),
	}
	for view, v := range depsMap {
		deps, err := decodeDeps(view, v)
		if err != nil {
			return nil, err
		}
		r.ViewDependencies[view] = deps
	}

	errsRaw, ok := top[KeyErrors]
	if !ok || errsRaw == nil {
		return r, nil
	}
	errsMap, ok := errsRaw.(map[string]any)
	if !ok {
		return nil, &DecodeError{Message: KeyErrors + " must be a dictionary"}
	}
	for view, v := range errsMap {
		msg, ok := v.(string)
		if !ok {
			return nil, &DecodeError{Message: fmt.Sprintf("error for '%s' must be a string", view)}
		}
		r.Errors[view] = msg
	}
	return r, nil
}

func decodeDeps(view string, v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, &DecodeError{Message: fmt.Sprintf("dependencies for '%s' must be a list (or null)", view)}
	}
	deps := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &DecodeError{Message: fmt.Sprintf("dependencies for '%s' must be a list of strings", view)}
		}
		deps[i] = s
	}
	return deps, nil
}
