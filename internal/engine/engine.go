// Package engine builds the dependency graph of a set of ClickHouse views.
//
// Building runs in three phases: the view names are collected so references
// can be classified, every view is parsed and its references extracted
// (optionally in parallel), and the results are merged into one graph in
// input order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/chviewgraph/internal/dag"
	"github.com/leapstack-labs/chviewgraph/pkg/core"
	"github.com/leapstack-labs/chviewgraph/pkg/lineage"
	"github.com/leapstack-labs/chviewgraph/pkg/parser"
)

// Options configures a build.
type Options struct {
	// Concurrency bounds the number of views parsed at once.
	// 0 or 1 parses sequentially.
	Concurrency int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result is the outcome of a build.
type Result struct {
	// Graph holds one view node per distinct view and a table or view node
	// per referenced relation.
	Graph *dag.Graph
	// Failures lists views whose SQL could not be parsed, in input order.
	Failures []*ParseError
	// References maps each parsed view to its direct dependencies.
	References map[string][]core.QualifiedName
	// Unresolved lists referenced relations that are neither a known table
	// nor a view. They are rendered as tables.
	Unresolved []core.QualifiedName
	// Views lists the distinct views in input order.
	Views []core.QualifiedName
}

// HasFailures returns true if any view failed to parse.
func (r *Result) HasFailures() bool {
	return len(r.Failures) > 0
}

// viewResult is the per-view output of phase two.
type viewResult struct {
	refs []core.QualifiedName
	err  *ParseError
}

// Build parses every view, extracts its references and assembles the graph.
// Unparseable views are recorded in Result.Failures rather than failing the
// build; the returned error is non-nil only when ctx is cancelled.
func Build(ctx context.Context, views []core.ViewDefinition, knownTables []core.QualifiedName, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Phase 1: collect distinct view names.
	unique := make([]core.ViewDefinition, 0, len(views))
	viewSet := make(map[core.QualifiedName]bool, len(views))
	for _, v := range views {
		if viewSet[v.Name] {
			logger.Warn("duplicate view definition ignored", "view", v.Name.String())
			continue
		}
		viewSet[v.Name] = true
		unique = append(unique, v)
	}

	// Phase 2: parse and extract, one slot per view.
	results := make([]viewResult, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 1 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}
	for i := range unique {
		view := unique[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeView(view)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build cancelled: %w", err)
	}

	// Phase 3: merge in input order.
	known := make(map[core.QualifiedName]bool, len(knownTables))
	for _, t := range knownTables {
		known[t] = true
	}

	res := &Result{
		Graph:      dag.NewGraph(),
		References: make(map[string][]core.QualifiedName, len(unique)),
	}
	for _, v := range unique {
		res.Graph.AddQualifiedNode(v.Name, core.KindView)
		res.Views = append(res.Views, v.Name)
	}

	unresolved := make(map[core.QualifiedName]bool)
	for i, v := range unique {
		r := results[i]
		if r.err != nil {
			logger.Warn("failed to parse view", "view", v.Name.String(), "error", r.err.Message)
			res.Failures = append(res.Failures, r.err)
			continue
		}

		res.References[v.Name.String()] = r.refs
		logger.Debug("extracted view references", "view", v.Name.String(), "count", len(r.refs))

		for _, ref := range r.refs {
			kind := core.KindTable
			if viewSet[ref] {
				kind = core.KindView
			} else if !known[ref] {
				unresolved[ref] = true
			}
			res.Graph.AddQualifiedNode(ref, kind)
			if err := res.Graph.AddEdge(ref.String(), v.Name.String()); err != nil {
				return nil, fmt.Errorf("failed to add edge %s -> %s: %w", ref, v.Name, err)
			}
		}
	}

	for ref := range unresolved {
		res.Unresolved = append(res.Unresolved, ref)
	}
	slices.SortFunc(res.Unresolved, core.QualifiedName.Compare)

	logger.Debug("dependency graph built",
		"views", len(unique),
		"nodes", res.Graph.NodeCount(),
		"edges", res.Graph.EdgeCount(),
		"failures", len(res.Failures),
	)

	return res, nil
}

// analyzeView parses one view and extracts its references. Unqualified
// references default to the view's own database.
func analyzeView(view core.ViewDefinition) (res viewResult) {
	defer func() {
		if r := recover(); r != nil {
			res = viewResult{err: &ParseError{View: view.Name, Message: fmt.Sprintf("internal parser error: %v", r)}}
		}
	}()

	stmt, err := parser.Parse(view.SQL)
	if err != nil {
		return viewResult{err: newParseError(view.Name, err)}
	}
	refs := lineage.ExtractReferences(stmt, lineage.Options{DefaultSchema: view.Name.Schema})
	return viewResult{refs: refs}
}
