package dag

import (
	"reflect"
	"testing"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph()

	g.AddNode("db.a", core.KindTable)
	g.AddNode("db.b", core.KindView)
	g.AddNode("db.c", core.KindView)

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	// b reads a
	if err := g.AddEdge("db.a", "db.b"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	// c reads b
	if err := g.AddEdge("db.b", "db.c"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if !g.HasEdge("db.a", "db.b") || g.HasEdge("db.b", "db.a") {
		t.Error("HasEdge should follow edge direction")
	}
}

func TestGraph_AddNode_KindUpgrade(t *testing.T) {
	g := NewGraph()
	g.AddNode("db.x", core.KindTable)
	g.AddNode("db.x", core.KindView)
	g.AddNode("db.x", core.KindTable)

	node, ok := g.GetNode("db.x")
	if !ok {
		t.Fatal("node should exist")
	}
	if node.Kind != core.KindView {
		t.Errorf("expected view kind to stick, got %q", node.Kind)
	}
	if g.NodeCount() != 1 {
		t.Errorf("expected 1 node, got %d", g.NodeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindTable)

	err := g.AddEdge("a", "nonexistent")
	if err == nil {
		t.Error("expected error for nonexistent child node")
	}

	err = g.AddEdge("nonexistent", "a")
	if err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindView)

	if err := g.AddEdge("a", "a"); err != nil {
		t.Fatalf("self-loop should be allowed: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", g.EdgeCount())
	}

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("self-loop should be reported as a cycle")
	}
	if !reflect.DeepEqual(path, []string{"a", "a"}) {
		t.Errorf("expected cycle path [a a], got %v", path)
	}
}

func TestGraph_GetParentsAndChildren(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindTable)
	g.AddNode("b", core.KindView)
	g.AddNode("c", core.KindView)

	// b depends on a, c depends on both a and b
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")

	parents := g.GetParents("c")
	if !reflect.DeepEqual(parents, []string{"a", "b"}) {
		t.Errorf("expected sorted parents [a b], got %v", parents)
	}

	children := g.GetChildren("a")
	if !reflect.DeepEqual(children, []string{"b", "c"}) {
		t.Errorf("expected sorted children [b c], got %v", children)
	}
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindTable)
	g.AddNode("b", core.KindView)
	g.AddNode("c", core.KindView)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")

	if hasCycle, _ := g.HasCycle(); hasCycle {
		t.Error("expected no cycle")
	}
}

func TestGraph_HasCycle_WithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindView)
	g.AddNode("b", core.KindView)
	g.AddNode("c", core.KindView)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle")
	}
	if !reflect.DeepEqual(path, []string{"a", "b", "c", "a"}) {
		t.Errorf("unexpected cycle path %v", path)
	}
}

func TestGraph_NodesOfKind(t *testing.T) {
	g := NewGraph()
	g.AddNode("db.v2", core.KindView)
	g.AddNode("db.t", core.KindTable)
	g.AddNode("db.v1", core.KindView)

	views := g.NodesOfKind(core.KindView)
	if len(views) != 2 || views[0].ID != "db.v1" || views[1].ID != "db.v2" {
		t.Errorf("unexpected views %v", views)
	}
	tables := g.NodesOfKind(core.KindTable)
	if len(tables) != 1 || tables[0].ID != "db.t" {
		t.Errorf("unexpected tables %v", tables)
	}
}

func TestGraph_Edges_Sorted(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"t1", "t2", "v1", "v2"} {
		g.AddNode(id, core.KindTable)
	}
	_ = g.AddEdge("t2", "v2")
	_ = g.AddEdge("t1", "v2")
	_ = g.AddEdge("t2", "v1")
	_ = g.AddEdge("v1", "v2")

	want := []Edge{
		{Source: "t2", Target: "v1"},
		{Source: "t1", Target: "v2"},
		{Source: "t2", Target: "v2"},
		{Source: "v1", Target: "v2"},
	}
	if got := g.Edges(); !reflect.DeepEqual(got, want) {
		t.Errorf("Edges() = %v, want %v", got, want)
	}
}

func TestGraph_GetAffectedNodes(t *testing.T) {
	g := NewGraph()
	// a -> b -> c
	//   -> d
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		g.AddNode(id, core.KindView)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("a", "d")

	affected := g.GetAffectedNodes([]string{"b"})
	if !reflect.DeepEqual(affected, []string{"b", "c"}) {
		t.Errorf("expected [b c], got %v", affected)
	}

	affected = g.GetAffectedNodes([]string{"a", "missing"})
	if !reflect.DeepEqual(affected, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected [a b c d], got %v", affected)
	}
}

func TestGraph_GetUpstreamNodes(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, core.KindView)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("d", "c")

	upstream := g.GetUpstreamNodes("c")
	if !reflect.DeepEqual(upstream, []string{"a", "b", "d"}) {
		t.Errorf("expected [a b d], got %v", upstream)
	}
	if len(g.GetUpstreamNodes("a")) != 0 {
		t.Error("root should have no upstream nodes")
	}
}

func TestGraph_Neighborhood(t *testing.T) {
	g := NewGraph()
	// a -> b -> c, x -> c, b -> y, z isolated
	for _, id := range []string{"a", "b", "c", "x", "y", "z"} {
		g.AddNode(id, core.KindView)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("x", "c")
	_ = g.AddEdge("b", "y")

	got := g.Neighborhood("b")
	if !reflect.DeepEqual(got, []string{"a", "b", "c", "y"}) {
		t.Errorf("expected [a b c y], got %v", got)
	}
	if g.Neighborhood("missing") != nil {
		t.Error("expected nil for unknown node")
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindTable)
	g.AddNode("b", core.KindView)
	g.AddNode("c", core.KindView)
	g.AddNode("d", core.KindView)
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "d")

	sub := g.Subgraph([]string{"a", "b", "c", "unknown"})

	if sub.NodeCount() != 3 {
		t.Errorf("expected 3 nodes in subgraph, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 2 {
		t.Errorf("expected 2 edges in subgraph, got %d", sub.EdgeCount())
	}
	if node, _ := sub.GetNode("a"); node == nil || node.Kind != core.KindTable {
		t.Error("subgraph should keep node kinds")
	}
	if _, ok := sub.GetNode("d"); ok {
		t.Error("d should not be in subgraph")
	}
}

func TestGraph_DisconnectedComponents(t *testing.T) {
	g := NewGraph()
	// Component 1: a -> b
	g.AddNode("a", core.KindTable)
	g.AddNode("b", core.KindView)
	_ = g.AddEdge("a", "b")
	// Component 2: isolated view
	g.AddNode("z", core.KindView)

	if !g.IsIsolated("z") {
		t.Error("z should be isolated")
	}
	if g.IsIsolated("a") || g.IsIsolated("b") {
		t.Error("a and b have edges")
	}

	nodes := g.GetAllNodes()
	if len(nodes) != 3 || nodes[0].ID != "a" || nodes[2].ID != "z" {
		t.Errorf("unexpected node order %v", nodes)
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", core.KindTable)
	g.AddNode("b", core.KindView)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge (duplicates ignored), got %d", g.EdgeCount())
	}
	if len(g.GetParents("b")) != 1 {
		t.Errorf("expected 1 parent, got %d", len(g.GetParents("b")))
	}
}
