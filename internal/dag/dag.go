// Package dag provides the dependency graph between ClickHouse tables and views.
// Edges point from a relation to the view that reads it. The graph may contain
// cycles, including self-loops, and disconnected components.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/chviewgraph/pkg/core"
)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier (qualified name)
	ID string
	// Kind is table or view
	Kind core.NodeKind
	// Ambiguous is set when some name added under this ID had a dotted
	// schema or name part, so the ID may stand for more than one entity.
	Ambiguous bool
}

// Edge is a dependency: Target reads from Source.
type Edge struct {
	Source string
	Target string
}

// Graph represents a directed dependency graph.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph. Adding an existing node as a view
// upgrades it from table; a view is never downgraded.
func (g *Graph) AddNode(id string, kind core.NodeKind) {
	if node, exists := g.nodes[id]; exists {
		if kind == core.KindView {
			node.Kind = core.KindView
		}
		return
	}
	g.nodes[id] = &Node{ID: id, Kind: kind}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Self-loops are allowed.
func (g *Graph) AddEdge(parentID, childID string) error {
	// Ensure both nodes exist
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	// Add edge (avoid duplicates)
	if !contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}

	return nil
}

// AddQualifiedNode adds the node for name, keyed by name.String(), and
// marks it ambiguous when name has a dotted part.
func (g *Graph) AddQualifiedNode(name core.QualifiedName, kind core.NodeKind) {
	id := name.String()
	g.AddNode(id, kind)
	if name.HasDottedPart() {
		g.nodes[id].Ambiguous = true
	}
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node, sorted.
func (g *Graph) GetParents(id string) []string {
	return sortedCopy(g.parents[id])
}

// GetChildren returns the children (dependents) of a node, sorted.
func (g *Graph) GetChildren(id string) []string {
	return sortedCopy(g.edges[id])
}

// GetAllNodes returns all nodes in the graph sorted by ID.
func (g *Graph) GetAllNodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	// Sort for deterministic output
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

// NodesOfKind returns the nodes of one kind sorted by ID.
func (g *Graph) NodesOfKind(kind core.NodeKind) []*Node {
	var nodes []*Node
	for _, node := range g.GetAllNodes() {
		if node.Kind == kind {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Edges returns every edge sorted by (target, source).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for parent, children := range g.edges {
		for _, child := range children {
			edges = append(edges, Edge{Source: parent, Target: child})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Source < edges[j].Source
	})
	return edges
}

// HasEdge reports whether child depends on parent.
func (g *Graph) HasEdge(parentID, childID string) bool {
	return contains(g.edges[parentID], childID)
}

// IsIsolated reports whether a node has no incoming or outgoing edges.
func (g *Graph) IsIsolated(id string) bool {
	return len(g.edges[id]) == 0 && len(g.parents[id]) == 0
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

// HasCycle returns true if the graph contains a cycle, along with the cycle path.
// A self-loop is reported as the path [id, id].
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string) // Track the path for error reporting

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, childID := range g.GetChildren(id) {
			if !visited[childID] {
				path[childID] = id
				if dfs(childID) {
					return true
				}
			} else if recStack[childID] {
				// Found cycle, reconstruct path
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	// Visit in sorted order so the reported cycle is stable
	for _, node := range g.GetAllNodes() {
		if !visited[node.ID] {
			if dfs(node.ID) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// GetAffectedNodes returns all nodes affected by changes to the given nodes.
// This includes the changed nodes and all their downstream dependents.
func (g *Graph) GetAffectedNodes(changedIDs []string) []string {
	affected := make(map[string]bool)

	var markAffected func(id string)
	markAffected = func(id string) {
		if affected[id] {
			return
		}
		affected[id] = true

		// Mark all children as affected
		for _, childID := range g.edges[id] {
			markAffected(childID)
		}
	}

	for _, id := range changedIDs {
		if _, exists := g.nodes[id]; exists {
			markAffected(id)
		}
	}

	result := make([]string, 0, len(affected))
	for id := range affected {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// GetUpstreamNodes returns all nodes upstream of the given node (its dependencies and their dependencies).
// The node itself is included only when it sits on a cycle.
func (g *Graph) GetUpstreamNodes(id string) []string {
	upstream := make(map[string]bool)

	var markUpstream func(nodeID string)
	markUpstream = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				markUpstream(parentID)
			}
		}
	}

	markUpstream(id)

	result := make([]string, 0, len(upstream))
	for nodeID := range upstream {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}

// Neighborhood returns the node, everything upstream of it and everything
// downstream of it, sorted. It returns nil if the node does not exist.
func (g *Graph) Neighborhood(id string) []string {
	if _, exists := g.nodes[id]; !exists {
		return nil
	}
	set := make(map[string]bool)
	for _, n := range g.GetUpstreamNodes(id) {
		set[n] = true
	}
	for _, n := range g.GetAffectedNodes([]string{id}) {
		set[n] = true
	}

	result := make([]string, 0, len(set))
	for n := range set {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// Subgraph returns a new graph containing only the specified nodes and their edges.
func (g *Graph) Subgraph(nodeIDs []string) *Graph {
	subgraph := NewGraph()
	nodeSet := make(map[string]bool)

	for _, id := range nodeIDs {
		if node, exists := g.nodes[id]; exists {
			nodeSet[id] = true
			subgraph.AddNode(id, node.Kind)
			subgraph.nodes[id].Ambiguous = node.Ambiguous
		}
	}

	// Add edges between included nodes
	for id := range nodeSet {
		for _, childID := range g.edges[id] {
			if nodeSet[childID] {
				_ = subgraph.AddEdge(id, childID)
			}
		}
	}

	return subgraph
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}
