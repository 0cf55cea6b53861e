// Package dag provides the directed graph behind measure reference analysis.
// It supports cycle detection and grouping nodes into dependency levels.
package dag

import (
	"fmt"
	"slices"
	"sort"
)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier (measure name)
	ID string
	// Data holds arbitrary node data
	Data any
}

// Graph is a directed graph where an edge parent -> child means child
// depends on parent.
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

// AddNode adds a node to the graph, replacing the data of an existing one.
func (g *Graph) AddNode(id string, data any) {
	if n, exists := g.nodes[id]; exists {
		n.Data = data
		return
	}
	g.nodes[id] = &Node{ID: id, Data: data}
	g.edges[id] = []string{}
	g.parents[id] = []string{}
}

// AddEdge adds a directed edge from parent to child. Duplicate edges are ignored.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}
	if parentID == childID {
		return fmt.Errorf("self-loop detected: %s", parentID)
	}

	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node in insertion order.
func (g *Graph) GetParents(id string) []string {
	return g.parents[id]
}

// GetChildren returns the children (dependents) of a node in insertion order.
func (g *Graph) GetChildren(id string) []string {
	return g.edges[id]
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

// sortedIDs returns the node IDs in lexical order.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasCycle reports whether the graph contains a cycle, along with the cycle
// path starting and ending at the same node. Nodes are visited in lexical
// order, so the reported cycle is stable.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	from := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, childID := range g.edges[id] {
			if !visited[childID] {
				from[childID] = id
				if dfs(childID) {
					return true
				}
			} else if onStack[childID] {
				cyclePath = []string{childID}
				for curr := id; curr != childID; curr = from[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{childID}, cyclePath...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] && dfs(id) {
			return true, cyclePath
		}
	}
	return false, nil
}

// GetExecutionLevels groups nodes by the length of their longest dependency
// chain. Level 0 holds nodes without parents; every node sits one level below
// its deepest parent. Each level is sorted.
func (g *Graph) GetExecutionLevels() ([][]string, error) {
	if hasCycle, cyclePath := g.HasCycle(); hasCycle {
		return nil, fmt.Errorf("cycle detected: %v", cyclePath)
	}

	assigned := make(map[string]int)

	var getLevel func(id string) int
	getLevel = func(id string) int {
		if level, ok := assigned[id]; ok {
			return level
		}
		level := 0
		for _, parentID := range g.parents[id] {
			level = max(level, getLevel(parentID)+1)
		}
		assigned[id] = level
		return level
	}

	maxLevel := -1
	for id := range g.nodes {
		maxLevel = max(maxLevel, getLevel(id))
	}

	levels := make([][]string, maxLevel+1)
	for i := range levels {
		levels[i] = []string{}
	}
	for id, level := range assigned {
		levels[level] = append(levels[level], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels, nil
}

// Downstream returns the given nodes and everything that depends on them,
// directly or transitively, sorted. Unknown IDs are ignored.
func (g *Graph) Downstream(ids []string) []string {
	seen := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, childID := range g.edges[id] {
			mark(childID)
		}
	}

	for _, id := range ids {
		if _, exists := g.nodes[id]; exists {
			mark(id)
		}
	}

	result := make([]string, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
