// internal/dependency/graph.go
package dependency

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCycle is returned by TopologicalOrder/ReverseTopologicalOrder when the
// graph contains a cycle. Manifest validation rejects the manifest instead of
// attempting to deploy a cyclic inter-dependency graph.
var ErrCycle = errors.New("dependency graph contains a cycle")

// NodeID is the unique identifier for a node inside a dependency graph: a
// "service:target" pair for a mapping node, or a bare target key for a
// target-only node.
type NodeID string

// NodeKind categorises nodes in the graph.
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindTarget
	KindMapping
)

// Node represents one service-on-target mapping (or target) together with
// its inter-dependency list. The graph built over these nodes must be a
// Directed Acyclic Graph; AddNode does not itself reject cycles; call
// TopologicalOrder (or ReverseTopologicalOrder) to validate and order it.
type Node struct {
	ID           NodeID
	FriendlyName string
	Kind         NodeKind
	DependsOn    []NodeID
}

// Graph is a small helper answering dependency queries over a set of nodes.
// It is not thread-safe; callers must synchronise concurrent writes.
type Graph struct {
	nodes map[NodeID]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	copied := n
	g.nodes[n.ID] = &copied
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Dependencies returns a slice of immediate dependency IDs for the given node.
func (g *Graph) Dependencies(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		depsCopy := make([]NodeID, len(n.DependsOn))
		copy(depsCopy, n.DependsOn)
		return depsCopy
	}
	return nil
}

// Dependents returns all node IDs that have a direct dependency on the given
// node. This is an O(n) walk; manifests are small enough that this is fine.
func (g *Graph) Dependents(id NodeID) []NodeID {
	var res []NodeID
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if dep == id {
				res = append(res, n.ID)
				break
			}
		}
	}
	return res
}

// TopologicalOrder returns the node IDs ordered so that every node appears
// after all of its dependencies (Kahn's algorithm). It returns ErrCycle if
// the graph is not a DAG. Ties are broken by NodeID to keep the order
// deterministic across runs.
func (g *Graph) TopologicalOrder() ([]NodeID, error) {
	return g.order(false)
}

// ReverseTopologicalOrder returns the node IDs ordered so that every node
// appears before all of its dependencies — the order used to deactivate a
// plan, tearing down dependents before the services they depend on.
func (g *Graph) ReverseTopologicalOrder() ([]NodeID, error) {
	return g.order(true)
}

func (g *Graph) order(reverse bool) ([]NodeID, error) {
	inDegree := make(map[NodeID]int, len(g.nodes))
	dependents := make(map[NodeID][]NodeID, len(g.nodes))

	for id := range g.nodes {
		if _, ok := inDegree[id]; !ok {
			inDegree[id] = 0
		}
	}

	for id, n := range g.nodes {
		for _, dep := range n.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", id, dep)
			}
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []NodeID
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

	order := make([]NodeID, 0, len(g.nodes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		children := dependents[next]
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		for _, child := range children {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready = append(ready, child)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrCycle
	}

	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	return order, nil
}
