// Package dependency provides a directed acyclic graph (DAG) used to order
// service activation and deactivation during a transition.
//
// # Core Concepts
//
// Graph: a directed acyclic graph whose nodes are service-on-target mappings
// (or bare targets). Edges represent the manifest's inter-dependency
// relation: a mapping depends on the mappings providing the services it
// needs at runtime.
//
// # Operations
//
//   - AddNode: add a mapping to the graph.
//   - Dependencies / Dependents: immediate-neighbour queries.
//   - TopologicalOrder: activation order — dependencies before dependents.
//   - ReverseTopologicalOrder: deactivation order — dependents before
//     dependencies.
//
// Both ordering operations return ErrCycle if the graph is not a DAG; the
// manifest loader rejects a cyclic inter-dependency graph at validation time
// rather than attempting a partial, ambiguous deployment.
//
// # Usage Example
//
//	graph := dependency.New()
//	graph.AddNode(dependency.Node{ID: "webapp:target1", DependsOn: nil})
//	graph.AddNode(dependency.Node{ID: "database:target1"})
//	graph.AddNode(dependency.Node{
//	    ID:        "webapp:target1",
//	    DependsOn: []dependency.NodeID{"database:target1"},
//	})
//
//	order, err := graph.TopologicalOrder()
//	// order = ["database:target1", "webapp:target1"]
//
// # Thread Safety
//
// Graph is not thread-safe; callers (internal/transition) build it
// single-threaded before handing the resulting order to the parallel engine.
package dependency
