package transition

import (
	"fmt"

	"disnix/internal/dependency"
	"disnix/internal/manifest"
)

// buildGraph builds a dependency.Graph over mappings, restricted to the
// node subset in scope, with edges derived from each mapping's service's
// DependsOn list: a mapping depends on every in-scope mapping of each
// service it depends on.
func buildGraph(m *manifest.Manifest, scope []manifest.Mapping) *dependency.Graph {
	inScope := make(map[string]manifest.Mapping, len(scope))
	byService := make(map[string][]manifest.Mapping)
	for _, mp := range scope {
		inScope[mp.Key()] = mp
		byService[mp.Service] = append(byService[mp.Service], mp)
	}

	g := dependency.New()
	for _, mp := range scope {
		svc := m.Services[mp.Service]
		var deps []dependency.NodeID
		if svc != nil {
			for _, dep := range svc.DependsOn {
				for _, depMapping := range byService[dep] {
					deps = append(deps, dependency.NodeID(depMapping.Key()))
				}
			}
		}
		g.AddNode(dependency.Node{
			ID:           dependency.NodeID(mp.Key()),
			FriendlyName: mp.Service,
			Kind:         dependency.KindMapping,
			DependsOn:    deps,
		})
	}
	return g
}

// deactivationOrder returns to_deactivate ∪ (previous ∩ new), the mappings
// being torn down plus those kept in place (moved services are not
// included), ordered by reverse topological order of the
// inter-dependency DAG restricted to that set: dependents before the
// services they depend on.
func deactivationOrder(m *manifest.Manifest, plan Plan) ([]manifest.Mapping, error) {
	scope := append(append([]manifest.Mapping(nil), plan.ToDeactivate...), plan.Kept...)
	g := buildGraph(m, scope)
	ids, err := g.ReverseTopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("transition: deactivation ordering: %w", err)
	}
	return mappingsForIDs(scope, ids), nil
}

// activationOrder returns to_activate ∪ (previous ∩ new), ordered
// topologically: dependencies before the services that depend on them.
func activationOrder(m *manifest.Manifest, plan Plan) ([]manifest.Mapping, error) {
	scope := append(append([]manifest.Mapping(nil), plan.ToActivate...), plan.Kept...)
	g := buildGraph(m, scope)
	ids, err := g.TopologicalOrder()
	if err != nil {
		return nil, fmt.Errorf("transition: activation ordering: %w", err)
	}
	return mappingsForIDs(scope, ids), nil
}

func mappingsForIDs(scope []manifest.Mapping, ids []dependency.NodeID) []manifest.Mapping {
	byKey := make(map[string]manifest.Mapping, len(scope))
	for _, mp := range scope {
		byKey[mp.Key()] = mp
	}
	out := make([]manifest.Mapping, 0, len(ids))
	for _, id := range ids {
		out = append(out, byKey[string(id)])
	}
	return out
}
