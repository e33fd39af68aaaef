package manifest

import (
	"errors"
	"fmt"

	"disnix/internal/dependency"
)

// Validate enforces invariants 1-4 of the data model against m. Invariant 5
// (immutability after acceptance) is a property of how callers treat the
// returned *Manifest, not something Load can check structurally.
func Validate(m *Manifest) error {
	if err := validateServiceReferences(m); err != nil {
		return err
	}
	if err := validateMappingTargets(m); err != nil {
		return err
	}
	if err := validateAcyclic(m); err != nil {
		return err
	}
	if err := validateSnapshotMappings(m); err != nil {
		return err
	}
	return nil
}

// validateServiceReferences enforces invariant 1: every service referenced
// by any mapping or inter-dependency exists in the service catalogue.
func validateServiceReferences(m *Manifest) error {
	for _, svc := range m.Services {
		for _, dep := range svc.DependsOn {
			if _, ok := m.Services[dep]; !ok {
				return fmt.Errorf("%w: service %s depends on unknown service %s", ErrInvariantViolation, svc.Key, dep)
			}
		}
	}
	for _, mp := range m.Mappings {
		if _, ok := m.Services[mp.Service]; !ok {
			return fmt.Errorf("%w: mapping references unknown service %s", ErrInvariantViolation, mp.Service)
		}
	}
	return nil
}

// validateMappingTargets enforces invariant 2: every (target_key,
// container_name) referenced by a mapping resolves in the target registry.
func validateMappingTargets(m *Manifest) error {
	for _, mp := range m.Mappings {
		target, ok := m.Targets[mp.Target]
		if !ok {
			return fmt.Errorf("%w: mapping references unknown target %s", ErrInvariantViolation, mp.Target)
		}
		if _, ok := target.Containers[mp.Container]; !ok {
			return fmt.Errorf("%w: mapping references unknown container %s on target %s", ErrInvariantViolation, mp.Container, mp.Target)
		}
	}
	return nil
}

// validateAcyclic enforces invariant 3: the inter-dependency graph is a DAG.
// A cycle is rejected at validation time rather than handled heuristically
// during deployment (resolving the open question left by the design notes).
func validateAcyclic(m *Manifest) error {
	g := dependency.New()
	for key, svc := range m.Services {
		deps := make([]dependency.NodeID, len(svc.DependsOn))
		for i, d := range svc.DependsOn {
			deps[i] = dependency.NodeID(d)
		}
		g.AddNode(dependency.Node{
			ID:        dependency.NodeID(key),
			Kind:      dependency.KindMapping,
			DependsOn: deps,
		})
	}
	if _, err := g.TopologicalOrder(); err != nil {
		if errors.Is(err, dependency.ErrCycle) {
			return fmt.Errorf("%w: inter-dependency graph contains a cycle", ErrInvariantViolation)
		}
		return fmt.Errorf("%w: %v", ErrInvariantViolation, err)
	}
	return nil
}

// validateSnapshotMappings enforces invariant 4: every snapshot mapping
// corresponds to an actual service mapping (the manifest has no separate
// "claims mutable state" flag, so the snapshot mapping list is itself the
// authority on which mappings carry state).
func validateSnapshotMappings(m *Manifest) error {
	mappingSet := make(map[string]bool, len(m.Mappings))
	for _, mp := range m.Mappings {
		mappingSet[mp.Key()] = true
	}
	for _, sm := range m.SnapshotMappings {
		key := Mapping{Service: sm.Service, Target: sm.Target, Container: sm.Container}.Key()
		if !mappingSet[key] {
			return fmt.Errorf("%w: snapshot mapping (%s,%s,%s) has no corresponding service mapping",
				ErrInvariantViolation, sm.Service, sm.Target, sm.Container)
		}
	}
	return nil
}
