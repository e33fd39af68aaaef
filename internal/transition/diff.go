package transition

import "disnix/internal/manifest"

// Plan is the result of diffing two manifests: the mapping sets the
// transition engine must deactivate, activate, and migrate, plus the
// mappings present in both that require no action.
type Plan struct {
	ToDeactivate []manifest.Mapping
	ToActivate   []manifest.Mapping
	Kept         []manifest.Mapping
	Moved        []Move
}

// Move describes a service whose mapping exists in both manifests but
// whose target (or container) changed, requiring state migration.
type Move struct {
	Service   string
	From      manifest.Mapping
	To        manifest.Mapping
}

// Diff computes to_deactivate, to_activate, moved and kept per spec: a
// mapping present in previous but absent in new is deactivated; present in
// new but absent in previous is activated; a service with a mapping in
// both, but a different (target, container), is a move rather than an
// independent deactivate+activate pair. previous may be nil for a fresh
// install, in which case everything in new is activated and nothing is
// deactivated or moved.
func Diff(previous, newManifest *manifest.Manifest) Plan {
	var plan Plan

	if previous == nil {
		plan.ToActivate = append(plan.ToActivate, newManifest.Mappings...)
		return plan
	}

	prevByService := mappingsByService(previous.Mappings)
	newByService := mappingsByService(newManifest.Mappings)

	prevKeys := mappingKeySet(previous.Mappings)
	newKeys := mappingKeySet(newManifest.Mappings)

	movedServices := make(map[string]bool)
	for service, prevMapping := range prevByService {
		newMapping, ok := newByService[service]
		if !ok {
			continue
		}
		if prevMapping.Target != newMapping.Target || prevMapping.Container != newMapping.Container {
			plan.Moved = append(plan.Moved, Move{Service: service, From: prevMapping, To: newMapping})
			movedServices[service] = true
		}
	}

	for _, m := range previous.Mappings {
		if movedServices[m.Service] {
			continue
		}
		if _, ok := newKeys[m.Key()]; !ok {
			plan.ToDeactivate = append(plan.ToDeactivate, m)
		}
	}
	for _, m := range newManifest.Mappings {
		if movedServices[m.Service] {
			continue
		}
		if _, ok := prevKeys[m.Key()]; !ok {
			plan.ToActivate = append(plan.ToActivate, m)
		}
	}
	for _, m := range newManifest.Mappings {
		if movedServices[m.Service] {
			continue
		}
		if _, ok := prevKeys[m.Key()]; ok {
			plan.Kept = append(plan.Kept, m)
		}
	}

	// A moved service's old mapping is deactivated and its new one
	// activated entirely within the migration step (after the snapshot has
	// been restored on the new target), never in the plain
	// deactivate/activate passes: folding them in here would tear down the
	// old instance before it has been quiesced and captured.
	return plan
}

func mappingsByService(mappings []manifest.Mapping) map[string]manifest.Mapping {
	out := make(map[string]manifest.Mapping, len(mappings))
	for _, m := range mappings {
		out[m.Service] = m
	}
	return out
}

func mappingKeySet(mappings []manifest.Mapping) map[string]struct{} {
	out := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		out[m.Key()] = struct{}{}
	}
	return out
}
