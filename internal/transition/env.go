package transition

import (
	"fmt"

	"disnix/internal/manifest"
	"disnix/internal/template"
)

// buildActivationEnv derives the key=value environment passed to
// activate/deactivate: the mapping's container properties and the
// service's own properties, with any {{ }} references resolved against the
// properties of the services it depends on — the inter-dependency
// bindings referenced in the activation contract.
func buildActivationEnv(tmpl *template.Engine, m *manifest.Manifest, mp manifest.Mapping) (map[string]string, error) {
	svc, ok := m.Services[mp.Service]
	if !ok {
		return nil, fmt.Errorf("unknown service %s", mp.Service)
	}
	target, ok := m.Targets[mp.Target]
	if !ok {
		return nil, fmt.Errorf("unknown target %s", mp.Target)
	}
	container, ok := target.Containers[mp.Container]
	if !ok {
		return nil, fmt.Errorf("unknown container %s on target %s", mp.Container, mp.Target)
	}

	depContext := make(map[string]interface{}, len(svc.DependsOn))
	for _, depKey := range svc.DependsOn {
		depSvc, ok := m.Services[depKey]
		if !ok {
			continue
		}
		depProps := make(map[string]interface{}, len(depSvc.Properties))
		for k, v := range depSvc.Properties {
			depProps[k] = v
		}
		depProps["name"] = depSvc.Name
		depContext[depSvc.Name] = depProps
	}

	selfProps := make(map[string]interface{}, len(svc.Properties)+1)
	for k, v := range svc.Properties {
		selfProps[k] = v
	}
	selfProps["name"] = svc.Name
	templateContext := template.MergeContexts(depContext, map[string]interface{}{svc.Name: selfProps})

	env := make(map[string]string, len(container.Properties)+len(svc.Properties))
	for k, v := range container.Properties {
		env[k] = v
	}
	for k, v := range svc.Properties {
		resolved, err := tmpl.Replace(v, templateContext)
		if err != nil {
			return nil, fmt.Errorf("service %s property %s: %w", mp.Service, k, err)
		}
		env[k] = fmt.Sprintf("%v", resolved)
	}

	return env, nil
}
