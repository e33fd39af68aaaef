package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
)

// LoadFlags selects which manifest subsections Load materializes, so
// pure-distribution phases avoid paying the cost of parsing snapshot
// mappings they will never consult.
type LoadFlags uint8

const (
	FlagProfiles LoadFlags = 1 << iota // distribution section
	FlagMappings                       // serviceMappings + snapshotMappings

	FlagAll = FlagProfiles | FlagMappings
)

// Load parses the XML manifest at path, materializing the subsections
// selected by flags, and validates invariants 1-4 from the data model.
// Load never returns a partial *Manifest alongside a non-nil error.
func Load(path string, flags LoadFlags) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}

	var raw xmlManifest
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedXML, path, err)
	}

	m := &Manifest{
		Targets:    make(map[string]*Target, len(raw.Infrastructure)),
		Services:   make(map[string]*Service, len(raw.Services)),
		SourcePath: path,
	}

	for _, xs := range raw.Services {
		svc := &Service{
			Key:        xs.Key,
			Name:       xs.Name,
			Type:       xs.Type,
			Path:       xs.Path,
			DependsOn:  append([]string(nil), xs.DependsOn...),
			Properties: propsToMap(xs.Properties),
		}
		m.Services[svc.Key] = svc
	}

	for _, xt := range raw.Infrastructure {
		target := &Target{
			Key:             xt.Key,
			Properties:      propsToMap(xt.Properties),
			Containers:      make(map[string]Container, len(xt.Containers)),
			ClientInterface: xt.ClientInterface,
			NumOfCores:      xt.NumOfCores,
		}
		for _, xc := range xt.Containers {
			target.Containers[xc.Name] = Container{
				Name:       xc.Name,
				Properties: propsToMap(xc.Properties),
			}
		}
		m.Targets[target.Key] = target
	}

	if flags&FlagProfiles != 0 {
		for _, xd := range raw.Distribution {
			m.Distribution = append(m.Distribution, DistributionItem{
				Target:  xd.Target,
				Profile: xd.Profile,
			})
		}
	}

	if flags&FlagMappings != 0 {
		for _, xm := range raw.ServiceMappings {
			m.Mappings = append(m.Mappings, Mapping{
				Service:   xm.Service,
				Target:    xm.Target,
				Container: xm.Container,
			})
		}
		for _, xm := range raw.SnapshotMappings {
			m.SnapshotMappings = append(m.SnapshotMappings, SnapshotMapping{
				Service:   xm.Service,
				Target:    xm.Target,
				Container: xm.Container,
			})
		}
	}

	if err := Validate(m); err != nil {
		return nil, err
	}

	return m, nil
}

func propsToMap(props []xmlProperty) map[string]string {
	if len(props) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.Name] = p.Value
	}
	return out
}
