// Package manifest loads and validates the XML deployment manifest: the
// target registry, service catalogue, distribution items, and the service
// and snapshot mappings that together describe a fleet's desired state.
package manifest

import "encoding/xml"

// Target is a machine key with a property set. One designated property
// (config.Config.TargetProperty, default "hostname") supplies the address
// consumed by the client interface.
type Target struct {
	Key             string
	Properties      map[string]string
	Containers      map[string]Container
	ClientInterface string // empty means: use the coordinator default
	NumOfCores      int    // parsed from numOfCores; not used for admission

	// Address is resolved by internal/registry.Build from Properties, not
	// populated directly by the parser.
	Address string
}

// Container is a named deployment environment on a target (process manager,
// database, etc.) understood by the remote agent.
type Container struct {
	Name       string
	Properties map[string]string
}

// Service is an immutable artifact identified by a content-addressed store
// path. Path is the unique identity for distribution purposes.
type Service struct {
	Key        string
	Name       string
	Type       string
	Path       string
	DependsOn  []string
	Properties map[string]string
}

// Mapping is a (service, target, container) tuple forming part of the
// deployment's extensional meaning. Two mappings are equal iff all three
// coordinates match.
type Mapping struct {
	Service   string
	Target    string
	Container string
}

// Key returns the tuple's canonical string form, used to key diff sets.
func (m Mapping) Key() string {
	return m.Service + "|" + m.Target + "|" + m.Container
}

// SnapshotMapping marks a mapping as owning mutable state that must be
// migrated when the service's target changes.
type SnapshotMapping struct {
	Service   string
	Target    string
	Container string
}

// DistributionItem pairs a target key with the per-target profile store
// path to copy to it.
type DistributionItem struct {
	Target  string
	Profile string
}

// Manifest is the root entity: target registry, service catalogue, service
// and snapshot mappings, and the distribution list.
type Manifest struct {
	Targets          map[string]*Target
	Services         map[string]*Service
	Mappings         []Mapping
	SnapshotMappings []SnapshotMapping
	Distribution     []DistributionItem

	// SourcePath is the filesystem path the manifest was loaded from, kept
	// for WriteCoordinatorCopy and diagnostics.
	SourcePath string
}

// HasSnapshotMapping reports whether (service, target, container) owns
// mutable state per the manifest's snapshot mappings.
func (m *Manifest) HasSnapshotMapping(mp Mapping) bool {
	for _, sm := range m.SnapshotMappings {
		if sm.Service == mp.Service && sm.Target == mp.Target && sm.Container == mp.Container {
			return true
		}
	}
	return false
}

// --- XML wire format ---
//
// <manifest>
//   <services>...</services>
//   <infrastructure>...</infrastructure>
//   <distribution>...</distribution>
//   <serviceMappings>...</serviceMappings>
//   <snapshotMappings>...</snapshotMappings>
// </manifest>

type xmlManifest struct {
	XMLName          xml.Name             `xml:"manifest"`
	Services         []xmlService         `xml:"services>service"`
	Infrastructure   []xmlTarget          `xml:"infrastructure>target"`
	Distribution     []xmlDistributionItem `xml:"distribution>mapping"`
	ServiceMappings  []xmlMapping         `xml:"serviceMappings>mapping"`
	SnapshotMappings []xmlMapping         `xml:"snapshotMappings>mapping"`
}

type xmlService struct {
	Key        string        `xml:"key,attr"`
	Name       string        `xml:"name"`
	Type       string        `xml:"type"`
	Path       string        `xml:"path"`
	DependsOn  []string      `xml:"dependsOn>dependency"`
	Properties []xmlProperty `xml:"property"`
}

type xmlTarget struct {
	Key             string        `xml:"key,attr"`
	ClientInterface string        `xml:"clientInterface,omitempty"`
	NumOfCores      int           `xml:"numOfCores,omitempty"`
	Properties      []xmlProperty `xml:"property"`
	Containers      []xmlContainer `xml:"containers>container"`
}

type xmlContainer struct {
	Name       string        `xml:"name,attr"`
	Properties []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlDistributionItem struct {
	Target  string `xml:"target"`
	Profile string `xml:"profile"`
}

type xmlMapping struct {
	Service   string `xml:"service"`
	Target    string `xml:"target"`
	Container string `xml:"container"`
}
