package status

import (
	"bytes"
	"testing"

	"disnix/internal/config"
	"disnix/internal/manifest"
	"disnix/internal/registry"
	"disnix/internal/transition"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFleetOverviewListsTargetsAndServiceCounts(t *testing.T) {
	m := &manifest.Manifest{
		Targets: map[string]*manifest.Target{
			"target1": {Key: "target1", Properties: map[string]string{"hostname": "target1"}},
		},
		Mappings: []manifest.Mapping{
			{Service: "webapp", Target: "target1", Container: "process"},
			{Service: "database", Target: "target1", Container: "process"},
		},
	}
	reg, err := registry.Build(m, config.Config{TargetProperty: "hostname"})
	require.NoError(t, err)

	var buf bytes.Buffer
	FleetOverview(&buf, reg, m)

	out := buf.String()
	assert.Contains(t, out, "target1")
	assert.Contains(t, out, "2")
}

func TestPlanRendersEachSection(t *testing.T) {
	plan := transition.Plan{
		ToDeactivate: []manifest.Mapping{{Service: "cache", Target: "target1", Container: "process"}},
		ToActivate:   []manifest.Mapping{{Service: "queue", Target: "target2", Container: "process"}},
		Moved: []transition.Move{
			{
				Service: "database",
				From:    manifest.Mapping{Service: "database", Target: "target1", Container: "process"},
				To:      manifest.Mapping{Service: "database", Target: "target2", Container: "process"},
			},
		},
	}

	var buf bytes.Buffer
	Plan(&buf, plan)

	out := buf.String()
	assert.Contains(t, out, "To deactivate")
	assert.Contains(t, out, "To activate")
	assert.Contains(t, out, "Moved")
	assert.Contains(t, out, "cache")
	assert.Contains(t, out, "queue")
	assert.Contains(t, out, "database")
}

func TestPlanReportsNoChanges(t *testing.T) {
	var buf bytes.Buffer
	Plan(&buf, transition.Plan{})
	assert.Contains(t, buf.String(), "No changes")
}
