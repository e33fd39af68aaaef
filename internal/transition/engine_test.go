package transition

import (
	"context"
	"testing"

	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/interrupt"
	"disnix/internal/manifest"
	"disnix/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// targetWithProcess uses the target key as its own resolved address, so
// tests can assert against the manifest's target keys directly instead of
// separately tracking a resolved address string.
func targetWithProcess(key string) *manifest.Target {
	return &manifest.Target{
		Key:        key,
		Properties: map[string]string{"hostname": key},
		Containers: map[string]manifest.Container{"process": {Name: "process"}},
	}
}

func buildRegistry(t *testing.T, m *manifest.Manifest) *registry.Registry {
	t.Helper()
	reg, err := registry.Build(m, config.Config{TargetProperty: "hostname"})
	require.NoError(t, err)
	return reg
}

func TestRunFreshInstallActivatesInDependencyOrder(t *testing.T) {
	newM := fixtureManifest()
	newM.Targets = map[string]*manifest.Target{"target1": targetWithProcess("target1")}

	fc := client.NewFake()
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2}, nil)

	outcome, hint, err := eng.Run(context.Background(), nil, newM, TransitionFlags{})
	require.NoError(t, err)
	assert.Equal(t, DeployOK, outcome)
	assert.Nil(t, hint)
	assert.Equal(t, []string{"activate", "activate"}, fc.VerbsForTarget("target1"))
}

func TestRunDeployFailRollsBackOnActivationFailure(t *testing.T) {
	previous := &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"serviceA": {Key: "serviceA", Name: "serviceA", Type: "process", Path: "/nix/store/a"},
		},
		Mappings: []manifest.Mapping{{Service: "serviceA", Target: "target1", Container: "process"}},
		Targets:  map[string]*manifest.Target{"target1": targetWithProcess("target1")},
	}
	newM := &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"serviceB": {Key: "serviceB", Name: "serviceB", Type: "process", Path: "/nix/store/b"},
		},
		Mappings: []manifest.Mapping{{Service: "serviceB", Target: "target1", Container: "process"}},
		Targets:  map[string]*manifest.Target{"target1": targetWithProcess("target1")},
	}

	fc := client.NewFake()
	fc.Fail("activate", "target1", assert.AnError)
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2}, nil)

	outcome, _, err := eng.Run(context.Background(), previous, newM, TransitionFlags{})
	require.Error(t, err)
	assert.Equal(t, DeployFail, outcome)

	// serviceA deactivated, serviceB activation attempted (and failed),
	// then rollback deactivates serviceB and reactivates serviceA.
	assert.Equal(t, []string{"deactivate", "activate", "deactivate", "activate"}, fc.VerbsForTarget("target1"))
}

func TestRunDeployStateFailOnMigrationFailureSkipsAutoRollback(t *testing.T) {
	previous := &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"database": {Key: "database", Name: "database", Type: "process", Path: "/nix/store/db"},
		},
		Mappings: []manifest.Mapping{{Service: "database", Target: "target1", Container: "process"}},
		Targets: map[string]*manifest.Target{
			"target1": targetWithProcess("target1"),
			"target2": targetWithProcess("target2"),
		},
	}
	newM := &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"database": {Key: "database", Name: "database", Type: "process", Path: "/nix/store/db"},
		},
		Mappings: []manifest.Mapping{{Service: "database", Target: "target2", Container: "process"}},
		Targets: map[string]*manifest.Target{
			"target1": targetWithProcess("target1"),
			"target2": targetWithProcess("target2"),
		},
	}

	fc := client.NewFake()
	fc.Fail("snapshot", "target1", assert.AnError)
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2, StateDir: t.TempDir()}, nil)

	outcome, hint, err := eng.Run(context.Background(), previous, newM, TransitionFlags{})
	require.Error(t, err)
	assert.Equal(t, DeployStateFail, outcome)
	require.NotNil(t, hint)
	assert.Contains(t, hint.MigrateCommand, "disnix-migrate")
	assert.Contains(t, hint.SetCommand, "disnix-set")

	// The old mapping is only deactivated after the new one activates, so a
	// snapshot failure leaves it untouched; nothing was auto-reverted
	// either, since reverting after a snapshot started would risk
	// overwriting newer state.
	assert.Equal(t, []string{"snapshot"}, fc.VerbsForTarget("target1"))
	assert.Empty(t, fc.VerbsForTarget("target2"))
}

func movedDatabaseManifests() (previous, newM *manifest.Manifest) {
	previous = &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"database": {Key: "database", Name: "database", Type: "process", Path: "/nix/store/db"},
		},
		Mappings: []manifest.Mapping{{Service: "database", Target: "target1", Container: "process"}},
		Targets: map[string]*manifest.Target{
			"target1": targetWithProcess("target1"),
			"target2": targetWithProcess("target2"),
		},
	}
	newM = &manifest.Manifest{
		Services: map[string]*manifest.Service{
			"database": {Key: "database", Name: "database", Type: "process", Path: "/nix/store/db"},
		},
		Mappings: []manifest.Mapping{{Service: "database", Target: "target2", Container: "process"}},
		Targets: map[string]*manifest.Target{
			"target1": targetWithProcess("target1"),
			"target2": targetWithProcess("target2"),
		},
	}
	return previous, newM
}

func TestRunMigratesInSnapshotRestoreActivateDeactivateOrder(t *testing.T) {
	previous, newM := movedDatabaseManifests()

	fc := client.NewFake()
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2, StateDir: t.TempDir()}, nil)

	outcome, hint, err := eng.Run(context.Background(), previous, newM, TransitionFlags{})
	require.NoError(t, err)
	assert.Equal(t, DeployOK, outcome)
	assert.Nil(t, hint)

	// The old target stays up through snapshot and restore, is only
	// deactivated once the new target has activated.
	assert.Equal(t, []string{"snapshot", "copy-snapshots-from", "deactivate"}, fc.VerbsForTarget("target1"))
	assert.Equal(t, []string{"copy-snapshots-to", "restore", "activate"}, fc.VerbsForTarget("target2"))
}

func TestRunDeployStateFailOnActivationFailureAfterMigrationSkipsDeactivate(t *testing.T) {
	previous, newM := movedDatabaseManifests()

	fc := client.NewFake()
	fc.Fail("activate", "target2", assert.AnError)
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2, StateDir: t.TempDir()}, nil)

	outcome, hint, err := eng.Run(context.Background(), previous, newM, TransitionFlags{})
	require.Error(t, err)
	assert.Equal(t, DeployStateFail, outcome)
	require.NotNil(t, hint)

	// The old instance must never be deactivated when the new one failed
	// to come up: that would leave no live instance of the service at all.
	assert.Equal(t, []string{"snapshot", "copy-snapshots-from"}, fc.VerbsForTarget("target1"))
	assert.Equal(t, []string{"copy-snapshots-to", "restore", "activate"}, fc.VerbsForTarget("target2"))
}

func TestRunInterruptedBeforeActivationReportsInterrupted(t *testing.T) {
	newM := fixtureManifest()
	newM.Targets = map[string]*manifest.Target{"target1": targetWithProcess("target1")}

	fc := client.NewFake()
	reg := buildRegistry(t, newM)
	flag := &interrupt.Flag{}
	flag.Set()
	eng := New(fc, reg, config.Config{TargetProperty: "hostname", MaxConcurrentTransfers: 2}, flag)

	outcome, _, err := eng.Run(context.Background(), nil, newM, TransitionFlags{})
	require.Error(t, err)
	assert.Equal(t, Interrupted, outcome)
	assert.Empty(t, fc.Calls)
}

func TestRunDryRunExecutesNoVerbs(t *testing.T) {
	newM := fixtureManifest()
	newM.Targets = map[string]*manifest.Target{"target1": targetWithProcess("target1")}

	fc := client.NewFake()
	reg := buildRegistry(t, newM)
	eng := New(fc, reg, config.Config{TargetProperty: "hostname"}, nil)

	outcome, _, err := eng.Run(context.Background(), nil, newM, TransitionFlags{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, DeployOK, outcome)
	assert.Empty(t, fc.Calls)
}
