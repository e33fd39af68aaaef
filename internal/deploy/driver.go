// Package deploy composes the manifest, registry, distribution, locking,
// transition, and profile-bookkeeping stages into the deploy, activate,
// migrate, and set command pipelines.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/distribute"
	"disnix/internal/interrupt"
	"disnix/internal/lock"
	"disnix/internal/manifest"
	"disnix/internal/metrics"
	"disnix/internal/profile"
	"disnix/internal/registry"
	"disnix/internal/transition"
	"disnix/pkg/logging"
)

// Options parameterizes a deploy/activate pipeline run.
type Options struct {
	ManifestPath string
	Config       config.Config
	Flags        transition.TransitionFlags
	Flag         *interrupt.Flag
}

// Driver composes the stages into the four CLI-facing pipelines.
type Driver struct {
	Client client.Interface
	Store  func(cfg config.Config) *profile.Store
}

// New returns a Driver invoking verbs through cl.
func New(cl client.Interface) *Driver {
	return &Driver{
		Client: cl,
		Store: func(cfg config.Config) *profile.Store {
			return profile.NewStore(cfg, cfg.Profile)
		},
	}
}

// Deploy runs the full pipeline: load manifests, distribute, lock,
// transition, unlock, and on success commit the new generation.
func (d *Driver) Deploy(ctx context.Context, opts Options) (transition.Outcome, *transition.RecoveryHint, error) {
	runID := uuid.NewString()
	logging.Info("coordinator", "deploy run %s starting for %s", runID, opts.ManifestPath)
	start := time.Now()

	newManifest, err := manifest.Load(opts.ManifestPath, manifest.FlagAll)
	if err != nil {
		metrics.ObserveStage("load", "error", time.Since(start))
		return transition.DeployFail, nil, fmt.Errorf("deploy run %s: %w", runID, err)
	}

	store := d.Store(opts.Config)
	var previous *manifest.Manifest
	if prev, err := store.DetermineManifestToOpen(manifest.FlagAll); err == nil {
		previous = prev
	} else if !errors.Is(err, profile.ErrNoGenerations) {
		return transition.DeployFail, nil, fmt.Errorf("deploy run %s: %w", runID, err)
	}

	merged := mergeTargets(previous, newManifest)
	reg, err := registry.Build(merged, opts.Config)
	if err != nil {
		return transition.DeployFail, nil, fmt.Errorf("deploy: %w", err)
	}

	if !opts.Flags.DryRun {
		distStart := time.Now()
		if err := distribute.Distribute(ctx, d.Client, reg, newManifest.Distribution, opts.Config.MaxConcurrentTransfers); err != nil {
			metrics.ObserveStage("distribute", "error", time.Since(distStart))
			return transition.DeployFail, nil, fmt.Errorf("deploy: %w", err)
		}
		metrics.ObserveStage("distribute", "ok", time.Since(distStart))
	}

	targets := allTargetKeys(previous, newManifest)

	var ls *lock.Lockset
	if !opts.Flags.DryRun {
		lockStart := time.Now()
		ls, err = lock.Acquire(ctx, d.Client, targets, opts.Config.Profile)
		if err != nil {
			metrics.ObserveStage("lock", "error", time.Since(lockStart))
			return transition.DeployFail, nil, fmt.Errorf("deploy: %w", err)
		}
		metrics.ObserveStage("lock", "ok", time.Since(lockStart))
	}

	transitionEngine := transition.New(d.Client, reg, opts.Config, opts.Flag)
	transStart := time.Now()
	outcome, hint, err := transitionEngine.Run(ctx, previous, newManifest, opts.Flags)
	metrics.ObserveStage("transition", outcome.String(), time.Since(transStart))
	metrics.ObserveDeployOutcome(outcome.String())

	if ls != nil {
		ls.Release(ctx, d.Client)
	}

	auditOutcome := "success"
	auditErr := ""
	if err != nil {
		auditOutcome = "failure"
		auditErr = err.Error()
	}
	logging.Audit(logging.AuditEvent{
		Action:  "deploy",
		Outcome: auditOutcome,
		RunID:   logging.TruncateRunID(runID),
		Details: outcome.String(),
		Error:   auditErr,
	})

	if err != nil {
		return outcome, hint, fmt.Errorf("deploy run %s: %w", runID, err)
	}
	if opts.Flags.DryRun {
		return outcome, hint, nil
	}

	if outcome == transition.DeployOK {
		if _, err := store.Commit(opts.ManifestPath); err != nil {
			return outcome, hint, fmt.Errorf("deploy: committing new generation: %w", err)
		}
		for _, item := range newManifest.Distribution {
			target, ok := reg.Get(item.Target)
			if !ok {
				continue
			}
			if err := d.Client.SetProfile(ctx, target.Address, opts.Config.Profile, item.Profile); err != nil {
				logging.Warn("target: "+item.Target, "set-profile failed: %v", err)
			}
		}
	}

	logging.Info("coordinator", "deploy run %s finished: %s", runID, outcome)
	return outcome, hint, nil
}

// Activate runs the transition engine's activation pass against a manifest
// already distributed to its targets, without touching the distribution or
// profile-bookkeeping stages: the artifact closures are assumed present.
func (d *Driver) Activate(ctx context.Context, opts Options) (transition.Outcome, *transition.RecoveryHint, error) {
	runID := uuid.NewString()

	newManifest, err := manifest.Load(opts.ManifestPath, manifest.FlagAll)
	if err != nil {
		return transition.DeployFail, nil, fmt.Errorf("activate: %w", err)
	}

	store := d.Store(opts.Config)
	var previous *manifest.Manifest
	if prev, err := store.DetermineManifestToOpen(manifest.FlagAll); err == nil {
		previous = prev
	} else if !errors.Is(err, profile.ErrNoGenerations) {
		return transition.DeployFail, nil, fmt.Errorf("activate: %w", err)
	}

	merged := mergeTargets(previous, newManifest)
	reg, err := registry.Build(merged, opts.Config)
	if err != nil {
		return transition.DeployFail, nil, fmt.Errorf("activate: %w", err)
	}

	targets := allTargetKeys(previous, newManifest)
	ls, err := lock.Acquire(ctx, d.Client, targets, opts.Config.Profile)
	if err != nil {
		return transition.DeployFail, nil, fmt.Errorf("activate: %w", err)
	}
	defer ls.Release(ctx, d.Client)

	transitionEngine := transition.New(d.Client, reg, opts.Config, opts.Flag)
	outcome, hint, err := transitionEngine.Run(ctx, previous, newManifest, opts.Flags)

	auditOutcome := "success"
	auditErr := ""
	if err != nil {
		auditOutcome = "failure"
		auditErr = err.Error()
	}
	logging.Audit(logging.AuditEvent{
		Action:  "activate",
		Outcome: auditOutcome,
		RunID:   logging.TruncateRunID(runID),
		Details: outcome.String(),
		Error:   auditErr,
	})

	if err != nil {
		return outcome, hint, fmt.Errorf("activate: %w", err)
	}
	return outcome, hint, nil
}

// MigrateOptions parameterizes a standalone state migration between two
// targets for a single (container, component), outside a full deploy.
type MigrateOptions struct {
	FromTarget string
	ToTarget   string
	Container  string
	Component  string
	Config     config.Config
}

// Migrate runs the snapshot/copy/restore sequence for one component,
// independent of a full transition: this is the building block
// disnix-migrate exposes directly to operators finishing a
// DEPLOY_STATE_FAIL recovery by hand.
func (d *Driver) Migrate(ctx context.Context, opts MigrateOptions) error {
	logging.Info("coordinator", "migrating %s/%s: %s -> %s", opts.Container, opts.Component, opts.FromTarget, opts.ToTarget)

	if err := d.Client.Snapshot(ctx, opts.FromTarget, opts.Container, opts.Component); err != nil {
		return fmt.Errorf("migrate: snapshot on %s: %w", opts.FromTarget, err)
	}
	if err := d.Client.CopySnapshotsFrom(ctx, opts.FromTarget, opts.Container, opts.Component, opts.Config.StateDir); err != nil {
		return fmt.Errorf("migrate: copy-snapshots-from %s: %w", opts.FromTarget, err)
	}
	if err := d.Client.CopySnapshotsTo(ctx, opts.ToTarget, opts.Container, opts.Component, opts.Config.StateDir); err != nil {
		return fmt.Errorf("migrate: copy-snapshots-to %s: %w", opts.ToTarget, err)
	}
	if err := d.Client.Restore(ctx, opts.ToTarget, opts.Container, opts.Component); err != nil {
		return fmt.Errorf("migrate: restore on %s: %w", opts.ToTarget, err)
	}
	return nil
}

// Set commits manifestPath as the new coordinator profile generation
// without touching any remote target: the C8 bookkeeping-only pipeline
// used to finalize a DEPLOY_STATE_FAIL recovery once an operator has
// confirmed the fleet's actual state matches the new manifest.
func (d *Driver) Set(ctx context.Context, cfg config.Config, manifestPath string) (int, error) {
	store := d.Store(cfg)
	gen, err := store.Commit(manifestPath)
	if err != nil {
		return 0, fmt.Errorf("set: %w", err)
	}
	return gen, nil
}

// mergeTargets returns a manifest whose Targets map is the union of
// previous's and newManifest's, so the registry can resolve addresses for
// targets that only appear on one side of a move.
func mergeTargets(previous, newManifest *manifest.Manifest) *manifest.Manifest {
	merged := &manifest.Manifest{Targets: make(map[string]*manifest.Target)}
	if previous != nil {
		for k, v := range previous.Targets {
			merged.Targets[k] = v
		}
	}
	for k, v := range newManifest.Targets {
		merged.Targets[k] = v
	}
	return merged
}

func allTargetKeys(previous, newManifest *manifest.Manifest) []string {
	seen := make(map[string]struct{})
	for _, mp := range newManifest.Mappings {
		seen[mp.Target] = struct{}{}
	}
	if previous != nil {
		for _, mp := range previous.Mappings {
			seen[mp.Target] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
