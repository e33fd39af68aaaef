// Package transition computes the mapping diff between two manifests and
// drives the deactivate/migrate/activate sequence that carries a fleet
// from one manifest to the next.
package transition

import (
	"context"
	"fmt"

	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/engine"
	"disnix/internal/interrupt"
	"disnix/internal/manifest"
	"disnix/internal/registry"
	"disnix/internal/template"
	"disnix/pkg/logging"
)

// Outcome is the transition's terminal classification.
type Outcome int

const (
	DeployOK Outcome = iota
	DeployFail
	DeployStateFail
	Interrupted
)

func (o Outcome) String() string {
	switch o {
	case DeployOK:
		return "DEPLOY_OK"
	case DeployFail:
		return "DEPLOY_FAIL"
	case DeployStateFail:
		return "DEPLOY_STATE_FAIL"
	case Interrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Traversal selects the concurrency of the deactivate/activate passes:
// breadth-first admits up to Config.MaxConcurrentTransfers verbs at once,
// depth-first runs one mapping at a time. In both modes the passes run
// fleet-wide, one after the other; they are not interleaved per service.
type Traversal int

const (
	TraversalBreadthFirst Traversal = iota
	TraversalDepthFirst
)

// TransitionFlags controls the engine's behaviour, threaded straight from
// CLI flags.
type TransitionFlags struct {
	NoRollback   bool
	DryRun       bool
	TransferOnly bool
	DeleteState  bool
	Traversal    Traversal
}

// RecoveryHint is attached to a DeployStateFail outcome: the two
// human-actionable commands an operator runs to finish the job by hand,
// since automatic rollback after state has started moving would risk
// overwriting newer state with older.
type RecoveryHint struct {
	MigrateCommand string
	SetCommand     string
}

// Engine drives one manifest-to-manifest transition.
type Engine struct {
	Client   client.Interface
	Registry *registry.Registry
	Config   config.Config
	Flag     *interrupt.Flag
	Template *template.Engine
}

// New returns a transition Engine bound to the given target registry,
// client interface and configuration.
func New(cl client.Interface, reg *registry.Registry, cfg config.Config, flag *interrupt.Flag) *Engine {
	return &Engine{Client: cl, Registry: reg, Config: cfg, Flag: flag, Template: template.New()}
}

// Run transitions the fleet from previous (possibly nil, for a fresh
// install) to newManifest, per flags.
func (e *Engine) Run(ctx context.Context, previous, newManifest *manifest.Manifest, flags TransitionFlags) (Outcome, *RecoveryHint, error) {
	plan := Diff(previous, newManifest)

	if flags.DryRun {
		logging.Info("coordinator", "dry run: %d to deactivate, %d to activate, %d moved, %d kept",
			len(plan.ToDeactivate), len(plan.ToActivate), len(plan.Moved), len(plan.Kept))
		return DeployOK, nil, nil
	}

	deactivationManifest := previous
	if deactivationManifest == nil {
		deactivationManifest = newManifest
	}

	deactOrder, err := deactivationOrder(deactivationManifest, plan)
	if err != nil {
		return DeployFail, nil, err
	}
	actOrder, err := activationOrder(newManifest, plan)
	if err != nil {
		return DeployFail, nil, err
	}

	deactivateSet := mappingKeySetFromSlice(plan.ToDeactivate)
	activateSet := mappingKeySetFromSlice(plan.ToActivate)

	var reachedDeactivated, reachedActivated []manifest.Mapping
	stateMigrationStarted := false

	maxConcurrent := e.Config.MaxConcurrentTransfers
	if flags.Traversal == TraversalDepthFirst {
		maxConcurrent = 1
	}

	if !flags.TransferOnly {
		deactivated, status := e.runStage(ctx, deactOrder, deactivateSet, maxConcurrent, deactivationManifest, false)
		reachedDeactivated = deactivated
		if status == engine.StatusInterrupted {
			e.rollback(context.Background(), flags, reachedDeactivated, nil, deactivationManifest, newManifest)
			return Interrupted, nil, fmt.Errorf("transition: interrupted during deactivation")
		}
		if status == engine.StatusFailed {
			hint := e.rollback(context.Background(), flags, reachedDeactivated, nil, deactivationManifest, newManifest)
			return DeployFail, hint, fmt.Errorf("transition: deactivation failed")
		}
	}

	for _, mv := range plan.Moved {
		stateMigrationStarted = true
		if err := e.migrate(ctx, deactivationManifest, newManifest, mv); err != nil {
			hint := e.recoveryHint(newManifest)
			return DeployStateFail, hint, fmt.Errorf("transition: migrating %s: %w", mv.Service, err)
		}
	}

	if !flags.TransferOnly {
		activated, status := e.runStage(ctx, actOrder, activateSet, maxConcurrent, newManifest, true)
		reachedActivated = activated
		if status == engine.StatusInterrupted {
			if stateMigrationStarted {
				return Interrupted, e.recoveryHint(newManifest), fmt.Errorf("transition: interrupted after state migration began")
			}
			e.rollback(context.Background(), flags, reachedDeactivated, reachedActivated, deactivationManifest, newManifest)
			return Interrupted, nil, fmt.Errorf("transition: interrupted during activation")
		}
		if status == engine.StatusFailed {
			if stateMigrationStarted {
				return DeployStateFail, e.recoveryHint(newManifest), fmt.Errorf("transition: activation failed after state migration began")
			}
			hint := e.rollback(context.Background(), flags, reachedDeactivated, reachedActivated, deactivationManifest, newManifest)
			return DeployFail, hint, fmt.Errorf("transition: activation failed")
		}
	}

	for _, mv := range plan.Moved {
		e.finishMigration(ctx, flags, mv)
	}

	return DeployOK, nil, nil
}

// runStage executes (de)activate verbs for every mapping in order that is
// also present in includeSet, via the bounded parallel engine, respecting
// per-target serialization. It returns the mappings it actually reached
// (attempted), in case a later stage needs to reverse them.
func (e *Engine) runStage(ctx context.Context, order []manifest.Mapping, includeSet map[string]struct{}, maxConcurrent int, m *manifest.Manifest, activate bool) ([]manifest.Mapping, engine.Status) {
	var toRun []manifest.Mapping
	for _, mp := range order {
		if _, ok := includeSet[mp.Key()]; ok {
			toRun = append(toRun, mp)
		}
	}
	if len(toRun) == 0 {
		return nil, engine.StatusSuccess
	}

	taskEngine := engine.New(maxConcurrent, e.Flag)
	tasks := make([]engine.Item, 0, len(toRun))
	for _, mp := range toRun {
		mp := mp
		tasks = append(tasks, engine.Item{
			Key: mp.Target,
			Run: func(ctx context.Context) ([]string, error) {
				if activate {
					return nil, e.activate(ctx, m, mp)
				}
				return nil, e.deactivate(ctx, m, mp)
			},
		})
	}

	results, status := taskEngine.Run(ctx, tasks, true)
	var reached []manifest.Mapping
	for i, r := range results {
		if r.Key != "" {
			reached = append(reached, toRun[i])
		}
	}
	return reached, status
}

// address resolves a manifest target key to the connection address the
// client interface is invoked against, falling back to the bare key if the
// registry has no entry (e.g. a target absent from the live registry but
// still named by a stale previous manifest during rollback).
func (e *Engine) address(key string) string {
	if e.Registry != nil {
		if t, ok := e.Registry.Get(key); ok {
			return t.Address
		}
	}
	return key
}

func (e *Engine) activate(ctx context.Context, m *manifest.Manifest, mp manifest.Mapping) error {
	svc := m.Services[mp.Service]
	env, err := buildActivationEnv(e.Template, m, mp)
	if err != nil {
		return fmt.Errorf("activate %s: %w", mp.Key(), err)
	}
	logging.Info("target: "+mp.Target, "activating %s in container %s", mp.Service, mp.Container)
	return e.Client.Activate(ctx, e.address(mp.Target), svc.Type, svc.Path, mp.Container, env)
}

func (e *Engine) deactivate(ctx context.Context, m *manifest.Manifest, mp manifest.Mapping) error {
	svc := m.Services[mp.Service]
	env, err := buildActivationEnv(e.Template, m, mp)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", mp.Key(), err)
	}
	logging.Info("target: "+mp.Target, "deactivating %s in container %s", mp.Service, mp.Container)
	return e.Client.Deactivate(ctx, e.address(mp.Target), svc.Type, svc.Path, mp.Container, env)
}

// migrate runs the full per-moved-service sequence: it quiesces and
// captures state on the old target, pulls the tarball to the coordinator's
// state directory, pushes it to the new target, restores it there,
// activates the service on the new target, and only then deactivates the
// old instance. The old instance must stay up through snapshot and restore
// and must not be torn down until the new one is confirmed active: tearing
// it down any earlier (or regardless of whether activation succeeded) would
// leave a window with no live instance, or none at all if activation fails.
func (e *Engine) migrate(ctx context.Context, previous, newManifest *manifest.Manifest, mv Move) error {
	logging.Info("coordinator", "migrating state for %s: %s -> %s", mv.Service, mv.From.Target, mv.To.Target)

	fromAddr, toAddr := e.address(mv.From.Target), e.address(mv.To.Target)

	if err := e.Client.Snapshot(ctx, fromAddr, mv.From.Container, mv.Service); err != nil {
		return fmt.Errorf("snapshot on %s: %w", mv.From.Target, err)
	}
	if err := e.Client.CopySnapshotsFrom(ctx, fromAddr, mv.From.Container, mv.Service, e.Config.StateDir); err != nil {
		return fmt.Errorf("copy-snapshots-from %s: %w", mv.From.Target, err)
	}
	if err := e.Client.CopySnapshotsTo(ctx, toAddr, mv.To.Container, mv.Service, e.Config.StateDir); err != nil {
		return fmt.Errorf("copy-snapshots-to %s: %w", mv.To.Target, err)
	}
	if err := e.Client.Restore(ctx, toAddr, mv.To.Container, mv.Service); err != nil {
		return fmt.Errorf("restore on %s: %w", mv.To.Target, err)
	}
	if err := e.activate(ctx, newManifest, mv.To); err != nil {
		return fmt.Errorf("activate %s on %s: %w", mv.Service, mv.To.Target, err)
	}
	if err := e.deactivate(ctx, previous, mv.From); err != nil {
		return fmt.Errorf("deactivate %s on %s: %w", mv.Service, mv.From.Target, err)
	}
	return nil
}

// finishMigration runs the post-activation half of a move: deleting the
// old target's state if delete-state was requested, or logging the exact
// command an operator runs later to do it by hand.
func (e *Engine) finishMigration(ctx context.Context, flags TransitionFlags, mv Move) {
	if flags.DeleteState {
		if err := e.Client.DeleteState(ctx, e.address(mv.From.Target), mv.From.Container, mv.Service); err != nil {
			logging.Warn("target: "+mv.From.Target, "delete-state failed for %s: %v", mv.Service, err)
		}
		return
	}
	logging.Info("coordinator", "state left on %s for %s; run: disnix-delete-state --target %s --container %s %s",
		mv.From.Target, mv.Service, mv.From.Target, mv.From.Container, mv.Service)
}

// rollback inverts whatever subset of the plan was reached, before state
// migration began: it re-activates what it just deactivated and
// deactivates what it just activated. It is a no-op (beyond returning a
// RecoveryHint-free nil) when flags.NoRollback is set.
func (e *Engine) rollback(ctx context.Context, flags TransitionFlags, deactivated, activated []manifest.Mapping, prevManifest, newManifestForRollback *manifest.Manifest) *RecoveryHint {
	if flags.NoRollback {
		logging.Warn("coordinator", "no-rollback set: leaving %d deactivated and %d activated mappings as-is", len(deactivated), len(activated))
		return nil
	}

	for _, mp := range activated {
		if err := e.deactivate(ctx, newManifestForRollback, mp); err != nil {
			logging.Error("target: "+mp.Target, err, "rollback: failed to deactivate %s", mp.Service)
		}
	}
	for _, mp := range deactivated {
		if err := e.activate(ctx, prevManifest, mp); err != nil {
			logging.Error("target: "+mp.Target, err, "rollback: failed to reactivate %s", mp.Service)
		}
	}
	return nil
}

func (e *Engine) recoveryHint(newManifest *manifest.Manifest) *RecoveryHint {
	return &RecoveryHint{
		MigrateCommand: fmt.Sprintf("disnix-migrate --target-property %s %s", e.Config.TargetProperty, newManifest.SourcePath),
		SetCommand:     fmt.Sprintf("disnix-set --profile %s %s", e.Config.Profile, newManifest.SourcePath),
	}
}

func mappingKeySetFromSlice(mappings []manifest.Mapping) map[string]struct{} {
	out := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		out[m.Key()] = struct{}{}
	}
	return out
}
