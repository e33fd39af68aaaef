// Package distribute implements the distribution stage: copying each
// target's profile store path to that target before anything is locked or
// activated, so a transfer failure never leaves a partially-locked fleet.
package distribute

import (
	"context"
	"fmt"
	"os"

	"disnix/internal/client"
	"disnix/internal/engine"
	"disnix/internal/manifest"
	"disnix/internal/registry"
	"disnix/pkg/logging"
)

// Distribute copies every distribution item's profile path to its target,
// bounded by maxConcurrent. For each item it asks the target's client
// interface whether the profile path itself is missing (PrintInvalid) and,
// if it is, streams the profile file (Import); the profile's requisite paths
// are not queried. A target that already has the profile does no transfer.
//
// Any single target's failure is fatal: Distribute returns the first error
// and the caller must not proceed to the locking stage with an incomplete
// fleet.
func Distribute(ctx context.Context, cl client.Interface, reg *registry.Registry, items []manifest.DistributionItem, maxConcurrent int) error {
	items = dedupeByTarget(items)

	e := engine.New(maxConcurrent, nil)
	tasks := make([]engine.Item, 0, len(items))

	for _, item := range items {
		item := item
		if _, ok := reg.Get(item.Target); !ok {
			return fmt.Errorf("distribute: unknown target %s", item.Target)
		}

		tasks = append(tasks, engine.Item{
			Key: item.Target,
			Run: func(ctx context.Context) ([]string, error) {
				return nil, distributeOne(ctx, cl, item)
			},
		})
	}

	results, status := e.Run(ctx, tasks, true)
	if status == engine.StatusInterrupted {
		return fmt.Errorf("distribute: interrupted before completion")
	}
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("distribute: target %s: %w", r.Key, r.Err)
		}
	}
	return nil
}

// distributeOne transfers a single profile to a single target: it asks the
// target whether the profile path is missing and, if so, imports the file
// at the local profile path as one stream.
func distributeOne(ctx context.Context, cl client.Interface, item manifest.DistributionItem) error {
	logging.Info("target: "+item.Target, "distributing profile %s", item.Profile)

	missing, err := cl.PrintInvalid(ctx, item.Target, []string{item.Profile})
	if err != nil {
		return fmt.Errorf("print-invalid: %w", err)
	}
	if len(missing) == 0 {
		logging.Debug("target: "+item.Target, "profile %s already present, skipping import", item.Profile)
		return nil
	}

	f, err := os.Open(item.Profile)
	if err != nil {
		return fmt.Errorf("open profile %s: %w", item.Profile, err)
	}
	defer f.Close()

	if err := cl.Import(ctx, item.Target, f); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

// dedupeByTarget keeps the last distribution item per target, mirroring a
// manifest where a later <mapping> for the same target supersedes an
// earlier one.
func dedupeByTarget(items []manifest.DistributionItem) []manifest.DistributionItem {
	seen := make(map[string]int, len(items))
	out := make([]manifest.DistributionItem, 0, len(items))
	for _, item := range items {
		if idx, ok := seen[item.Target]; ok {
			out[idx] = item
			continue
		}
		seen[item.Target] = len(out)
		out = append(out, item)
	}
	return out
}
