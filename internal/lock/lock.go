// Package lock implements the two-phase locking stage: acquire a
// coordination lock on every target involved in a deploy before any
// activation runs, and roll back cleanly if any single target's lock
// cannot be obtained.
package lock

import (
	"context"
	"fmt"
	"sync"

	"disnix/internal/client"
	"disnix/pkg/logging"
)

// Lockset tracks which targets a lock acquisition successfully locked, so
// a partial failure (or interrupt) can be unwound by unlocking exactly
// those and nothing else.
type Lockset struct {
	mu       sync.Mutex
	Profile  string
	Acquired []string
}

// Acquire locks profile on every target in targets, in order. On the first
// failure it stops attempting further targets and rolls back everything
// already acquired, returning the triggering error.
func Acquire(ctx context.Context, cl client.Interface, targets []string, profile string) (*Lockset, error) {
	ls := &Lockset{Profile: profile}

	for _, target := range targets {
		logging.Debug("target: "+target, "acquiring lock on profile %s", profile)
		if err := cl.Lock(ctx, target, profile); err != nil {
			logging.Error("target: "+target, err, "lock acquisition failed")
			ls.Rollback(context.Background(), cl)
			return nil, fmt.Errorf("lock: target %s: %w", target, err)
		}
		ls.mu.Lock()
		ls.Acquired = append(ls.Acquired, target)
		ls.mu.Unlock()

		select {
		case <-ctx.Done():
			ls.Rollback(context.Background(), cl)
			return nil, fmt.Errorf("lock: interrupted after locking %s: %w", target, ctx.Err())
		default:
		}
	}

	return ls, nil
}

// Rollback unlocks every target this Lockset acquired, in reverse
// acquisition order. It is called automatically by Acquire on partial
// failure or interrupt; callers may also invoke it directly to bail out of
// a deploy after a later stage fails. Unlock errors are logged but do not
// stop the rollback from visiting every acquired target.
func (ls *Lockset) Rollback(ctx context.Context, cl client.Interface) {
	ls.mu.Lock()
	acquired := append([]string(nil), ls.Acquired...)
	ls.Acquired = nil
	ls.mu.Unlock()

	for i := len(acquired) - 1; i >= 0; i-- {
		target := acquired[i]
		if err := cl.Unlock(ctx, target, ls.Profile); err != nil {
			logging.Warn("target: "+target, "rollback unlock failed: %v", err)
		}
	}
}

// Release is the non-critical-path end-of-deploy unlock: every acquired
// target is unlocked regardless of individual failures, which are logged
// but never flip the deploy's outcome.
func (ls *Lockset) Release(ctx context.Context, cl client.Interface) {
	ls.mu.Lock()
	acquired := append([]string(nil), ls.Acquired...)
	ls.Acquired = nil
	ls.mu.Unlock()

	for _, target := range acquired {
		if err := cl.Unlock(ctx, target, ls.Profile); err != nil {
			logging.Warn("target: "+target, "unlock failed: %v", err)
		}
	}
}
