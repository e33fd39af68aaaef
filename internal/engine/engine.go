// Package engine is the parallel task scheduler shared by distribution,
// locking, and transition: it runs independent child-process tasks with a
// global concurrency cap for transfer verbs and per-target serialization
// for everything, replacing the reference implementation's pid-keyed
// fork/wait table with golang.org/x/sync/{errgroup,semaphore}.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"disnix/internal/interrupt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Status is the iterator's aggregate result: exactly one of Success, Failed
// or Interrupted, in that precedence order (Interrupted dominates Failed,
// which dominates Success).
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Item is one unit of work: a target-keyed task producing a result. Key is
// used for per-target mutual exclusion, never for ordering.
type Item struct {
	Key string
	Run func(ctx context.Context) (stdout []string, err error)
}

// Result pairs an Item's key with its outcome.
type Result struct {
	Key    string
	Stdout []string
	Err    error
}

// Engine schedules Items with bounded global concurrency (for transfer
// verbs) and always-on per-key serialization (for everything).
type Engine struct {
	MaxConcurrent int // 0 means unbounded
	Flag          *interrupt.Flag
}

// New returns an Engine bounding transfer-class work to maxConcurrent
// concurrent children and polling flag for cooperative cancellation.
func New(maxConcurrent int, flag *interrupt.Flag) *Engine {
	return &Engine{MaxConcurrent: maxConcurrent, Flag: flag}
}

// Run admits items in order, respecting per-key serialization always and
// the global cap when bounded is true. Work-stealing order: the engine
// pulls items in the slice's natural order and blocks on the next free
// semaphore slot (transfer verbs) or goroutine (non-transfer verbs) before
// admitting more. It never kills in-flight children on interrupt: it stops
// admitting, waits for everything already admitted to finish, and reports
// StatusInterrupted.
func (e *Engine) Run(ctx context.Context, items []Item, bounded bool) ([]Result, Status) {
	results := make([]Result, len(items))

	var sem *semaphore.Weighted
	if bounded && e.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(e.MaxConcurrent))
	}

	km := newKeyedMutex()
	g, gctx := errgroup.WithContext(ctx)

	var failed atomic.Bool
	var interrupted atomic.Bool

	for i, item := range items {
		if e.Flag != nil && e.Flag.IsSet() {
			interrupted.Store(true)
			break
		}

		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				interrupted.Store(true)
				break
			}
		}

		i, item := i, item
		g.Go(func() error {
			if sem != nil {
				defer sem.Release(1)
			}
			unlock := km.Lock(item.Key)
			defer unlock()

			stdout, err := item.Run(gctx)
			results[i] = Result{Key: item.Key, Stdout: stdout, Err: err}
			if err != nil {
				failed.Store(true)
			}
			return nil
		})
	}

	_ = g.Wait()

	switch {
	case interrupted.Load():
		return results, StatusInterrupted
	case failed.Load():
		return results, StatusFailed
	default:
		return results, StatusSuccess
	}
}

// keyedMutex hands out one *sync.Mutex per key, lazily, so that at most one
// task per key runs concurrently regardless of the global cap.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
