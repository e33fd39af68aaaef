package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"disnix/internal/interrupt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRespectsConcurrencyCap(t *testing.T) {
	e := New(2, nil)

	var inFlight, maxInFlight int32
	items := make([]Item, 10)
	for i := range items {
		items[i] = Item{
			Key: "item",
			Run: func(ctx context.Context) ([]string, error) {
				cur := atomic.AddInt32(&inFlight, 1)
				for {
					max := atomic.LoadInt32(&maxInFlight)
					if cur <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil, nil
			},
		}
	}
	// Give every item a distinct key so per-key serialization doesn't mask
	// the global cap under test.
	for i := range items {
		items[i].Key = string(rune('a' + i))
	}

	_, status := e.Run(context.Background(), items, true)
	assert.Equal(t, StatusSuccess, status)
	assert.LessOrEqual(t, atomic.LoadInt32(&maxInFlight), int32(2))
}

func TestRunSerializesPerKey(t *testing.T) {
	e := New(0, nil)

	var mu sync.Mutex
	active := map[string]bool{}
	violated := false

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{
			Key: "shared-target",
			Run: func(ctx context.Context) ([]string, error) {
				mu.Lock()
				if active["shared-target"] {
					violated = true
				}
				active["shared-target"] = true
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				active["shared-target"] = false
				mu.Unlock()
				return nil, nil
			},
		}
	}

	_, status := e.Run(context.Background(), items, false)
	assert.Equal(t, StatusSuccess, status)
	assert.False(t, violated, "two tasks for the same key ran concurrently")
}

func TestRunAggregatesFailure(t *testing.T) {
	e := New(0, nil)
	boom := errors.New("boom")

	items := []Item{
		{Key: "a", Run: func(ctx context.Context) ([]string, error) { return nil, nil }},
		{Key: "b", Run: func(ctx context.Context) ([]string, error) { return nil, boom }},
		{Key: "c", Run: func(ctx context.Context) ([]string, error) { return nil, nil }},
	}

	results, status := e.Run(context.Background(), items, false)
	assert.Equal(t, StatusFailed, status)
	require.Len(t, results, 3)
	assert.ErrorIs(t, results[1].Err, boom)
	// The iterator drains remaining work even after a failure.
	assert.NoError(t, results[2].Err)
}

func TestRunStopsAdmittingWhenInterrupted(t *testing.T) {
	flag := &interrupt.Flag{}
	flag.Set()
	e := New(0, flag)

	var ran int32
	items := make([]Item, 5)
	for i := range items {
		items[i] = Item{
			Key: string(rune('a' + i)),
			Run: func(ctx context.Context) ([]string, error) {
				atomic.AddInt32(&ran, 1)
				return nil, nil
			},
		}
	}

	_, status := e.Run(context.Background(), items, false)
	assert.Equal(t, StatusInterrupted, status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}
