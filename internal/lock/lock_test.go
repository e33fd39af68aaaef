package lock

import (
	"context"
	"testing"

	"disnix/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLocksEveryTargetInOrder(t *testing.T) {
	fc := client.NewFake()

	ls, err := Acquire(context.Background(), fc, []string{"target1", "target2", "target3"}, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"target1", "target2", "target3"}, ls.Acquired)

	for _, target := range []string{"target1", "target2", "target3"} {
		assert.Equal(t, []string{"lock"}, fc.VerbsForTarget(target))
	}
}

func TestAcquireRollsBackOnPartialFailure(t *testing.T) {
	fc := client.NewFake()
	fc.Fail("lock", "target3", assert.AnError)

	ls, err := Acquire(context.Background(), fc, []string{"target1", "target2", "target3"}, "default")
	require.Error(t, err)
	require.Nil(t, ls)

	// target1 and target2 were locked then unlocked; target3 never locked.
	assert.Equal(t, []string{"lock", "unlock"}, fc.VerbsForTarget("target1"))
	assert.Equal(t, []string{"lock", "unlock"}, fc.VerbsForTarget("target2"))
	assert.Equal(t, []string{"lock"}, fc.VerbsForTarget("target3"))
}

func TestReleaseUnlocksAllAcquired(t *testing.T) {
	fc := client.NewFake()
	ls, err := Acquire(context.Background(), fc, []string{"target1", "target2"}, "default")
	require.NoError(t, err)

	ls.Release(context.Background(), fc)
	assert.Equal(t, []string{"lock", "unlock"}, fc.VerbsForTarget("target1"))
	assert.Equal(t, []string{"lock", "unlock"}, fc.VerbsForTarget("target2"))
	assert.Empty(t, ls.Acquired)
}

func TestReleaseIgnoresUnlockFailures(t *testing.T) {
	fc := client.NewFake()
	fc.Fail("unlock", "target1", assert.AnError)

	ls, err := Acquire(context.Background(), fc, []string{"target1"}, "default")
	require.NoError(t, err)

	// Must not panic and must still attempt the unlock.
	ls.Release(context.Background(), fc)
	assert.Equal(t, []string{"lock", "unlock"}, fc.VerbsForTarget("target1"))
}
