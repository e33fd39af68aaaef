package client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClientRecordsCallsInOrder(t *testing.T) {
	fc := NewFake()
	ctx := context.Background()

	require.NoError(t, fc.Lock(ctx, "target1", "default"))
	require.NoError(t, fc.Activate(ctx, "target1", "process", "/nix/store/x", "process", nil))
	require.NoError(t, fc.Unlock(ctx, "target1", "default"))

	assert.Equal(t, []string{"lock", "activate", "unlock"}, fc.VerbsForTarget("target1"))
}

func TestFakeClientFailConfiguresError(t *testing.T) {
	fc := NewFake()
	wantErr := errors.New("boom")
	fc.Fail("activate", "target1", wantErr)

	err := fc.Activate(context.Background(), "target1", "process", "/nix/store/x", "process", nil)
	require.ErrorIs(t, err, wantErr)

	// Unrelated target is unaffected.
	err = fc.Activate(context.Background(), "target2", "process", "/nix/store/x", "process", nil)
	require.NoError(t, err)
}

func TestFakeClientPrintInvalidReturnsConfiguredMissingPaths(t *testing.T) {
	fc := NewFake()
	fc.MissingPaths = []string{"/nix/store/a", "/nix/store/b"}

	missing, err := fc.PrintInvalid(context.Background(), "target1", []string{"/nix/store/a", "/nix/store/b", "/nix/store/c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/nix/store/a", "/nix/store/b"}, missing)
}

func TestFakeClientSnapshotQueries(t *testing.T) {
	fc := NewFake()
	fc.Snapshots["target1/process/db"] = []string{"gen-1", "gen-2"}

	all, err := fc.QueryAllSnapshots(context.Background(), "target1", "process", "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen-1", "gen-2"}, all)

	latest, err := fc.QueryLatestSnapshot(context.Background(), "target1", "process", "db")
	require.NoError(t, err)
	assert.Equal(t, []string{"gen-2"}, latest)
}
