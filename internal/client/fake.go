package client

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Call records one verb invocation observed by a FakeClient, in the order
// it was received, for assertions about ordering and per-target exclusion.
type Call struct {
	Verb      string
	Target    string
	Args      []string
	Container string
	Component string
}

// VerbFailure configures a FakeClient verb to fail for a specific target.
type VerbFailure struct {
	Verb   string
	Target string
	Err    error
}

// FakeClient is an in-memory Interface implementation for deterministic
// unit tests of the engine, distribution, locking and transition stages
// without spawning real processes.
type FakeClient struct {
	mu sync.Mutex

	Calls []Call

	// Failures maps "verb/target" to an error that verb should return for
	// that target; unset combinations succeed.
	Failures map[string]error

	// MissingPaths is returned by PrintInvalid for any target, simulating
	// which store paths the remote agent reports as not yet present.
	MissingPaths []string

	// Snapshots maps "target/container/component" to the list of snapshot
	// ids QueryAllSnapshots/QueryLatestSnapshot return.
	Snapshots map[string][]string
}

var _ Interface = (*FakeClient)(nil)

// NewFake returns an empty FakeClient ready for use.
func NewFake() *FakeClient {
	return &FakeClient{
		Failures:  make(map[string]error),
		Snapshots: make(map[string][]string),
	}
}

// Fail configures verb to return err when invoked against target.
func (f *FakeClient) Fail(verb, target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Failures[verb+"/"+target] = err
}

func (f *FakeClient) record(verb, target string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Verb: verb, Target: target, Args: args})
	if err, ok := f.Failures[verb+"/"+target]; ok {
		return err
	}
	return nil
}

func (f *FakeClient) PrintInvalid(ctx context.Context, target string, paths []string) ([]string, error) {
	if err := f.record("print-invalid", target, paths...); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.MissingPaths...), nil
}

func (f *FakeClient) Import(ctx context.Context, target string, nar io.Reader) error {
	if nar != nil {
		_, _ = io.Copy(io.Discard, nar)
	}
	return f.record("import", target)
}

func (f *FakeClient) Export(ctx context.Context, target string, paths []string, out io.Writer) error {
	return f.record("export", target, paths...)
}

func (f *FakeClient) Realise(ctx context.Context, target, derivation string) ([]string, error) {
	if err := f.record("realise", target, derivation); err != nil {
		return nil, err
	}
	return []string{derivation}, nil
}

func (f *FakeClient) SetProfile(ctx context.Context, target, profile, path string) error {
	return f.record("set", target, profile, path)
}

func (f *FakeClient) QueryInstalled(ctx context.Context, target, profile string, out io.Writer) error {
	return f.record("query-installed", target, profile)
}

func (f *FakeClient) QueryRequisites(ctx context.Context, target string, paths []string) ([]string, error) {
	if err := f.record("query-requisites", target, paths...); err != nil {
		return nil, err
	}
	return paths, nil
}

func (f *FakeClient) CollectGarbage(ctx context.Context, target string, deleteOld bool) error {
	return f.record("collect-garbage", target)
}

func (f *FakeClient) Lock(ctx context.Context, target, profile string) error {
	return f.record("lock", target, profile)
}

func (f *FakeClient) Unlock(ctx context.Context, target, profile string) error {
	return f.record("unlock", target, profile)
}

func (f *FakeClient) Activate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error {
	return f.record("activate", target, typ, servicePath, container)
}

func (f *FakeClient) Deactivate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error {
	return f.record("deactivate", target, typ, servicePath, container)
}

func (f *FakeClient) Snapshot(ctx context.Context, target, container, component string) error {
	return f.record("snapshot", target, container, component)
}

func (f *FakeClient) Restore(ctx context.Context, target, container, component string) error {
	return f.record("restore", target, container, component)
}

func (f *FakeClient) QueryAllSnapshots(ctx context.Context, target, container, component string) ([]string, error) {
	key := fmt.Sprintf("%s/%s/%s", target, container, component)
	if err := f.record("query-all-snapshots", target, container, component); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Snapshots[key]...), nil
}

func (f *FakeClient) QueryLatestSnapshot(ctx context.Context, target, container, component string) ([]string, error) {
	key := fmt.Sprintf("%s/%s/%s", target, container, component)
	if err := f.record("query-latest-snapshot", target, container, component); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.Snapshots[key]
	if len(ids) == 0 {
		return nil, nil
	}
	return ids[len(ids)-1:], nil
}

func (f *FakeClient) PrintMissingSnapshots(ctx context.Context, target string, ids []string) ([]string, error) {
	if err := f.record("print-missing-snapshots", target, ids...); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *FakeClient) ResolveSnapshots(ctx context.Context, target string, ids []string) ([]string, error) {
	if err := f.record("resolve-snapshots", target, ids...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (f *FakeClient) CleanSnapshots(ctx context.Context, target string, keep int, container, component string) error {
	return f.record("clean-snapshots", target, container, component)
}

func (f *FakeClient) DeleteState(ctx context.Context, target, container, component string) error {
	return f.record("delete-state", target, container, component)
}

func (f *FakeClient) CopySnapshotsFrom(ctx context.Context, target, container, component, destDir string) error {
	return f.record("copy-snapshots-from", target, container, component)
}

func (f *FakeClient) CopySnapshotsTo(ctx context.Context, target, container, component, srcDir string) error {
	return f.record("copy-snapshots-to", target, container, component)
}

// VerbsForTarget returns the ordered list of verbs FakeClient observed
// against target, for assertions about per-target ordering.
func (f *FakeClient) VerbsForTarget(target string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var verbs []string
	for _, c := range f.Calls {
		if c.Target == target {
			verbs = append(verbs, c.Verb)
		}
	}
	return verbs
}
