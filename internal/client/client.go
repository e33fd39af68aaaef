// Package client invokes the client-interface executable — the opaque
// remote agent transport — with the verbs described in the external
// interfaces contract. It never runs user code in-process: every verb
// spawns CLIENT --target ADDR VERB ARGS... as a child process.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"disnix/pkg/logging"
)

// Interface is the set of verbs the orchestrator invokes against a target's
// client-interface executable. Client implements it by spawning processes;
// FakeClient implements it in-memory for tests.
type Interface interface {
	PrintInvalid(ctx context.Context, target string, paths []string) ([]string, error)
	Import(ctx context.Context, target string, nar io.Reader) error
	Export(ctx context.Context, target string, paths []string, out io.Writer) error
	Realise(ctx context.Context, target, derivation string) ([]string, error)
	SetProfile(ctx context.Context, target, profile, path string) error
	QueryInstalled(ctx context.Context, target, profile string, out io.Writer) error
	QueryRequisites(ctx context.Context, target string, paths []string) ([]string, error)
	CollectGarbage(ctx context.Context, target string, deleteOld bool) error
	Lock(ctx context.Context, target, profile string) error
	Unlock(ctx context.Context, target, profile string) error
	Activate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error
	Deactivate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error
	Snapshot(ctx context.Context, target, container, component string) error
	Restore(ctx context.Context, target, container, component string) error
	QueryAllSnapshots(ctx context.Context, target, container, component string) ([]string, error)
	QueryLatestSnapshot(ctx context.Context, target, container, component string) ([]string, error)
	PrintMissingSnapshots(ctx context.Context, target string, ids []string) ([]string, error)
	ResolveSnapshots(ctx context.Context, target string, ids []string) ([]string, error)
	CleanSnapshots(ctx context.Context, target string, keep int, container, component string) error
	DeleteState(ctx context.Context, target, container, component string) error
	CopySnapshotsFrom(ctx context.Context, target, container, component, destDir string) error
	CopySnapshotsTo(ctx context.Context, target, container, component, srcDir string) error
}

// Client dispatches verbs to the client-interface executable via os/exec.
type Client struct {
	// Executable is the path or name of the client-interface binary. One
	// Client invokes the same executable for every target; per-target
	// overrides resolved by internal/registry are not consulted here.
	Executable string
}

// New returns a Client invoking executable as the client-interface binary.
func New(executable string) *Client {
	return &Client{Executable: executable}
}

var _ Interface = (*Client)(nil)

// run invokes "Executable --target target verb args..." and returns its
// captured stdout lines (split on newline, empty lines dropped).
// Standard error is always forwarded to the orchestrator's standard error,
// prefixed with the target so multiplexed output remains attributable.
func (c *Client) run(ctx context.Context, target, verb string, args []string, stdin io.Reader, captureStdout bool, forwardStdout io.Writer) ([]string, error) {
	cmdArgs := append([]string{"--target", target, verb}, args...)
	cmd := exec.CommandContext(ctx, c.Executable, cmdArgs...)
	// Cancelling ctx never signals the running child; the call still waits
	// for it to exit.
	cmd.Cancel = func() error { return nil }

	cmd.Stderr = &targetPrefixedWriter{target: target, out: os.Stderr}
	if stdin != nil {
		cmd.Stdin = stdin
	}

	var outBuf bytes.Buffer
	switch {
	case captureStdout:
		cmd.Stdout = &outBuf
	case forwardStdout != nil:
		cmd.Stdout = forwardStdout
	default:
		cmd.Stdout = io.Discard
	}

	logging.Debug("target: "+target, "invoking %s %s", verb, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("target %s: %s failed: %w", target, verb, err)
	}

	if !captureStdout {
		return nil, nil
	}

	var lines []string
	for _, line := range strings.Split(outBuf.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

type targetPrefixedWriter struct {
	target string
	out    io.Writer
}

func (w *targetPrefixedWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(w.out, "[target: %s] %s\n", w.target, line)
	}
	return len(p), nil
}

func (c *Client) PrintInvalid(ctx context.Context, target string, paths []string) ([]string, error) {
	return c.run(ctx, target, "print-invalid", paths, nil, true, nil)
}

func (c *Client) Import(ctx context.Context, target string, nar io.Reader) error {
	_, err := c.run(ctx, target, "import", nil, nar, false, nil)
	return err
}

func (c *Client) Export(ctx context.Context, target string, paths []string, out io.Writer) error {
	_, err := c.run(ctx, target, "export", paths, nil, false, out)
	return err
}

func (c *Client) Realise(ctx context.Context, target, derivation string) ([]string, error) {
	return c.run(ctx, target, "realise", []string{derivation}, nil, true, nil)
}

func (c *Client) SetProfile(ctx context.Context, target, profile, path string) error {
	_, err := c.run(ctx, target, "set", []string{profile, path}, nil, false, nil)
	return err
}

func (c *Client) QueryInstalled(ctx context.Context, target, profile string, out io.Writer) error {
	_, err := c.run(ctx, target, "query-installed", []string{profile}, nil, false, out)
	return err
}

func (c *Client) QueryRequisites(ctx context.Context, target string, paths []string) ([]string, error) {
	return c.run(ctx, target, "query-requisites", paths, nil, true, nil)
}

func (c *Client) CollectGarbage(ctx context.Context, target string, deleteOld bool) error {
	args := []string{}
	if deleteOld {
		args = append(args, "--delete-old")
	}
	_, err := c.run(ctx, target, "collect-garbage", args, nil, false, nil)
	return err
}

func (c *Client) Lock(ctx context.Context, target, profile string) error {
	_, err := c.run(ctx, target, "lock", []string{profile}, nil, false, nil)
	return err
}

func (c *Client) Unlock(ctx context.Context, target, profile string) error {
	_, err := c.run(ctx, target, "unlock", []string{profile}, nil, false, nil)
	return err
}

func envArgs(env map[string]string) []string {
	args := make([]string, 0, len(env))
	for k, v := range env {
		args = append(args, k+"="+v)
	}
	return args
}

func (c *Client) Activate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error {
	args := append([]string{typ, servicePath, container}, envArgs(env)...)
	_, err := c.run(ctx, target, "activate", args, nil, false, nil)
	return err
}

func (c *Client) Deactivate(ctx context.Context, target, typ, servicePath, container string, env map[string]string) error {
	args := append([]string{typ, servicePath, container}, envArgs(env)...)
	_, err := c.run(ctx, target, "deactivate", args, nil, false, nil)
	return err
}

func (c *Client) Snapshot(ctx context.Context, target, container, component string) error {
	_, err := c.run(ctx, target, "snapshot", []string{container, component}, nil, false, nil)
	return err
}

func (c *Client) Restore(ctx context.Context, target, container, component string) error {
	_, err := c.run(ctx, target, "restore", []string{container, component}, nil, false, nil)
	return err
}

func (c *Client) QueryAllSnapshots(ctx context.Context, target, container, component string) ([]string, error) {
	return c.run(ctx, target, "query-all-snapshots", []string{container, component}, nil, true, nil)
}

func (c *Client) QueryLatestSnapshot(ctx context.Context, target, container, component string) ([]string, error) {
	return c.run(ctx, target, "query-latest-snapshot", []string{container, component}, nil, true, nil)
}

func (c *Client) PrintMissingSnapshots(ctx context.Context, target string, ids []string) ([]string, error) {
	return c.run(ctx, target, "print-missing-snapshots", ids, nil, true, nil)
}

func (c *Client) ResolveSnapshots(ctx context.Context, target string, ids []string) ([]string, error) {
	return c.run(ctx, target, "resolve-snapshots", ids, nil, true, nil)
}

func (c *Client) CleanSnapshots(ctx context.Context, target string, keep int, container, component string) error {
	args := []string{"--keep", strconv.Itoa(keep)}
	if container != "" {
		args = append(args, "--container", container)
	}
	if component != "" {
		args = append(args, "--component", component)
	}
	_, err := c.run(ctx, target, "clean-snapshots", args, nil, false, nil)
	return err
}

func (c *Client) DeleteState(ctx context.Context, target, container, component string) error {
	_, err := c.run(ctx, target, "delete-state", []string{container, component}, nil, false, nil)
	return err
}

// CopySnapshotsFrom pulls a moved service's snapshot tarball from target
// into destDir on the coordinator, ahead of CopySnapshotsTo pushing it to
// the new target. Transfers carry the generation identifier so reruns are
// no-ops.
func (c *Client) CopySnapshotsFrom(ctx context.Context, target, container, component, destDir string) error {
	_, err := c.run(ctx, target, "copy-snapshots-from", []string{container, component, destDir}, nil, false, nil)
	return err
}

// CopySnapshotsTo pushes a snapshot tarball staged at srcDir on the
// coordinator to the named target.
func (c *Client) CopySnapshotsTo(ctx context.Context, target, container, component, srcDir string) error {
	_, err := c.run(ctx, target, "copy-snapshots-to", []string{container, component, srcDir}, nil, false, nil)
	return err
}
