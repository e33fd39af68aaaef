package cmd

import (
	"errors"
	"os"

	"disnix/internal/manifest"

	"github.com/spf13/cobra"
)

// Exit codes for the deploy driver, per the external interfaces contract.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general failure: activation/deactivation
	// failed (rolled back or not), or the deploy was interrupted.
	ExitCodeError = 1
	// ExitCodeInvalidManifest indicates the manifest failed to load or
	// parse before any remote side effect occurred.
	ExitCodeInvalidManifest = 2
)

// rootCmd represents the base command for the disnix application.
var rootCmd = &cobra.Command{
	Use:   "disnix",
	Short: "Deploy and manage services across a fleet of Nix-based targets",
	Long: `disnix distributes service closures to a fleet of targets,
locks their profiles, transitions from the previously deployed manifest to
a new one in dependency order, migrates state for services that moved
target, and records the new profile generation once everything activates
cleanly.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the entry point for the CLI application, called from main.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "disnix version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// cliError carries the exit code a subcommand wants Execute to return,
// distinguishing manifest errors caught before any remote side effect from
// general deploy failures.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

// invalidManifestErr wraps err as an ExitCodeInvalidManifest failure.
func invalidManifestErr(err error) error {
	return &cliError{code: ExitCodeInvalidManifest, err: err}
}

// getExitCode determines the appropriate exit code based on the error type.
// A manifest sentinel bubbling up from anywhere in the call chain (not just
// errors explicitly wrapped with invalidManifestErr) is classified the same
// way, since Driver.Deploy/Activate wrap manifest.Load failures themselves.
func getExitCode(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, manifest.ErrNotFound) || errors.Is(err, manifest.ErrMalformedXML) || errors.Is(err, manifest.ErrInvariantViolation) {
		return ExitCodeInvalidManifest
	}
	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newActivateCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSetCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCompareManifestCmd())
}
