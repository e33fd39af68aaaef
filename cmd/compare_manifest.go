package cmd

import (
	"fmt"
	"os"

	"disnix/internal/manifest"

	"github.com/spf13/cobra"
)

func newCompareManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare-manifest NEW PREVIOUS",
		Short: "Compare two manifests and report whether they describe the same deployment",
		Long: `compare-manifest reports whether NEW and PREVIOUS describe the same
extensional mapping set, for upstream tooling deciding whether a redeploy
would be a no-op. Its exit code contract is independent of the deploy
driver's: 0 = equal, 1 = different, 2 = invalid input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newManifest, err := manifest.Load(args[0], manifest.FlagAll)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid new manifest: %v\n", err)
				os.Exit(manifest.CompareInvalid)
			}
			previous, err := manifest.Load(args[1], manifest.FlagAll)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "invalid previous manifest: %v\n", err)
				os.Exit(manifest.CompareInvalid)
			}

			result, err := manifest.CompareManifests(newManifest, previous)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(manifest.CompareInvalid)
			}

			switch result {
			case manifest.CompareEqual:
				fmt.Fprintln(cmd.OutOrStdout(), "equal")
			case manifest.CompareDiffer:
				diff := manifest.ComputeDiff(newManifest, previous)
				fmt.Fprintf(cmd.OutOrStdout(), "different: %d added, %d removed\n", len(diff.Added), len(diff.Removed))
			}
			os.Exit(result)
			return nil
		},
	}

	return cmd
}
