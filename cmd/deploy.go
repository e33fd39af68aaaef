package cmd

import (
	"fmt"

	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/deploy"
	"disnix/internal/transition"
	"disnix/pkg/logging"

	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	var (
		noRollback   bool
		dryRun       bool
		transferOnly bool
		deleteState  bool
		depthFirst   bool
	)

	cmd := &cobra.Command{
		Use:   "deploy MANIFEST",
		Short: "Distribute, lock, transition, and commit a new manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.GetDefaultConfigPathOrPanic())
			if err != nil {
				return err
			}
			if deleteState {
				cfg.DeleteState = true
			}

			cl := client.New(cfg.ClientInterface)
			d := deploy.New(cl)

			traversal := transition.TraversalBreadthFirst
			if depthFirst {
				traversal = transition.TraversalDepthFirst
			}

			outcome, hint, err := d.Deploy(cmd.Context(), deploy.Options{
				ManifestPath: args[0],
				Config:       cfg,
				Flags: transition.TransitionFlags{
					NoRollback:   noRollback,
					DryRun:       dryRun,
					TransferOnly: transferOnly,
					DeleteState:  cfg.DeleteState,
					Traversal:    traversal,
				},
			})
			return reportOutcome(cmd, outcome, hint, err)
		},
	}

	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "suppress automatic rollback on DEPLOY_FAIL")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log how many mappings would be deactivated, activated, moved and kept, without executing remote verbs; the per-mapping plan is not printed")
	cmd.Flags().BoolVar(&transferOnly, "transfer-only", false, "run distribution and snapshot copies but skip (de)activation")
	cmd.Flags().BoolVar(&deleteState, "delete-state", false, "delete a moved service's state on its old target once the move has completed")
	cmd.Flags().BoolVar(&depthFirst, "depth-first", false, "run the fleet-wide deactivate and activate passes one mapping at a time (passes are not interleaved per service)")

	return cmd
}

// reportOutcome prints a deploy/activate outcome and maps it into a
// cobra-friendly error, printing the recovery hint on DEPLOY_STATE_FAIL
// per the "no silent data loss" contract.
func reportOutcome(cmd *cobra.Command, outcome transition.Outcome, hint *transition.RecoveryHint, err error) error {
	if err != nil {
		if hint != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "recovery required:")
			fmt.Fprintln(cmd.ErrOrStderr(), "  "+hint.MigrateCommand)
			fmt.Fprintln(cmd.ErrOrStderr(), "  "+hint.SetCommand)
		}
		return err
	}
	logging.Info("coordinator", "outcome: %s", outcome)
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", outcome)
	return nil
}
