package cmd

import (
	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/deploy"
	"disnix/internal/transition"

	"github.com/spf13/cobra"
)

func newActivateCmd() *cobra.Command {
	var noRollback bool

	cmd := &cobra.Command{
		Use:   "activate MANIFEST",
		Short: "Activate a manifest already distributed to its targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.GetDefaultConfigPathOrPanic())
			if err != nil {
				return err
			}

			cl := client.New(cfg.ClientInterface)
			d := deploy.New(cl)

			outcome, hint, err := d.Activate(cmd.Context(), deploy.Options{
				ManifestPath: args[0],
				Config:       cfg,
				Flags:        transition.TransitionFlags{NoRollback: noRollback},
			})
			return reportOutcome(cmd, outcome, hint, err)
		},
	}

	cmd.Flags().BoolVar(&noRollback, "no-rollback", false, "suppress automatic rollback on DEPLOY_FAIL")
	return cmd
}
