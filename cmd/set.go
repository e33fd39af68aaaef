package cmd

import (
	"fmt"

	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/deploy"

	"github.com/spf13/cobra"
)

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set MANIFEST",
		Short: "Commit a manifest as the current profile generation without touching any target",
		Long: `set is the bookkeeping-only finalizer used to close out a
DEPLOY_STATE_FAIL recovery once an operator has confirmed the fleet's
actual state matches the given manifest: it records a new generation and
repoints "current" but issues no remote verbs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.GetDefaultConfigPathOrPanic())
			if err != nil {
				return err
			}

			cl := client.New(cfg.ClientInterface)
			d := deploy.New(cl)

			gen, err := d.Set(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed generation %d\n", gen)
			return nil
		},
	}

	return cmd
}
