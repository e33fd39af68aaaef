package cmd

import (
	"disnix/internal/client"
	"disnix/internal/config"
	"disnix/internal/deploy"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var container, component string

	cmd := &cobra.Command{
		Use:   "migrate FROM_TARGET TO_TARGET",
		Short: "Move a component's state from one target to another",
		Long: `migrate runs the snapshot/copy-snapshots-from/copy-snapshots-to/restore
sequence for a single (container, component) pair, outside a full deploy.
Operators can use it to move a single component's state by hand. The
recovery hint printed on DEPLOY_STATE_FAIL names a disnix-migrate
invocation over the whole manifest, not a command line for this
subcommand.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.GetDefaultConfigPathOrPanic())
			if err != nil {
				return err
			}

			cl := client.New(cfg.ClientInterface)
			d := deploy.New(cl)

			return d.Migrate(cmd.Context(), deploy.MigrateOptions{
				FromTarget: args[0],
				ToTarget:   args[1],
				Container:  container,
				Component:  component,
				Config:     cfg,
			})
		},
	}

	cmd.Flags().StringVar(&container, "container", "", "container name")
	cmd.Flags().StringVar(&component, "component", "", "component name")
	_ = cmd.MarkFlagRequired("container")
	_ = cmd.MarkFlagRequired("component")

	return cmd
}
