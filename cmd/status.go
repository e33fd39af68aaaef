package cmd

import (
	"errors"

	"disnix/internal/config"
	"disnix/internal/manifest"
	"disnix/internal/profile"
	"disnix/internal/registry"
	"disnix/internal/status"
	"disnix/internal/transition"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var plan string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the fleet overview for the current profile generation, or a plan against a candidate manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.GetDefaultConfigPathOrPanic())
			if err != nil {
				return err
			}

			store := profile.NewStore(cfg, cfg.Profile)
			current, err := store.DetermineManifestToOpen(manifest.FlagAll)
			if err != nil && !errors.Is(err, profile.ErrNoGenerations) {
				return err
			}

			if plan != "" {
				candidate, err := manifest.Load(plan, manifest.FlagAll)
				if err != nil {
					return invalidManifestErr(err)
				}
				status.Plan(cmd.OutOrStdout(), transition.Diff(current, candidate))
				return nil
			}

			if current == nil {
				return invalidManifestErr(profile.ErrNoGenerations)
			}
			reg, err := registry.Build(current, cfg)
			if err != nil {
				return err
			}
			status.FleetOverview(cmd.OutOrStdout(), reg, current)
			return nil
		},
	}

	cmd.Flags().StringVar(&plan, "plan", "", "print the transition plan against this candidate manifest instead of the fleet overview")
	return cmd
}
