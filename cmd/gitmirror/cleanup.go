package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicabarNimble/go-deploymirror/internal/deploy"
)

func newCleanupCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove workspaces left behind by earlier runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			syncer, err := deploy.NewSyncer(cfg, deploy.WithLogger(newLogger(cmd.ErrOrStderr(), cfg.Verbose)))
			if err != nil {
				return err
			}

			removed, err := syncer.Cleanup()
			for _, path := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orphan workspace(s) removed\n", len(removed))
			return nil
		},
	}
}
