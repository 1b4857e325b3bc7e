package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicabarNimble/go-deploymirror/internal/deploy"
)

type syncOptions struct {
	push   bool
	url    string
	branch string
	keep   bool
}

func newSyncCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refill the deployment repository and commit",
		Long: `Clone the deployment repository into a fresh workspace, replace its content
with the filtered project tree and commit the result. With --push the commit
is pushed when it changed at least one file.`,
		Example: `  gitmirror sync
  gitmirror sync --push
  gitmirror sync --url https://github.com/acme/site --branch production --keep`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, global, opts)
		},
	}

	addSyncFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.push, "push", false, "Push the commit to the remote")

	return cmd
}

func newPushCmd(global *globalOptions) *cobra.Command {
	opts := &syncOptions{push: true}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Sync and push, then remove the workspace",
		Example: `  gitmirror push
  gitmirror push --branch production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, global, opts)
		},
	}

	addSyncFlags(cmd, opts)

	return cmd
}

func addSyncFlags(cmd *cobra.Command, opts *syncOptions) {
	cmd.Flags().StringVar(&opts.url, "url", "", "Deployment repository (https://github.com/owner/repo)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Deployment branch, must exist on the remote")
	cmd.Flags().BoolVar(&opts.keep, "keep", false, "Keep the workspace after a push")
}

func runSync(cmd *cobra.Command, global *globalOptions, opts *syncOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	if opts.keep {
		cfg.KeepWorkspace = true
	}

	console := newConsole(cmd, cfg.Verbose)
	syncer, err := deploy.NewSyncer(cfg,
		deploy.WithLogger(newLogger(cmd.ErrOrStderr(), cfg.Verbose)),
		deploy.WithReporter(console),
	)
	if err != nil {
		return err
	}

	out, err := syncer.Sync(cmd.Context(), opts.push, opts.url, opts.branch)
	if err != nil {
		return err
	}
	if out.Workspace != "" && !out.NothingToDo {
		fmt.Fprintf(cmd.OutOrStdout(), "Workspace: %s\n", out.Workspace)
	}
	return nil
}
