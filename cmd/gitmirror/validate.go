package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NicabarNimble/go-deploymirror/internal/deploy"
)

type validateOptions struct {
	url    string
	branch string
}

func newValidateCmd(global *globalOptions) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:     "validate",
		Short:   "Check the deployment URL and branch without touching anything",
		Example: `  gitmirror validate --url https://github.com/acme/site --branch main`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			url, branch := opts.url, opts.branch
			if url == "" {
				url = cfg.RemoteURL
			}
			if branch == "" {
				branch = cfg.Branch
			}

			target, err := deploy.NewRemoteTarget(url, branch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "URL:      %s\n", target.URL)
			fmt.Fprintf(out, "Push URL: %s\n", target.PushURL)
			fmt.Fprintf(out, "Branch:   %s\n", target.Branch)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Deployment repository (https://github.com/owner/repo)")
	cmd.Flags().StringVar(&opts.branch, "branch", "", "Deployment branch")

	return cmd
}
