package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NicabarNimble/go-deploymirror/internal/config"
	"github.com/NicabarNimble/go-deploymirror/internal/errors"
)

func newConfigCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the configuration",
	}

	cmd.AddCommand(newConfigInitCmd(global), newConfigShowCmd(global))

	return cmd
}

func newConfigInitCmd(global *globalOptions) *cobra.Command {
	var force bool
	var url string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .gitmirror.yaml",
		Example: `  gitmirror config init --url https://github.com/acme/site
  gitmirror --root ./site config init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := global.configFile
			if path == "" {
				root := global.root
				if root == "" {
					root = "."
				}
				path = filepath.Join(root, config.FileName+".yaml")
			}

			if _, err := os.Stat(path); err == nil && !force {
				return errors.Newf(errors.OpConfiguration, "%s already exists, use --force to overwrite", path)
			}

			cfg := config.DefaultConfig()
			cfg.RemoteURL = url
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return errors.New(errors.OpConfiguration, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVar(&url, "url", "", "Deployment repository (https://github.com/owner/repo)")

	return cmd
}

func newConfigShowCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
