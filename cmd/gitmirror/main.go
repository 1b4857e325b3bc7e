// Package main provides the entry point for the gitmirror CLI.
package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/NicabarNimble/go-deploymirror/internal/config"
	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/progress"
)

// Build info set via ldflags.
var version = "dev"

// Exit codes.
const (
	exitSuccess     = 0
	exitUserError   = 1
	exitSystemError = 2
)

type globalOptions struct {
	configFile string
	root       string
	verbose    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	err := fang.Execute(context.Background(), newRootCmd(), fang.WithVersion(version))
	return exitCode(err)
}

// exitCode maps configuration and usage errors to 1 and every failure of
// the run itself to 2.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var opErr *errors.OperationError
	if !stderrors.As(err, &opErr) || errors.IsUserError(err) {
		return exitUserError
	}
	return exitSystemError
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gitmirror",
		Short: "Mirror a development tree into a deployment repository",
		Long: `A CLI tool that assembles a filtered, deployable snapshot of a project
(plugins, themes, configuration, production vendor packages) in a fresh clone
of the deployment repository, commits it and optionally pushes it.

Running it twice over unchanged sources is a no-op.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Configuration file (default: <root>/.gitmirror.yaml)")
	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "Project root (default: from config or current directory)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log every git command")

	cmd.AddCommand(
		newSyncCmd(opts),
		newPushCmd(opts),
		newCleanupCmd(opts),
		newValidateCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// loadConfig reads the configuration and applies the global flags.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	var searchDirs []string
	if opts.root != "" {
		searchDirs = append(searchDirs, opts.root)
	}

	cfg, err := config.Load(opts.configFile, searchDirs...)
	if err != nil {
		return nil, err
	}
	if opts.root != "" {
		cfg.ProjectRoot = opts.root
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newConsole(cmd *cobra.Command, verbose bool) *progress.Console {
	out := cmd.OutOrStdout()
	return progress.NewConsole(out, cmd.ErrOrStderr(), progress.IsTTY(out), verbose)
}
