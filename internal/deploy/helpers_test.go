package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-deploymirror/internal/config"
	"github.com/NicabarNimble/go-deploymirror/internal/progress"
	"github.com/NicabarNimble/go-deploymirror/internal/runner"
)

// fakeRemote plays the deployment repository for every runner a Syncer
// creates.
type fakeRemote struct {
	branches   []string
	current    string
	skipGitDir bool              // clone leaves no .git behind
	cloneFiles map[string]string // content checked out by the clone
	commit     func() (string, bool)
	diffTree   func() (string, bool)
	pushOK     bool
	commands   []runner.Command
	pushes     int
	clonedURL  string
	workspace  string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		branches: []string{"main"},
		current:  "main",
		commit: func() (string, bool) {
			return "[main 1a2b3c4] Automated deployment sync commit", true
		},
		diffTree: func() (string, bool) {
			return "A\tweb/app/plugins/shop/shop.php\nM\t.gitignore", true
		},
		pushOK: true,
	}
}

func (f *fakeRemote) count(sub string) int {
	n := 0
	for _, cmd := range f.commands {
		if cmd[0] == sub {
			n++
		}
	}
	return n
}

// fakeRunner is a Runner answering git commands from a fakeRemote.
type fakeRunner struct {
	remote  *fakeRemote
	dir     string
	timeout time.Duration
}

func (r *fakeRunner) SetWorkingDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	r.dir = path
	return nil
}

func (r *fakeRunner) WorkingDirectory() string { return r.dir }

func (r *fakeRunner) SetTimeout(d time.Duration) time.Duration {
	prev := r.timeout
	r.timeout = d
	return prev
}

func (r *fakeRunner) Run(ctx context.Context, cmds ...runner.Command) runner.Result {
	result := runner.Result{Success: true}
	for _, cmd := range cmds {
		r.remote.commands = append(r.remote.commands, cmd)
		output, ok := r.handle(cmd)
		result.Outputs = append(result.Outputs, output)
		result.LastOutput = output
		if !ok {
			result.Success = false
			result.Failed = cmd
			result.Err = errors.New("exit status 1")
			break
		}
	}
	return result
}

func (r *fakeRunner) handle(cmd runner.Command) (string, bool) {
	f := r.remote
	switch cmd[0] {
	case "clone":
		url, dir := cmd[len(cmd)-2], cmd[len(cmd)-1]
		f.clonedURL = url
		f.workspace = dir
		if f.skipGitDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err.Error(), false
			}
		} else if _, err := gogit.PlainInit(dir, false); err != nil {
			return err.Error(), false
		}
		for name, content := range f.cloneFiles {
			path := filepath.Join(dir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return err.Error(), false
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return err.Error(), false
			}
		}
		return "", true
	case "branch":
		if len(cmd) > 1 && cmd[1] == "--remotes" {
			want := cmd[len(cmd)-1]
			for _, b := range f.branches {
				if "origin/"+b == want {
					return "  " + want, true
				}
			}
			return "", true
		}
		return "* " + f.current, true
	case "checkout":
		f.current = cmd[1]
		return "", true
	case "commit":
		return f.commit()
	case "diff-tree":
		return f.diffTree()
	case "push":
		if !f.pushOK {
			return "! [rejected] main -> main (fetch first)", false
		}
		f.pushes++
		return "", true
	default:
		return "", true
	}
}

// recordingReporter keeps every status line and warning.
type recordingReporter struct {
	statuses  []string
	summaries []string
	warnings  []string
}

func (r *recordingReporter) Transition(from, to progress.State) {}
func (r *recordingReporter) Summary(line string)                { r.summaries = append(r.summaries, line) }
func (r *recordingReporter) Status(msg string)                  { r.statuses = append(r.statuses, msg) }
func (r *recordingReporter) Warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// newProject lays out a small project and returns a config for it.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "web/app/plugins/shop/shop.php"), "<?php // shop")
	writeFile(t, filepath.Join(root, "web/app/plugins/shop/README.md"), "# shop")
	writeFile(t, filepath.Join(root, "web/app/plugins/shop/node_modules/dep/index.js"), "module.exports = 1")
	writeFile(t, filepath.Join(root, "web/app/themes/site/style.css"), "body {}")
	writeFile(t, filepath.Join(root, "web/app/themes/site/style.scss"), "$x: 1;")
	writeFile(t, filepath.Join(root, "web/app/themes/site/assets/.gitkeep"), "")
	writeFile(t, filepath.Join(root, "config/application.php"), "<?php // config")

	writeFile(t, filepath.Join(root, "composer.lock"), `{
  "packages": [
    {"name": "monolog/monolog", "type": "library"},
    {"name": "wpackagist-plugin/akismet", "type": "wordpress-plugin"}
  ],
  "packages-dev": [
    {"name": "phpunit/phpunit", "type": "library"}
  ]
}`)
	writeFile(t, filepath.Join(root, "vendor/monolog/monolog/src/Logger.php"), "<?php // logger")
	writeFile(t, filepath.Join(root, "vendor/wpackagist-plugin/akismet/akismet.php"), "<?php // akismet")
	writeFile(t, filepath.Join(root, "vendor/phpunit/phpunit/phpunit"), "#!/usr/bin/env php")
	writeFile(t, filepath.Join(root, "vendor/autoload.php"), "<?php // autoload")
	writeFile(t, filepath.Join(root, "vendor/composer/autoload_real.php"), "<?php // real")

	cfg := config.DefaultConfig()
	cfg.ProjectRoot = root
	cfg.RemoteURL = "https://github.com/acme/site"
	cfg.DeployPath = filepath.Join(t.TempDir(), "deploy")
	return cfg
}

// newTestSyncer wires a Syncer to remote.
func newTestSyncer(t *testing.T, cfg *config.Config, remote *fakeRemote, rep progress.Reporter) *Syncer {
	t.Helper()
	s, err := NewSyncer(cfg,
		WithLogger(quietLogger()),
		WithReporter(rep),
		WithRunnerFactory(func() Runner { return &fakeRunner{remote: remote, timeout: runner.DefaultTimeout} }),
	)
	require.NoError(t, err)
	return s
}

func workspaceEntries(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), WorkspacePrefix) {
			names = append(names, e.Name())
		}
	}
	return names
}
