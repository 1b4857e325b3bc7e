package deploy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NicabarNimble/go-deploymirror/internal/config"
	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/git"
	"github.com/NicabarNimble/go-deploymirror/internal/progress"
	"github.com/NicabarNimble/go-deploymirror/internal/runner"
	"github.com/NicabarNimble/go-deploymirror/internal/token"
)

func TestSyncFillsWorkspace(t *testing.T) {
	cfg := newProject(t)
	cfg.KeepWorkspace = true
	remote := newFakeRemote()
	remote.cloneFiles = map[string]string{
		"stale.php":           "<?php // removed upstream",
		"web/app/old/old.php": "<?php // old",
		".gitignore":          "custom",
	}
	s := newTestSyncer(t, cfg, remote, nil)

	out, err := s.Sync(context.Background(), false, "", "")
	require.NoError(t, err)
	require.NotEmpty(t, out.Workspace)
	ws := out.Workspace

	assert.FileExists(t, filepath.Join(ws, "web/app/plugins/shop/shop.php"))
	assert.FileExists(t, filepath.Join(ws, "web/app/themes/site/style.css"))
	assert.FileExists(t, filepath.Join(ws, "web/app/themes/site/assets/.gitkeep"))
	assert.FileExists(t, filepath.Join(ws, "config/application.php"))
	assert.NoFileExists(t, filepath.Join(ws, "web/app/plugins/shop/README.md"))
	assert.NoFileExists(t, filepath.Join(ws, "web/app/themes/site/style.scss"))
	assert.NoDirExists(t, filepath.Join(ws, "web/app/plugins/shop/node_modules"))

	// Wiped before filling.
	assert.NoFileExists(t, filepath.Join(ws, "stale.php"))
	assert.NoDirExists(t, filepath.Join(ws, "web/app/old"))
	assert.DirExists(t, filepath.Join(ws, ".git"))

	// Baseline .gitignore replaces the wiped one.
	data, err := os.ReadFile(filepath.Join(ws, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, BaselineGitignore, string(data))

	// Production packages only, platform kinds excluded, autoload included.
	assert.FileExists(t, filepath.Join(ws, "vendor/monolog/monolog/src/Logger.php"))
	assert.NoDirExists(t, filepath.Join(ws, "vendor/wpackagist-plugin"))
	assert.NoDirExists(t, filepath.Join(ws, "vendor/phpunit"))
	assert.FileExists(t, filepath.Join(ws, "vendor/autoload.php"))
	assert.FileExists(t, filepath.Join(ws, "vendor/composer/autoload_real.php"))
}

func TestSyncCustomVendorDir(t *testing.T) {
	project := newProject(t)
	root := project.ProjectRoot
	require.NoError(t, os.Rename(filepath.Join(root, "vendor"), filepath.Join(root, "lib")))

	path := filepath.Join(root, ".gitmirror.yaml")
	writeFile(t, path, "remote_url: "+project.RemoteURL+"\n"+
		"project_root: "+root+"\n"+
		"deploy_path: "+project.DeployPath+"\n"+
		"keep_workspace: true\n"+
		"vendor:\n  dir: lib\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "lib", cfg.Vendor.AutoloadDir)

	s := newTestSyncer(t, cfg, newFakeRemote(), nil)
	out, err := s.Sync(context.Background(), false, "", "")
	require.NoError(t, err)

	ws := out.Workspace
	assert.FileExists(t, filepath.Join(ws, "vendor/monolog/monolog/src/Logger.php"))
	assert.FileExists(t, filepath.Join(ws, "vendor/autoload.php"))
	assert.FileExists(t, filepath.Join(ws, "vendor/composer/autoload_real.php"))
}

func TestSyncMissingAutoload(t *testing.T) {
	cfg := newProject(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.ProjectRoot, "vendor/autoload.php")))
	remote := newFakeRemote()
	s := newTestSyncer(t, cfg, remote, nil)

	out, err := s.Push(context.Background(), "", "")
	require.ErrorIs(t, err, errors.ErrCopy)
	assert.Contains(t, err.Error(), "autoload.php")
	assert.Equal(t, progress.StateFailed, out.State)
	assert.Equal(t, 0, remote.count("commit"))
	assert.Equal(t, 0, remote.pushes)
}

func TestSyncMissingComposerDirWarns(t *testing.T) {
	cfg := newProject(t)
	cfg.KeepWorkspace = true
	require.NoError(t, os.RemoveAll(filepath.Join(cfg.ProjectRoot, "vendor/composer")))
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, newFakeRemote(), rep)

	out, err := s.Sync(context.Background(), false, "", "")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out.Workspace, "vendor/autoload.php"))
	require.Len(t, rep.warnings, 1)
	assert.Contains(t, rep.warnings[0], "composer")
}

func TestSyncCommitsAndPushes(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, remote, rep)

	out, err := s.Push(context.Background(), "", "")
	require.NoError(t, err)

	assert.True(t, out.Pushed)
	assert.False(t, out.NothingToDo)
	assert.Equal(t, git.CommitResult{Added: 1, Modified: 1, Total: 2}, out.Result)
	assert.Equal(t, progress.StatePushed, out.State)
	assert.Equal(t, 1, remote.pushes)
	assert.Equal(t, "git@github.com:acme/site.git", remote.clonedURL, "ssh transport clones the push url")
	assert.Equal(t, []string{"2 files: 1 added, 1 modified, 0 deleted"}, rep.summaries)
	assert.Equal(t, []string{StatusDone}, rep.statuses)

	// Disposable workspace is gone after the push.
	assert.Empty(t, out.Workspace)
	assert.NoDirExists(t, remote.workspace)
	assert.Empty(t, workspaceEntries(t, cfg.Workspace()))
}

func TestSyncCommandSequence(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	s := newTestSyncer(t, cfg, remote, nil)

	_, err := s.Push(context.Background(), "", "")
	require.NoError(t, err)

	var got []string
	for _, cmd := range remote.commands {
		got = append(got, cmd[0])
	}
	assert.Equal(t, []string{
		"clone", "config", "config",
		"branch", "branch",
		"branch", "add", "commit",
		"diff-tree", "push",
	}, got)
	assert.Contains(t, remote.commands, runner.Git("config", "user.name", cfg.Commit.AuthorName))
	assert.Contains(t, remote.commands, runner.Git("push", "origin", "main"))
}

func TestSyncNothingToDo(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	remote.commit = func() (string, bool) {
		return "On branch main\nnothing to commit, working tree clean", false
	}
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, remote, rep)

	for i := 0; i < 2; i++ {
		out, err := s.Push(context.Background(), "", "")
		require.NoError(t, err)
		assert.True(t, out.NothingToDo)
		assert.False(t, out.Pushed)
		assert.Equal(t, git.CommitResult{}, out.Result)
		assert.Equal(t, progress.StateDone, out.State)
	}

	assert.Equal(t, 0, remote.pushes)
	assert.Equal(t, 0, remote.count("diff-tree"))
	assert.Equal(t, []string{StatusNothingToDo, StatusNothingToDo}, rep.statuses)
	assert.Len(t, workspaceEntries(t, cfg.Workspace()), 1, "the earlier workspace is cleaned up as an orphan")
}

func TestSyncWithoutPush(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, remote, rep)

	out, err := s.Sync(context.Background(), false, "", "")
	require.NoError(t, err)

	assert.False(t, out.Pushed)
	assert.Equal(t, 2, out.Result.Total)
	assert.Equal(t, progress.StateDone, out.State)
	assert.Equal(t, 0, remote.count("push"))
	assert.DirExists(t, out.Workspace, "workspace is kept when nothing was pushed")
}

func TestSyncNothingToPush(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	remote.diffTree = func() (string, bool) { return "", true }
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, remote, rep)

	out, err := s.Push(context.Background(), "", "")
	require.NoError(t, err)

	assert.False(t, out.Pushed)
	assert.Equal(t, 0, remote.count("push"))
	assert.Equal(t, []string{StatusNothingToPush}, rep.statuses)
}

func TestSyncDiffStatFailureIsWarning(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	remote.diffTree = func() (string, bool) { return "fatal: bad revision 'HEAD'", false }
	rep := &recordingReporter{}
	s := newTestSyncer(t, cfg, remote, rep)

	out, err := s.Push(context.Background(), "", "")
	require.NoError(t, err)

	assert.True(t, out.Pushed, "an uncounted commit is still pushed")
	assert.Equal(t, git.CommitResult{}, out.Result)
	require.Len(t, rep.warnings, 1)
	assert.Contains(t, rep.warnings[0], "bad revision")
}

func TestSyncFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*fakeRemote)
		wantErr   error
		wantState progress.State
	}{
		{
			name:    "missing remote branch",
			setup:   func(f *fakeRemote) { f.branches = []string{"develop"} },
			wantErr: errors.ErrConfiguration,
		},
		{
			name:    "clone without repository",
			setup:   func(f *fakeRemote) { f.skipGitDir = true },
			wantErr: errors.ErrCorruptWorkspace,
		},
		{
			name: "commit failure",
			setup: func(f *fakeRemote) {
				f.commit = func() (string, bool) { return "fatal: unable to write new index file", false }
			},
			wantErr: errors.ErrProcess,
		},
		{
			name:    "push rejected",
			setup:   func(f *fakeRemote) { f.pushOK = false },
			wantErr: errors.ErrPush,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t)
			remote := newFakeRemote()
			tt.setup(remote)
			s := newTestSyncer(t, cfg, remote, nil)

			out, err := s.Push(context.Background(), "", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, progress.StateFailed, out.State)
			assert.False(t, out.Pushed)
			assert.Equal(t, 0, remote.pushes)
		})
	}
}

func TestSyncMissingBranchStopsBeforeWipe(t *testing.T) {
	cfg := newProject(t)
	cfg.KeepWorkspace = true
	remote := newFakeRemote()
	remote.branches = nil
	remote.cloneFiles = map[string]string{"index.php": "<?php"}
	s := newTestSyncer(t, cfg, remote, nil)

	_, err := s.Sync(context.Background(), false, "", "production")
	require.ErrorIs(t, err, errors.ErrConfiguration)

	assert.FileExists(t, filepath.Join(remote.workspace, "index.php"))
	assert.Equal(t, 0, remote.count("checkout"))
	assert.Equal(t, 0, remote.count("commit"))
}

func TestSyncRejectsInvalidRemote(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		branch string
	}{
		{name: "http", url: "http://github.com/acme/site", branch: "main"},
		{name: "other host", url: "https://gitlab.com/acme/site", branch: "main"},
		{name: "owner only", url: "https://github.com/acme", branch: "main"},
		{name: "double dot branch", url: "https://github.com/acme/site", branch: "bad..name"},
		{name: "at sign branch", url: "https://github.com/acme/site", branch: "@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t)
			remote := newFakeRemote()
			s := newTestSyncer(t, cfg, remote, nil)

			out, err := s.Sync(context.Background(), true, tt.url, tt.branch)
			assert.ErrorIs(t, err, errors.ErrConfiguration)
			assert.Equal(t, progress.StateFailed, out.State)
			assert.Empty(t, remote.commands, "no git command runs after a validation failure")
			assert.Empty(t, workspaceEntries(t, cfg.Workspace()))
		})
	}
}

func TestSyncRemovesOrphans(t *testing.T) {
	cfg := newProject(t)
	cfg.KeepWorkspace = true
	root := cfg.Workspace()
	writeFile(t, filepath.Join(root, WorkspacePrefix+"20240101-000000-deadbeef", "index.php"), "<?php")
	writeFile(t, filepath.Join(root, "notes.txt"), "not a workspace")

	remote := newFakeRemote()
	s := newTestSyncer(t, cfg, remote, nil)

	out, err := s.Sync(context.Background(), false, "", "")
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(root, WorkspacePrefix+"20240101-000000-deadbeef"))
	assert.FileExists(t, filepath.Join(root, "notes.txt"))
	assert.Equal(t, []string{filepath.Base(out.Workspace)}, workspaceEntries(t, root))
}

func TestSyncSwitchesBranch(t *testing.T) {
	cfg := newProject(t)
	remote := newFakeRemote()
	remote.branches = []string{"main", "production"}
	s := newTestSyncer(t, cfg, remote, nil)

	_, err := s.Sync(context.Background(), false, "", "production")
	require.NoError(t, err)

	assert.Equal(t, 1, remote.count("checkout"), "checkout happens once, the second check finds it current")
	assert.Equal(t, "production", remote.current)
}

type staticTokens struct {
	tok token.Token
	err error
}

func (s staticTokens) Retrieve(token.Provider) (token.Token, error) { return s.tok, s.err }

func TestTransportURL(t *testing.T) {
	target, err := NewRemoteTarget("https://github.com/acme/site", "main")
	require.NoError(t, err)

	tests := []struct {
		name      string
		transport string
		tokens    TokenSource
		want      string
		wantErr   bool
	}{
		{name: "ssh", transport: "ssh", tokens: staticTokens{err: token.ErrTokenNotFound}, want: "git@github.com:acme/site.git"},
		{name: "https anonymous", transport: "https", tokens: staticTokens{err: token.ErrTokenNotFound}, want: "https://github.com/acme/site.git"},
		{name: "https with token", transport: "https", tokens: staticTokens{tok: token.Token{Value: "ghp_abc"}}, want: "https://ghp_abc@github.com/acme/site.git"},
		{name: "https expired token", transport: "https", tokens: staticTokens{err: token.ErrTokenExpired}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newProject(t)
			cfg.Transport = tt.transport
			s, err := NewSyncer(cfg, WithLogger(quietLogger()), WithTokenSource(tt.tokens))
			require.NoError(t, err)

			got, err := s.transportURL(target)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSyncerValidatesConfig(t *testing.T) {
	cfg := newProject(t)
	cfg.Transport = "ftp"

	_, err := NewSyncer(cfg)
	assert.ErrorIs(t, err, errors.ErrConfiguration)
}

func TestCleanup(t *testing.T) {
	cfg := newProject(t)
	root := cfg.Workspace()
	writeFile(t, filepath.Join(root, WorkspacePrefix+"a", "x"), "x")
	writeFile(t, filepath.Join(root, WorkspacePrefix+"b", "y"), "y")

	s := newTestSyncer(t, cfg, newFakeRemote(), nil)
	removed, err := s.Cleanup()
	require.NoError(t, err)

	assert.Len(t, removed, 2)
	for _, path := range removed {
		assert.True(t, strings.HasPrefix(filepath.Base(path), WorkspacePrefix))
	}
	assert.Empty(t, workspaceEntries(t, root))
}
