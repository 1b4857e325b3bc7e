package git

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/runner"
	"github.com/NicabarNimble/go-deploymirror/internal/urlutils"
)

// CommitMessage is the message of every mirror commit.
const CommitMessage = "Automated deployment sync commit"

// DefaultRemote is the remote a fresh clone names its origin.
const DefaultRemote = "origin"

// noOpMarkers identify a commit attempt that failed only because the tree
// had nothing new.
var noOpMarkers = []string{
	"nothing to commit",
	"nothing added to commit",
	"working tree clean",
	"working directory clean",
	"up to date",
	"up-to-date",
}

// CommandRunner executes git commands in a working directory.
type CommandRunner interface {
	SetWorkingDirectory(path string) error
	WorkingDirectory() string
	SetTimeout(d time.Duration) time.Duration
	Run(ctx context.Context, cmds ...runner.Command) runner.Result
}

// Client provides the git operations of a mirror run.
type Client struct {
	runner CommandRunner
	logger *slog.Logger
}

// NewClient creates a new git client.
func NewClient(r CommandRunner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		runner: r,
		logger: logger,
	}
}

// Clone clones url into dir and moves the runner into it. The command
// timeout is lifted for the clone and restored right after.
func (c *Client) Clone(ctx context.Context, url, dir string) error {
	if err := c.runner.SetWorkingDirectory(filepath.Dir(dir)); err != nil {
		return err
	}

	c.logger.Info("cloning repository", "url", urlutils.Redact(url), "dir", dir)

	prev := c.runner.SetTimeout(0)
	result := c.runner.Run(ctx, runner.Git("clone", "--quiet", url, dir))
	c.runner.SetTimeout(prev)

	if !result.Success {
		return errors.Newf(errors.OpProcess, "clone %s: %s", urlutils.Redact(url), result.LastOutput)
	}
	return c.runner.SetWorkingDirectory(dir)
}

// Configure sets a repository-local config value.
func (c *Client) Configure(ctx context.Context, key, value string) error {
	result := c.runner.Run(ctx, runner.Git("config", key, value))
	if !result.Success {
		return errors.Newf(errors.OpProcess, "config %s: %s", key, result.LastOutput)
	}
	return nil
}

// RemoteBranchExists reports whether remote/branch is among the
// remote-tracking branches of the clone.
func (c *Client) RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error) {
	want := remote + "/" + branch
	result := c.runner.Run(ctx, runner.Git("branch", "--remotes", "--list", want))
	if !result.Success {
		return false, errors.Newf(errors.OpProcess, "list remote branches: %s", result.LastOutput)
	}

	for _, line := range strings.Split(result.LastOutput, "\n") {
		if strings.TrimSpace(line) == want {
			return true, nil
		}
	}
	return false, nil
}

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	result := c.runner.Run(ctx, runner.Git("branch"))
	if !result.Success {
		return "", errors.Newf(errors.OpProcess, "list branches: %s", result.LastOutput)
	}
	return ParseCurrentBranch(result.LastOutput), nil
}

// ParseCurrentBranch extracts the active branch from `git branch` output.
func ParseCurrentBranch(output string) string {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if !strings.HasPrefix(line, "* ") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(line, "* "))
		if strings.HasPrefix(name, "(") {
			return ""
		}
		return name
	}
	return ""
}

// Checkout switches to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	result := c.runner.Run(ctx, runner.Git("checkout", branch))
	if !result.Success {
		return errors.Newf(errors.OpProcess, "checkout %s: %s", branch, result.LastOutput)
	}
	return nil
}

// EnsureBranch checks out branch unless it is already current.
func (c *Client) EnsureBranch(ctx context.Context, branch string) error {
	current, err := c.CurrentBranch(ctx)
	if err != nil {
		return err
	}
	if current == branch {
		return nil
	}
	c.logger.Debug("switching branch", "from", current, "to", branch)
	return c.Checkout(ctx, branch)
}

// CommitAll stages every change and commits it with message. It returns
// false without error when there was nothing to commit.
func (c *Client) CommitAll(ctx context.Context, message string) (bool, error) {
	result := c.runner.Run(ctx,
		runner.Git("add", "--all", "."),
		runner.Git("commit", "-m", message),
	)
	if result.Success {
		return true, nil
	}
	if IsNoOp(result.Combined()) {
		c.logger.Debug("nothing to commit")
		return false, nil
	}
	return false, errors.Newf(errors.OpProcess, "%s: %s", result.Failed, result.LastOutput)
}

// IsNoOp reports whether output says there was nothing to commit.
func IsNoOp(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range noOpMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// DiffStat counts the files changed by the HEAD commit.
func (c *Client) DiffStat(ctx context.Context) (CommitResult, error) {
	result := c.runner.Run(ctx, runner.Git("diff-tree", "--no-commit-id", "--name-status", "-r", "--root", "HEAD"))
	if !result.Success {
		return CommitResult{}, errors.Newf(errors.OpProcess, "diff-stat: %s", result.LastOutput)
	}
	return ParseNameStatus(result.LastOutput), nil
}

// Push pushes branch to remote.
func (c *Client) Push(ctx context.Context, remote, branch string) error {
	c.logger.Info("pushing", "remote", remote, "branch", branch)

	result := c.runner.Run(ctx, runner.Git("push", remote, branch))
	if !result.Success {
		return errors.Newf(errors.OpPush, "push %s %s: %s", remote, branch, result.LastOutput)
	}
	return nil
}

// CommitResult counts the files changed by one commit.
type CommitResult struct {
	Added    int
	Modified int
	Deleted  int
	Total    int
}

// String renders the summary line.
func (r CommitResult) String() string {
	return fmt.Sprintf("%d files: %d added, %d modified, %d deleted", r.Total, r.Added, r.Modified, r.Deleted)
}

// ParseNameStatus counts `--name-status` lines by their status letter.
// Copies count as added; renames and type changes as modified.
func ParseNameStatus(output string) CommitResult {
	var result CommitResult
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch line[0] {
		case 'A', 'C':
			result.Added++
		case 'M', 'R', 'T':
			result.Modified++
		case 'D':
			result.Deleted++
		default:
			continue
		}
		result.Total++
	}
	return result
}
