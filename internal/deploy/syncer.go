// Package deploy assembles the mirror workspace of a run and publishes it.
//
// A run clones the deployment repository into a fresh workspace, wipes
// everything but the repository metadata, refills it from the configured
// sources through the mirror copier, commits and optionally pushes:
//
//	INIT -> CLONED -> WIPED -> FILLED -> COMMITTED -> PUSHED | DONE
//
// Any failure moves the run to FAILED and aborts it. A commit with nothing
// to record is not a failure, so two runs over unchanged sources both end
// in "nothing to do" without pushing.
package deploy

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NicabarNimble/go-deploymirror/internal/config"
	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/git"
	"github.com/NicabarNimble/go-deploymirror/internal/mirror"
	"github.com/NicabarNimble/go-deploymirror/internal/progress"
	"github.com/NicabarNimble/go-deploymirror/internal/runner"
	"github.com/NicabarNimble/go-deploymirror/internal/token"
	"github.com/NicabarNimble/go-deploymirror/internal/urlutils"
)

// Status lines reported at the end of a run.
const (
	StatusNothingToDo   = "Nothing to do"
	StatusNothingToPush = "Nothing to push"
	StatusDone          = "Done"
)

// Runner is the process runner used for git commands and linked
// repository exports.
type Runner interface {
	SetWorkingDirectory(path string) error
	WorkingDirectory() string
	SetTimeout(d time.Duration) time.Duration
	Run(ctx context.Context, cmds ...runner.Command) runner.Result
}

// TokenSource looks up access tokens for the HTTPS transport.
type TokenSource interface {
	Retrieve(provider token.Provider) (token.Token, error)
}

// Outcome describes how a run ended.
type Outcome struct {
	Result      git.CommitResult
	NothingToDo bool
	Pushed      bool
	Workspace   string // empty once removed
	State       progress.State
}

// Syncer runs mirror synchronisations. It is not safe for concurrent use.
type Syncer struct {
	cfg      *config.Config
	logger   *slog.Logger
	reporter progress.Reporter
	policy   *mirror.Policy
	tokens   TokenSource

	newRunner func() Runner
	cloneURL  func(RemoteTarget) (string, error)
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// WithReporter sets where status lines go.
func WithReporter(r progress.Reporter) Option {
	return func(s *Syncer) { s.reporter = r }
}

// WithPolicy replaces the default exclusion policy.
func WithPolicy(p *mirror.Policy) Option {
	return func(s *Syncer) { s.policy = p }
}

// WithTokenSource replaces the environment token lookup.
func WithTokenSource(ts TokenSource) Option {
	return func(s *Syncer) { s.tokens = ts }
}

// WithRunnerFactory replaces how process runners are created.
func WithRunnerFactory(f func() Runner) Option {
	return func(s *Syncer) { s.newRunner = f }
}

// NewSyncer validates cfg and returns a Syncer for it.
func NewSyncer(cfg *config.Config, opts ...Option) (*Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}

	s := &Syncer{
		cfg:      cfg,
		logger:   slog.Default(),
		reporter: progress.Discard,
		policy:   mirror.DefaultPolicy(),
		tokens:   token.NewEnvStorage(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.reporter == nil {
		s.reporter = progress.Discard
	}
	if s.policy == nil {
		s.policy = mirror.DefaultPolicy()
	}
	if s.newRunner == nil {
		logger := s.logger
		s.newRunner = func() Runner {
			return runner.New(logger, runner.WithTimeout(timeout))
		}
	}
	if s.cloneURL == nil {
		s.cloneURL = s.transportURL
	}
	return s, nil
}

// Cleanup removes orphan workspaces without starting a run.
func (s *Syncer) Cleanup() ([]string, error) {
	removed, err := NewSession(s.cfg.Workspace()).CleanupOrphans()
	if err != nil {
		return removed, errors.New(errors.OpCopy, err)
	}
	return removed, nil
}

// Push is Sync with the push requested.
func (s *Syncer) Push(ctx context.Context, rawURL, branch string) (*Outcome, error) {
	return s.Sync(ctx, true, rawURL, branch)
}

// Sync runs one synchronisation. Empty rawURL and branch fall back to the
// configuration.
func (s *Syncer) Sync(ctx context.Context, push bool, rawURL, branch string) (*Outcome, error) {
	if rawURL == "" {
		rawURL = s.cfg.RemoteURL
	}
	if branch == "" {
		branch = s.cfg.Branch
	}

	tracker := progress.NewTracker(s.reporter)
	tracker.Start("sync")
	out := &Outcome{State: progress.StateInit}

	fail := func(err error) (*Outcome, error) {
		tracker.Fail(err)
		out.State = tracker.State()
		s.logger.Error("sync failed", "workspace", out.Workspace, "error", err)
		return out, err
	}
	advance := func(to progress.State) {
		if err := tracker.Advance(to); err != nil {
			s.logger.Warn("unexpected state change", "error", err)
		}
		out.State = tracker.State()
	}

	session := NewSession(s.cfg.Workspace())
	removed, err := session.CleanupOrphans()
	if err != nil {
		return fail(errors.New(errors.OpCopy, err))
	}
	for _, path := range removed {
		s.logger.Info("removed orphan workspace", "path", path)
	}
	workspace, err := session.WorkspacePath()
	if err != nil {
		return fail(errors.New(errors.OpWorkingDirectory, err))
	}

	target, err := NewRemoteTarget(rawURL, branch)
	if err != nil {
		return fail(err)
	}

	// Clone.
	client := git.NewClient(s.newRunner(), s.logger)
	cloneURL, err := s.cloneURL(target)
	if err != nil {
		return fail(err)
	}
	if err := client.Clone(ctx, cloneURL, workspace); err != nil {
		return fail(err)
	}
	out.Workspace = workspace
	if err := client.Configure(ctx, "user.name", s.cfg.Commit.AuthorName); err != nil {
		return fail(err)
	}
	if err := client.Configure(ctx, "user.email", s.cfg.Commit.AuthorEmail); err != nil {
		return fail(err)
	}
	advance(progress.StateCloned)

	found, err := client.RemoteBranchExists(ctx, git.DefaultRemote, target.Branch)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(errors.Newf(errors.OpConfiguration, "branch %q does not exist on the remote", target.Branch))
	}
	if err := client.EnsureBranch(ctx, target.Branch); err != nil {
		return fail(err)
	}

	// Wipe.
	if err := wipe(workspace); err != nil {
		return fail(err)
	}
	advance(progress.StateWiped)

	// Fill.
	stats, err := s.fill(ctx, workspace)
	if err != nil {
		return fail(err)
	}
	s.logger.Info("workspace filled", "files", stats.Files, "skipped", stats.Skipped, "linked", stats.Linked)
	advance(progress.StateFilled)

	// Commit.
	if err := client.EnsureBranch(ctx, target.Branch); err != nil {
		return fail(err)
	}
	committed, err := client.CommitAll(ctx, git.CommitMessage)
	if err != nil {
		return fail(err)
	}
	advance(progress.StateCommitted)

	if !committed {
		out.NothingToDo = true
		s.reporter.Status(StatusNothingToDo)
		advance(progress.StateDone)
		return out, nil
	}

	// Diff-stat. A failure here leaves the count unknown but the run goes on.
	counted := true
	result, err := client.DiffStat(ctx)
	if err != nil {
		counted = false
		s.logger.Warn("diff-stat failed", "error", err)
		s.reporter.Warn("could not count changed files: %v", err)
	} else {
		out.Result = result
		s.reporter.Summary(result.String())
	}

	if !push {
		s.reporter.Status(StatusDone)
		advance(progress.StateDone)
		return out, nil
	}
	if counted && result.Total == 0 {
		s.reporter.Status(StatusNothingToPush)
		advance(progress.StateDone)
		return out, nil
	}

	// Push.
	if err := client.Push(ctx, git.DefaultRemote, target.Branch); err != nil {
		return fail(err)
	}
	out.Pushed = true
	advance(progress.StatePushed)
	s.reporter.Status(StatusDone)

	if !s.cfg.KeepWorkspace {
		if err := session.Remove(); err != nil {
			s.logger.Warn("could not remove workspace", "path", workspace, "error", err)
		} else {
			out.Workspace = ""
		}
	}
	return out, nil
}

// transportURL picks the clone URL for the configured transport. HTTPS
// clones carry a GitHub token when one is set in the environment.
func (s *Syncer) transportURL(target RemoteTarget) (string, error) {
	if s.cfg.Transport != config.TransportHTTPS {
		return target.PushURL, nil
	}

	tok, err := s.tokens.Retrieve(token.ProviderGitHub)
	if err != nil {
		if stderrors.Is(err, token.ErrTokenNotFound) {
			s.logger.Debug("no token set, cloning anonymously")
			return target.URL, nil
		}
		return "", errors.New(errors.OpConfiguration, fmt.Errorf("github token: %w", err))
	}

	u, err := urlutils.ParseHTTPSURL(target.URL)
	if err != nil {
		return "", errors.New(errors.OpConfiguration, err)
	}
	tokenURL, err := urlutils.FormatTokenURL(u, tok.Value)
	if err != nil {
		return "", errors.New(errors.OpConfiguration, err)
	}
	return tokenURL.String(), nil
}
