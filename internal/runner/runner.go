// Package runner executes git commands sequentially in a fixed working
// directory, capturing their output and stopping at the first failure.
//
// A failing command is not an error of the runner itself: Run reports the
// failure in its Result and leaves it to the caller to decide, from the
// captured output, whether the failure matters.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/NicabarNimble/go-deploymirror/internal/errors"
)

// DefaultTimeout bounds a single command unless changed with SetTimeout.
const DefaultTimeout = 5 * time.Minute

// Command is the argument list of one git invocation, without the binary.
type Command []string

// Git builds a Command from its arguments.
func Git(args ...string) Command {
	return Command(args)
}

// String renders the command for logs.
func (c Command) String() string {
	return "git " + strings.Join(c, " ")
}

// Result is the outcome of a Run call.
type Result struct {
	Success    bool
	LastOutput string
	Outputs    []string // one entry per executed command, in order

	Failed Command // the command that stopped the sequence, nil on success
	Err    error   // exit or start error of Failed
}

// Combined joins every captured output, for substring inspection.
func (r Result) Combined() string {
	return strings.Join(r.Outputs, "\n")
}

// execFunc runs binary with args and returns the captured streams.
type execFunc func(ctx context.Context, dir, binary string, args, env []string) (stdout, stderr string, err error)

// Runner runs git commands. It is not safe for concurrent use.
type Runner struct {
	binary  string
	dir     string
	timeout time.Duration
	env     []string
	logger  *slog.Logger
	exec    execFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithBinary overrides the git executable.
func WithBinary(path string) Option {
	return func(r *Runner) { r.binary = path }
}

// WithTimeout sets the per-command timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithEnv appends KEY=VALUE pairs to the command environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) { r.env = append(r.env, env...) }
}

// New returns a Runner with no working directory set.
func New(logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		binary:  "git",
		timeout: DefaultTimeout,
		env:     []string{"GIT_TERMINAL_PROMPT=0"},
		logger:  logger,
		exec:    defaultExec,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetWorkingDirectory fixes the directory subsequent commands run in.
func (r *Runner) SetWorkingDirectory(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Newf(errors.OpWorkingDirectory, "%s: %w", path, err)
	}
	if !info.IsDir() {
		return errors.Newf(errors.OpWorkingDirectory, "%s is not a directory", path)
	}
	r.dir = path
	return nil
}

// WorkingDirectory returns the directory commands run in.
func (r *Runner) WorkingDirectory() string {
	return r.dir
}

// SetTimeout replaces the per-command timeout and returns the previous one.
func (r *Runner) SetTimeout(d time.Duration) time.Duration {
	prev := r.timeout
	r.timeout = d
	return prev
}

// Run executes cmds in order and stops at the first non-zero exit.
func (r *Runner) Run(ctx context.Context, cmds ...Command) Result {
	result := Result{Success: true, Outputs: make([]string, 0, len(cmds))}

	for _, cmd := range cmds {
		r.logger.Debug("running command", "cmd", cmd.String(), "dir", r.dir)

		stdout, stderr, err := r.runOne(ctx, cmd)
		output := joinOutput(stdout, stderr)
		if err != nil && output == "" {
			output = err.Error()
		}

		result.Outputs = append(result.Outputs, output)
		result.LastOutput = output

		if err != nil {
			if stderr != "" {
				r.logger.Error("command failed", "cmd", cmd.String(), "dir", r.dir, "stderr", stderr)
			}
			result.Success = false
			result.Failed = cmd
			result.Err = err
			break
		}
	}

	return result
}

func (r *Runner) runOne(ctx context.Context, cmd Command) (string, string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.exec(ctx, r.dir, r.binary, cmd, r.env)
}

func defaultExec(ctx context.Context, dir, binary string, args, env []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}

func joinOutput(stdout, stderr string) string {
	stdout = strings.TrimSpace(stdout)
	stderr = strings.TrimSpace(stderr)
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
