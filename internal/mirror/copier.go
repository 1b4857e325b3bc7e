// Package mirror copies development trees into the mirror workspace,
// keeping only what a deployment needs.
//
// Plain files and directories are copied one by one through a Policy.
// A directory that is a symlink to a git repository (an editable dependency
// linked into the tree) is never walked: its tracked content is exported
// with git archive and extracted in place, then filtered by the same Policy.
package mirror

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/runner"
)

// CommandRunner runs git commands for linked repository exports.
type CommandRunner interface {
	SetWorkingDirectory(path string) error
	Run(ctx context.Context, cmds ...runner.Command) runner.Result
}

// Stats counts what a Copy call did.
type Stats struct {
	Files   int
	Skipped int
	Linked  int
}

// linkedRepo is a symlinked directory deferred to the archive export.
type linkedRepo struct {
	source string // symlink path in the source tree
	real   string // resolved repository path
	target string // destination directory
	rel    string // policy path of the destination
}

// Copier copies trees through a Policy. It is not safe for concurrent use.
type Copier struct {
	policy *Policy
	runner CommandRunner
	logger *slog.Logger

	visited map[string]struct{} // real paths of the directories being walked, root to current
	linked  map[string]struct{} // real paths of linked repositories, never walked
	stats   Stats
}

// NewCopier returns a Copier. The runner is used only for linked repositories
// and has its working directory changed by them.
func NewCopier(policy *Policy, r CommandRunner, logger *slog.Logger) *Copier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Copier{
		policy: policy,
		runner: r,
		logger: logger,
		linked: make(map[string]struct{}),
	}
}

// Policy returns the policy the copier filters with.
func (c *Copier) Policy() *Policy {
	return c.policy
}

// Copy copies source, a file or a directory, to target. Every file copy and
// every linked repository export must succeed for Copy to succeed; failures
// do not stop the remaining entries and are returned joined.
func (c *Copier) Copy(ctx context.Context, source, target string) (Stats, error) {
	c.stats = Stats{}
	c.visited = make(map[string]struct{})

	info, err := os.Stat(source)
	if err != nil {
		return c.stats, errors.Newf(errors.OpCopy, "source %s: %w", source, err)
	}

	rel := "/" + filepath.Base(source)

	if !info.IsDir() {
		if !c.policy.Accept(rel) {
			c.stats.Skipped++
			return c.stats, nil
		}
		if err := c.copyFile(source, target, info.Mode()); err != nil {
			return c.stats, errors.New(errors.OpCopy, err)
		}
		return c.stats, nil
	}

	var linked []linkedRepo
	var errs []error

	if repo, ok := c.linkedRepository(source, target, rel); ok {
		linked = append(linked, repo)
	} else {
		linked, errs = c.walk(source, target, rel, linked, errs)
	}

	for _, repo := range linked {
		if err := c.export(ctx, repo); err != nil {
			errs = append(errs, err)
			continue
		}
		c.stats.Linked++
	}

	c.logger.Debug("copied tree",
		"source", source,
		"target", target,
		"files", c.stats.Files,
		"skipped", c.stats.Skipped,
		"linked", c.stats.Linked,
	)

	if len(errs) > 0 {
		return c.stats, errors.New(errors.OpCopy, stderrors.Join(errs...))
	}
	return c.stats, nil
}

// walk recreates dir under target depth-first and collects linked
// repositories instead of descending into them.
func (c *Copier) walk(dir, target, rel string, linked []linkedRepo, errs []error) ([]linkedRepo, []error) {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return linked, append(errs, fmt.Errorf("resolve %s: %w", dir, err))
	}
	if _, seen := c.visited[real]; seen {
		c.logger.Debug("skipping directory cycle", "path", dir, "real", real)
		return linked, errs
	}
	if c.insideLinked(real) {
		c.logger.Debug("skipping linked repository subtree", "path", dir)
		return linked, errs
	}
	c.visited[real] = struct{}{}
	defer delete(c.visited, real)

	if err := os.MkdirAll(target, 0755); err != nil {
		return linked, append(errs, fmt.Errorf("create %s: %w", target, err))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return linked, append(errs, fmt.Errorf("read %s: %w", dir, err))
	}

	for _, entry := range entries {
		srcPath := filepath.Join(dir, entry.Name())
		dstPath := filepath.Join(target, entry.Name())
		relPath := rel + "/" + entry.Name()

		info, err := os.Stat(srcPath)
		if err != nil {
			// Dangling symlinks have nothing to copy.
			c.logger.Warn("skipping unreadable entry", "path", srcPath, "error", err)
			c.stats.Skipped++
			continue
		}

		if !info.IsDir() {
			if !c.policy.Accept(relPath) {
				c.stats.Skipped++
				continue
			}
			if err := c.copyFile(srcPath, dstPath, info.Mode()); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if !c.policy.Accept(relPath + "/") {
			c.stats.Skipped++
			continue
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			if repo, ok := c.linkedRepository(srcPath, dstPath, relPath); ok {
				linked = append(linked, repo)
				continue
			}
		}
		linked, errs = c.walk(srcPath, dstPath, relPath, linked, errs)
	}

	return linked, errs
}

// linkedRepository reports whether path is a symlinked directory holding a
// git repository and registers its real path so it is never walked.
func (c *Copier) linkedRepository(path, target, rel string) (linkedRepo, bool) {
	lstat, err := os.Lstat(path)
	if err != nil || lstat.Mode()&fs.ModeSymlink == 0 {
		return linkedRepo{}, false
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		return linkedRepo{}, false
	}
	if _, err := os.Stat(filepath.Join(real, ".git")); err != nil {
		return linkedRepo{}, false
	}

	c.linked[real] = struct{}{}
	return linkedRepo{source: path, real: real, target: target, rel: rel}, true
}

func (c *Copier) insideLinked(real string) bool {
	for root := range c.linked {
		if real == root || strings.HasPrefix(real, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// export archives the linked repository next to its target, extracts it and
// filters the extracted tree.
func (c *Copier) export(ctx context.Context, repo linkedRepo) error {
	if c.runner == nil {
		return fmt.Errorf("no command runner for linked repository %s", repo.source)
	}

	parent := filepath.Dir(repo.target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create %s: %w", parent, err)
	}

	tmp, err := os.CreateTemp(parent, "."+filepath.Base(repo.target)+"-*.zip")
	if err != nil {
		return fmt.Errorf("create archive for %s: %w", repo.source, err)
	}
	archive := tmp.Name()
	tmp.Close()
	defer os.Remove(archive)

	if err := c.runner.SetWorkingDirectory(repo.real); err != nil {
		return err
	}

	ref := archiveRef(repo.real)
	c.logger.Info("exporting linked repository", "path", repo.source, "real", repo.real, "ref", ref)

	result := c.runner.Run(ctx, runner.Git("archive", "--format=zip", "--output="+archive, ref))
	if !result.Success {
		return fmt.Errorf("git archive of %s failed: %s", repo.real, result.LastOutput)
	}

	if err := extractZip(archive, repo.target); err != nil {
		return fmt.Errorf("extract %s: %w", repo.source, err)
	}

	removed, err := c.prune(repo.target, repo.rel)
	if err != nil {
		return fmt.Errorf("filter %s: %w", repo.target, err)
	}
	c.logger.Debug("filtered linked repository export", "target", repo.target, "removed", removed)
	return nil
}

// prune deletes every entry under root the policy rejects.
func (c *Copier) prune(root, rel string) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		sub, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := rel + "/" + filepath.ToSlash(sub)
		if d.IsDir() {
			name += "/"
		}
		if c.policy.Accept(name) {
			return nil
		}
		if err := os.RemoveAll(path); err != nil {
			return err
		}
		removed++
		if d.IsDir() {
			return fs.SkipDir
		}
		return nil
	})
	return removed, err
}

func (c *Copier) copyFile(src, dst string, mode fs.FileMode) error {
	if err := copyFile(src, dst, mode); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	c.stats.Files++
	return nil
}

func copyFile(src, dst string, mode fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0200)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
