package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"

	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/mirror"
	"github.com/NicabarNimble/go-deploymirror/internal/packages"
)

// BaselineGitignore is written to a workspace that has no .gitignore.
const BaselineGitignore = `# Platform managed
/web/wp/
/web/app/uploads/
/web/app/upgrade/
/web/app/cache/
/web/app/plugins/hello.php
/web/app/plugins/akismet/
/web/app/themes/twenty*/

# Drop-ins
/web/app/advanced-cache.php
/web/app/object-cache.php
/web/app/db.php

# OS
.DS_Store
Thumbs.db
desktop.ini
`

const autoloadFile = "autoload.php"

// autoloadEntries are copied from the production autoload directory.
var autoloadEntries = []string{autoloadFile, "composer"}

// wipe removes every top-level entry of workspace except .git and checks
// that what is left is still a repository.
func wipe(workspace string) error {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return errors.Newf(errors.OpCorruptWorkspace, "read workspace: %w", err)
	}

	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(workspace, entry.Name())); err != nil {
			return errors.Newf(errors.OpCopy, "wipe %s: %w", entry.Name(), err)
		}
	}

	info, err := os.Stat(filepath.Join(workspace, ".git"))
	if err != nil || !info.IsDir() {
		return errors.Newf(errors.OpCorruptWorkspace, "%s has no .git directory", workspace)
	}
	if _, err := gogit.PlainOpen(workspace); err != nil {
		return errors.Newf(errors.OpCorruptWorkspace, "open %s: %w", workspace, err)
	}
	return nil
}

// fill copies every configured source, the baseline .gitignore and the
// production vendor packages into workspace.
func (s *Syncer) fill(ctx context.Context, workspace string) (mirror.Stats, error) {
	copier := mirror.NewCopier(s.policy, s.newRunner(), s.logger)
	var total mirror.Stats

	copyTree := func(source, target string) error {
		stats, err := copier.Copy(ctx, source, target)
		total.Files += stats.Files
		total.Skipped += stats.Skipped
		total.Linked += stats.Linked
		return err
	}

	for _, src := range s.cfg.Sources {
		path := s.cfg.Resolve(src.Path)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			s.logger.Debug("source missing, skipping", "path", path, "role", src.Role)
			continue
		}
		s.logger.Info("copying source", "path", src.Path, "role", src.Role)
		if err := copyTree(path, filepath.Join(workspace, src.Target)); err != nil {
			return total, err
		}
	}

	if err := ensureGitignore(workspace); err != nil {
		return total, err
	}

	if err := s.fillVendor(workspace, copyTree); err != nil {
		return total, err
	}
	return total, nil
}

// fillVendor copies the production packages of the lock file, minus the
// platform provided kinds, and then the autoload files.
func (s *Syncer) fillVendor(workspace string, copyTree func(source, target string) error) error {
	pkgs, err := packages.Load(s.cfg.Resolve(s.cfg.Vendor.LockFile))
	if err != nil {
		return errors.New(errors.OpConfiguration, err)
	}
	pkgs = packages.Filter(pkgs, s.cfg.Vendor.ExcludedTypes)
	if len(pkgs) == 0 {
		return nil
	}

	vendorDir := s.cfg.Resolve(s.cfg.Vendor.Dir)
	target := filepath.Join(workspace, s.cfg.Vendor.Target)
	s.logger.Info("copying vendor packages", "count", len(pkgs), "dir", vendorDir)

	copied := 0
	for _, pkg := range pkgs {
		src := pkg.InstallPath(vendorDir)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			s.reporter.Warn("package %s is locked but not installed in %s", pkg.Name, vendorDir)
			continue
		}
		if err := copyTree(src, filepath.Join(target, filepath.FromSlash(pkg.Name))); err != nil {
			return err
		}
		copied++
	}

	// Packages without autoload.php cannot be loaded, so that one is fatal.
	autoloadDir := s.cfg.Resolve(s.cfg.Vendor.AutoloadDir)
	for _, name := range autoloadEntries {
		src := filepath.Join(autoloadDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			if name == autoloadFile && copied > 0 {
				return errors.Newf(errors.OpCopy, "production autoload %s not found", src)
			}
			s.reporter.Warn("autoload entry %s not found", src)
			continue
		}
		if err := copyTree(src, filepath.Join(target, name)); err != nil {
			return err
		}
	}
	return nil
}

// ensureGitignore writes BaselineGitignore unless the workspace already has
// a .gitignore.
func ensureGitignore(workspace string) error {
	path := filepath.Join(workspace, ".gitignore")
	if _, err := os.Lstat(path); err == nil {
		return nil
	}
	if err := os.WriteFile(path, []byte(BaselineGitignore), 0644); err != nil {
		return errors.New(errors.OpCopy, fmt.Errorf("write .gitignore: %w", err))
	}
	return nil
}
