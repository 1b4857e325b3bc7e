package mirror

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// archiveRef picks the ref exported from a linked repository: the local
// branch behind origin/HEAD when present, else the checked-out branch,
// else HEAD.
func archiveRef(path string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "HEAD"
	}

	if remoteHead, err := repo.Reference(plumbing.NewRemoteHEADReferenceName("origin"), false); err == nil &&
		remoteHead.Type() == plumbing.SymbolicReference {
		remoteBranch := remoteHead.Target()
		local := strings.TrimPrefix(remoteBranch.Short(), "origin/")
		if _, err := repo.Reference(plumbing.NewBranchReferenceName(local), true); err == nil {
			return local
		}
		if _, err := repo.Reference(remoteBranch, true); err == nil {
			return remoteBranch.String()
		}
	}

	head, err := repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return "HEAD"
	}
	return head.Name().Short()
}

// extractZip unpacks archive into dir. Entries resolving outside dir are
// rejected.
func extractZip(archive, dir string) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	root := filepath.Clean(dir) + string(filepath.Separator)

	for _, f := range reader.File {
		dest := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest+string(filepath.Separator), root) {
			return fmt.Errorf("archive entry %q escapes %s", f.Name, dir)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(dest, 0755); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			if err := extractSymlink(f, dest); err != nil {
				return err
			}
		default:
			if err := extractFile(f, dest); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractFile(f *zip.File, dest string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0200)
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

func extractSymlink(f *zip.File, dest string) error {
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	target, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	os.Remove(dest)
	return os.Symlink(string(target), dest)
}
