package deploy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WorkspacePrefix starts the name of every mirror workspace, which is how
// orphans of earlier runs are recognised.
const WorkspacePrefix = ".gitmirror-"

// Session owns the mirror workspace of one run below the deployment target
// path.
type Session struct {
	root string
	path string
	now  func() time.Time
}

// NewSession creates a session for workspaces below root.
func NewSession(root string) *Session {
	return &Session{root: root, now: time.Now}
}

// Root returns the deployment target path.
func (s *Session) Root() string {
	return s.root
}

// WorkspacePath returns the workspace of this run, choosing a unique name on
// first use. The deployment target path is created; the workspace itself is
// created by the clone.
func (s *Session) WorkspacePath() (string, error) {
	if s.path != "" {
		return s.path, nil
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", fmt.Errorf("failed to create deploy path: %w", err)
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to name workspace: %w", err)
	}
	name := WorkspacePrefix + s.now().UTC().Format("20060102-150405") + "-" + hex.EncodeToString(suffix)

	s.path = filepath.Join(s.root, name)
	return s.path, nil
}

// CleanupOrphans deletes every workspace left below the deployment target
// path, other than the current one, and returns the removed paths.
func (s *Session) CleanupOrphans() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list deploy path: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), WorkspacePrefix) {
			continue
		}
		path := filepath.Join(s.root, entry.Name())
		if path == s.path {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("failed to remove orphan workspace %s: %w", path, err)
		}
		removed = append(removed, path)
	}
	return removed, nil
}

// Remove deletes the workspace of this run. The next WorkspacePath call
// picks a new name.
func (s *Session) Remove() error {
	if s.path == "" {
		return nil
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	s.path = ""
	return nil
}
