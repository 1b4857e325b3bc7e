// Package packages discovers the production dependency packages of a
// project from its composer.lock file.
package packages

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExcludedTypes are package kinds provided by the platform itself or
// installed outside the vendor tree.
var DefaultExcludedTypes = []string{
	"wordpress-plugin",
	"wordpress-theme",
	"wordpress-muplugin",
	"wordpress-dropin",
	"wordpress-core",
	"metapackage",
}

// Package is one locked production dependency.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

// lockFile holds the parts of composer.lock we read. Development
// packages are listed under packages-dev and are never deployed.
type lockFile struct {
	Packages []Package `json:"packages"`
}

// Load reads the production packages from the lock file at path. A missing
// lock file yields no packages.
func Load(path string) ([]Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lock file: %w", err)
	}

	var lock lockFile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock file %s: %w", path, err)
	}

	pkgs := lock.Packages[:0]
	for _, pkg := range lock.Packages {
		if pkg.Name == "" {
			continue
		}
		if err := validateName(pkg.Name); err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

// Filter drops packages whose type is one of excluded. Type comparison is
// case-insensitive.
func Filter(pkgs []Package, excluded []string) []Package {
	skip := make(map[string]bool, len(excluded))
	for _, t := range excluded {
		skip[strings.ToLower(t)] = true
	}

	var kept []Package
	for _, pkg := range pkgs {
		if skip[strings.ToLower(pkg.Type)] {
			continue
		}
		kept = append(kept, pkg)
	}
	return kept
}

// InstallPath is where pkg lives below the vendor directory.
func (p Package) InstallPath(vendorDir string) string {
	return filepath.Join(vendorDir, filepath.FromSlash(p.Name))
}

// validateName requires the vendor/name shape so a hostile lock file
// cannot point the copy outside the vendor directory.
func validateName(name string) error {
	parts := strings.Split(name, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid package name %q: expected vendor/name", name)
	}
	for _, part := range parts {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `\:`) {
			return fmt.Errorf("invalid package name %q", name)
		}
	}
	return nil
}
