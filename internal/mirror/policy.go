package mirror

import (
	"path"
	"path/filepath"
	"strings"
)

// Default exclusion lists. Basenames and extensions are matched
// case-insensitively.
var (
	defaultExcludedFiles = []string{
		// editor configs
		".editorconfig", ".idea", ".vscode", ".project", ".buildpath", ".settings",
		// VCS and OS noise
		".gitattributes", ".gitignore", ".gitmodules", ".ds_store", "thumbs.db", "desktop.ini",
		// lockfiles and manifests
		"composer.lock", "package-lock.json", "npm-shrinkwrap.json", "yarn.lock", "pnpm-lock.yaml",
		"package.json", ".npmrc", ".nvmrc", ".yarnrc",
		// changelogs and docs
		"changelog", "changelog.md", "changelog.txt", "changes.md", "history.md",
		"readme", "readme.md", "readme.txt", "contributing.md", "upgrade.md",
		// bundler and toolchain configs
		"webpack.config.js", "webpack.mix.js", "gulpfile.js", "gruntfile.js", "rollup.config.js",
		"vite.config.js", "vite.config.ts", "babel.config.js", ".babelrc", "postcss.config.js",
		"tsconfig.json", ".eslintrc", ".eslintrc.js", ".eslintrc.json", ".eslintignore",
		".stylelintrc", ".stylelintrc.json", ".prettierrc", ".browserslistrc",
		// CI and QA manifests
		".travis.yml", ".gitlab-ci.yml", ".scrutinizer.yml", "bitbucket-pipelines.yml",
		"appveyor.yml", "phpunit.xml", "phpunit.xml.dist", "phpcs.xml", "phpcs.xml.dist",
		"phpstan.neon", "phpstan.neon.dist", "psalm.xml", "psalm.xml.dist", "infection.json.dist",
	}

	defaultExcludedExtensions = []string{
		// pre-processor sources
		".scss", ".sass", ".less", ".styl", ".coffee",
		// logs, temp and lock files
		".log", ".tmp", ".temp", ".swp", ".swo", ".bak", ".lock", ".cache",
		// compiled archives
		".zip", ".tar", ".gz", ".tgz", ".bz2", ".rar", ".7z", ".phar",
		// TypeScript sources
		".ts", ".tsx",
	}

	defaultExcludedFragments = []string{
		"node_modules/",
		"/.git",
	}
)

// Policy decides which paths enter the mirror. It holds no mutable state and
// is safe to share between copies.
type Policy struct {
	files      map[string]struct{}
	extensions map[string]struct{}
	fragments  []string
}

// NewPolicy builds a Policy from excluded basenames, extensions (with the
// leading dot) and path fragments.
func NewPolicy(files, extensions, fragments []string) *Policy {
	p := &Policy{
		files:      make(map[string]struct{}, len(files)),
		extensions: make(map[string]struct{}, len(extensions)),
		fragments:  append([]string(nil), fragments...),
	}
	for _, f := range files {
		p.files[strings.ToLower(f)] = struct{}{}
	}
	for _, e := range extensions {
		p.extensions[strings.ToLower(e)] = struct{}{}
	}
	return p
}

// DefaultPolicy excludes development-only files from a deployable tree.
func DefaultPolicy() *Policy {
	return NewPolicy(defaultExcludedFiles, defaultExcludedExtensions, defaultExcludedFragments)
}

// Accept reports whether p belongs in the mirror. A trailing slash marks a
// directory. A .gitkeep file is accepted exactly when its parent directory is.
func (p *Policy) Accept(name string) bool {
	slashed := filepath.ToSlash(name)
	trimmed := strings.TrimRight(slashed, "/")
	base := path.Base(trimmed)
	lower := strings.ToLower(base)

	if lower == ".gitkeep" {
		parent := path.Dir(trimmed)
		if parent == "." || parent == "/" {
			return true
		}
		return p.Accept(parent + "/")
	}

	if lower == ".git" {
		return false
	}
	if _, ok := p.files[lower]; ok {
		return false
	}
	if _, ok := p.extensions[strings.ToLower(path.Ext(base))]; ok {
		return false
	}

	asDir := trimmed + "/"
	for _, fragment := range p.fragments {
		if strings.Contains(slashed, fragment) || strings.Contains(asDir, fragment) {
			return false
		}
	}

	return true
}
