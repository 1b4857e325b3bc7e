// Package config loads the mirror configuration from a YAML file, the
// environment and command-line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/NicabarNimble/go-deploymirror/internal/errors"
	"github.com/NicabarNimble/go-deploymirror/internal/packages"
	"github.com/NicabarNimble/go-deploymirror/internal/urlutils"
)

const (
	// FileName is the config file looked up in the project root.
	FileName = ".gitmirror"

	// EnvPrefix prefixes every environment override, e.g. GITMIRROR_BRANCH.
	EnvPrefix = "GITMIRROR"

	TransportSSH   = "ssh"
	TransportHTTPS = "https"
)

// Source roles.
const (
	RolePlugins   = "plugins"
	RoleThemes    = "themes"
	RoleConfig    = "config"
	RoleLanguages = "languages"
	RoleImages    = "images"
	RolePrivate   = "private"
)

// Source is one content root mirrored into the workspace.
type Source struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Target string `mapstructure:"target" yaml:"target"`
	Role   string `mapstructure:"role" yaml:"role"`
}

// VendorConfig locates production dependency packages.
type VendorConfig struct {
	LockFile      string   `mapstructure:"lock_file" yaml:"lock_file"`
	Dir           string   `mapstructure:"dir" yaml:"dir"`
	AutoloadDir   string   `mapstructure:"autoload_dir" yaml:"autoload_dir"`
	Target        string   `mapstructure:"target" yaml:"target"`
	ExcludedTypes []string `mapstructure:"excluded_types" yaml:"excluded_types"`
}

// CommitConfig is the identity mirror commits are made with.
type CommitConfig struct {
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// Config represents the configuration of a mirror run.
type Config struct {
	ProjectRoot    string       `mapstructure:"project_root" yaml:"project_root"`
	RemoteURL      string       `mapstructure:"remote_url" yaml:"remote_url"`
	Branch         string       `mapstructure:"branch" yaml:"branch"`
	DeployPath     string       `mapstructure:"deploy_path" yaml:"deploy_path,omitempty"`
	Transport      string       `mapstructure:"transport" yaml:"transport"`
	Sources        []Source     `mapstructure:"sources" yaml:"sources"`
	Vendor         VendorConfig `mapstructure:"vendor" yaml:"vendor"`
	Commit         CommitConfig `mapstructure:"commit" yaml:"commit"`
	CommandTimeout string       `mapstructure:"command_timeout" yaml:"command_timeout"`
	KeepWorkspace  bool         `mapstructure:"keep_workspace" yaml:"keep_workspace"`
	Verbose        bool         `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig provides default configuration values for a Bedrock style
// WordPress project.
func DefaultConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Branch:      "main",
		Transport:   TransportSSH,
		Sources: []Source{
			{Path: "web/app/plugins", Target: "web/app/plugins", Role: RolePlugins},
			{Path: "web/app/themes", Target: "web/app/themes", Role: RoleThemes},
			{Path: "web/app/mu-plugins", Target: "web/app/mu-plugins", Role: RolePlugins},
			{Path: "config", Target: "config", Role: RoleConfig},
			{Path: "web/app/languages", Target: "web/app/languages", Role: RoleLanguages},
			{Path: "web/app/images", Target: "web/app/images", Role: RoleImages},
			{Path: "private", Target: "private", Role: RolePrivate},
		},
		Vendor: VendorConfig{
			LockFile:      "composer.lock",
			Dir:           "vendor",
			AutoloadDir:   "vendor",
			Target:        "vendor",
			ExcludedTypes: append([]string(nil), packages.DefaultExcludedTypes...),
		},
		Commit: CommitConfig{
			AuthorName:  "gitmirror",
			AuthorEmail: "gitmirror@localhost",
		},
		CommandTimeout: "5m",
	}
}

// Load reads the configuration. An explicit path must exist; otherwise a
// .gitmirror file is looked up in searchDirs (the current directory when
// none are given) and defaults are used when there is none. GITMIRROR_*
// variables override file values.
func Load(path string, searchDirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		if len(searchDirs) == 0 {
			searchDirs = []string{"."}
		}
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || !notFound {
			return nil, errors.New(errors.OpConfiguration, fmt.Errorf("failed to read config file: %w", err))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.New(errors.OpConfiguration, fmt.Errorf("failed to parse config: %w", err))
	}

	cfg.MergeDefaults()
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override keys
// the file does not mention.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("project_root", d.ProjectRoot)
	v.SetDefault("remote_url", d.RemoteURL)
	v.SetDefault("branch", d.Branch)
	v.SetDefault("deploy_path", d.DeployPath)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("vendor.lock_file", d.Vendor.LockFile)
	v.SetDefault("vendor.dir", d.Vendor.Dir)
	// Empty so MergeDefaults can follow vendor.dir.
	v.SetDefault("vendor.autoload_dir", "")
	v.SetDefault("vendor.target", d.Vendor.Target)
	v.SetDefault("commit.author_name", d.Commit.AuthorName)
	v.SetDefault("commit.author_email", d.Commit.AuthorEmail)
	v.SetDefault("command_timeout", d.CommandTimeout)
	v.SetDefault("keep_workspace", d.KeepWorkspace)
	v.SetDefault("verbose", d.Verbose)
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeDefaults merges default values for unset fields
func (c *Config) MergeDefaults() {
	d := DefaultConfig()
	if c.ProjectRoot == "" {
		c.ProjectRoot = d.ProjectRoot
	}
	if c.Branch == "" {
		c.Branch = d.Branch
	}
	if c.Transport == "" {
		c.Transport = d.Transport
	}
	if len(c.Sources) == 0 {
		c.Sources = d.Sources
	}
	for i := range c.Sources {
		if c.Sources[i].Target == "" {
			c.Sources[i].Target = c.Sources[i].Path
		}
	}
	if c.Vendor.LockFile == "" {
		c.Vendor.LockFile = d.Vendor.LockFile
	}
	if c.Vendor.Dir == "" {
		c.Vendor.Dir = d.Vendor.Dir
	}
	if c.Vendor.AutoloadDir == "" {
		c.Vendor.AutoloadDir = c.Vendor.Dir
	}
	if c.Vendor.Target == "" {
		c.Vendor.Target = d.Vendor.Target
	}
	if c.Vendor.ExcludedTypes == nil {
		c.Vendor.ExcludedTypes = d.Vendor.ExcludedTypes
	}
	if c.Commit.AuthorName == "" {
		c.Commit.AuthorName = d.Commit.AuthorName
	}
	if c.Commit.AuthorEmail == "" {
		c.Commit.AuthorEmail = d.Commit.AuthorEmail
	}
	if c.CommandTimeout == "" {
		c.CommandTimeout = d.CommandTimeout
	}
}

// Validate checks if the configuration is valid. The remote URL may be
// empty here since the command line can still supply it.
func (c *Config) Validate() error {
	if c.ProjectRoot == "" {
		return errors.Newf(errors.OpConfiguration, "project root cannot be empty")
	}
	if c.RemoteURL != "" {
		if err := urlutils.ValidateURL(c.RemoteURL); err != nil {
			return errors.Newf(errors.OpConfiguration, "invalid remote url: %w", err)
		}
	}
	if err := urlutils.ValidateBranch(c.Branch); err != nil {
		return errors.Newf(errors.OpConfiguration, "invalid branch: %w", err)
	}
	switch c.Transport {
	case TransportSSH, TransportHTTPS:
	default:
		return errors.Newf(errors.OpConfiguration, "invalid transport %q, expected %s or %s", c.Transport, TransportSSH, TransportHTTPS)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	for _, src := range c.Sources {
		if src.Path == "" {
			return errors.Newf(errors.OpConfiguration, "source path cannot be empty")
		}
		if !filepath.IsLocal(src.Target) {
			return errors.Newf(errors.OpConfiguration, "source target %q must be a relative path inside the workspace", src.Target)
		}
	}
	if !filepath.IsLocal(c.Vendor.Target) {
		return errors.Newf(errors.OpConfiguration, "vendor target %q must be a relative path inside the workspace", c.Vendor.Target)
	}
	return nil
}

// Timeout parses the per-command timeout. Zero disables it.
func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0, errors.Newf(errors.OpConfiguration, "invalid command timeout: %w", err)
	}
	if d < 0 {
		return 0, errors.Newf(errors.OpConfiguration, "command timeout cannot be negative")
	}
	return d, nil
}

// Resolve makes a project-relative path absolute against the project root.
func (c *Config) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectRoot, path)
}

// Workspace returns the deployment target path that mirror workspaces are
// created under.
func (c *Config) Workspace() string {
	if c.DeployPath != "" {
		return c.Resolve(c.DeployPath)
	}
	return c.Resolve(".deploy")
}
