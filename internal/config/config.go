/*
Package config provides loading and validation of the firmware release file.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"dario.cat/mergo"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var (
	// ErrLoad is returned when the release file cannot be read or parsed.
	ErrLoad = errors.New("failed to load release file")

	// ErrValidation is returned when required keys are missing or a
	// selection does not match the configuration.
	ErrValidation = errors.New("invalid release config")
)

// Release types
const (
	TypeRogue = "Rogue"
	TypeCPSW  = "CPSW"
)

// DefaultGitHubOwner is the organization the project slug is matched against
const DefaultGitHubOwner = "slaclab"

// GroupKey names a file group list
type GroupKey string

const (
	RoguePackages GroupKey = "RoguePackages"
	RogueConfig   GroupKey = "RogueConfig"
	CpswSource    GroupKey = "CpswSource"
	CpswConfig    GroupKey = "CpswConfig"
)

// Config is the parsed firmware/releases.yaml
type Config struct {
	// Releases maps release names to their definition
	Releases map[string]Release `yaml:"Releases"`

	// Targets maps target names to their definition
	Targets map[string]Target `yaml:"Targets"`

	// TopPackage is the Python package whose __init__.py is rewritten
	TopPackage string `yaml:"TopPackage,omitempty"`

	// GitHubOwner is the organization owning the remote repository
	GitHubOwner string `yaml:"GitHubOwner,omitempty"`

	// Checksum is the algorithm for the attachment checksum file.
	// Empty disables it.
	Checksum string `yaml:"Checksum,omitempty"`

	// Includes are additional release files merged into this one
	Includes []string `yaml:"Includes,omitempty"`

	// Global file groups, shared by every release
	FileGroups `yaml:",inline"`

	// order is the declaration order of Releases
	order []string
}

// Release defines one release bundle
type Release struct {
	// Targets shipped by the release, in order
	Targets []string `yaml:"Targets"`

	// Types of bundles to generate (Rogue, CPSW)
	Types []string `yaml:"Types"`

	// Release specific file groups, appended to the global ones
	FileGroups `yaml:",inline"`
}

// Target defines a firmware build target
type Target struct {
	// Extensions of the image files that belong to a build, in order
	Extensions []string `yaml:"Extensions"`
}

// FileGroups holds the directory lists for each file group.
// Entries are relative to the firmware directory.
type FileGroups struct {
	RoguePackages []string `yaml:"RoguePackages,omitempty"`
	RogueConfig   []string `yaml:"RogueConfig,omitempty"`
	CpswSource    []string `yaml:"CpswSource,omitempty"`
	CpswConfig    []string `yaml:"CpswConfig,omitempty"`
}

// Group returns the directory list stored under key
func (g FileGroups) Group(key GroupKey) []string {
	switch key {
	case RoguePackages:
		return g.RoguePackages
	case RogueConfig:
		return g.RogueConfig
	case CpswSource:
		return g.CpswSource
	case CpswConfig:
		return g.CpswConfig
	}
	return nil
}

// HasType reports whether the release generates the given bundle type
func (r Release) HasType(typ string) bool {
	for _, t := range r.Types {
		if t == typ {
			return true
		}
	}
	return false
}

// FirmwareDir returns the firmware directory of a project
func FirmwareDir(project string) string {
	return filepath.Join(project, "firmware")
}

// Path returns the release file location of a project
func Path(project string) string {
	return filepath.Join(FirmwareDir(project), "releases.yaml")
}

// Load loads the release file from the OS filesystem
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs loads the release file from fs, merging its includes. An include
// glob matching the including file itself is skipped; any other file
// included again by one of its own includes is an error.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	return load(fs, path, nil)
}

func load(fs afero.Fs, path string, parents []string) (*Config, error) {
	self, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}
	parents = append(slices.Clip(parents), self)

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrLoad, path, err)
	}
	cfg.order = releaseOrder(data)

	// Process includes
	baseDir := filepath.Dir(path)
	for _, include := range cfg.Includes {
		includePath := include
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, include)
		}

		matches, err := afero.Glob(fs, includePath)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid include pattern %s: %w", ErrLoad, include, err)
		}

		for _, match := range matches {
			abs, err := filepath.Abs(match)
			if err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrLoad, match, err)
			}
			if abs == self {
				continue
			}
			if slices.Contains(parents, abs) {
				return nil, fmt.Errorf("%w: include cycle %s -> %s", ErrLoad, path, match)
			}

			includeCfg, err := load(fs, match, parents)
			if err != nil {
				return nil, fmt.Errorf("failed to load include %s: %w", match, err)
			}

			if err := mergo.Merge(&cfg, includeCfg, mergo.WithAppendSlice); err != nil {
				return nil, fmt.Errorf("%w: failed to merge include %s: %w", ErrLoad, match, err)
			}
			cfg.order = append(cfg.order, includeCfg.order...)
		}
	}

	if cfg.GitHubOwner == "" {
		cfg.GitHubOwner = DefaultGitHubOwner
	}

	return &cfg, nil
}

// Validate checks the top level keys
func (c *Config) Validate() error {
	if len(c.Releases) == 0 {
		return fmt.Errorf("%w: Releases key is missing or empty", ErrValidation)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: Targets key is missing or empty", ErrValidation)
	}
	return nil
}

// ValidateRelease checks that a release exists and declares targets and types
func (c *Config) ValidateRelease(name string) error {
	rel, ok := c.Releases[name]
	if !ok {
		return fmt.Errorf("%w: release %s is not defined", ErrValidation, name)
	}
	if len(rel.Targets) == 0 {
		return fmt.Errorf("%w: Targets list in release %s is missing or empty", ErrValidation, name)
	}
	if len(rel.Types) == 0 {
		return fmt.Errorf("%w: Types list in release %s is missing or empty", ErrValidation, name)
	}
	return nil
}

// ValidateTarget checks that a target exists and declares extensions
func (c *Config) ValidateTarget(name string) error {
	tgt, ok := c.Targets[name]
	if !ok {
		return fmt.Errorf("%w: referenced target %s is missing in target list", ErrValidation, name)
	}
	if len(tgt.Extensions) == 0 {
		return fmt.Errorf("%w: Extensions list for target %s is missing or empty", ErrValidation, name)
	}
	return nil
}

// ReleaseNames returns the release names in declaration order.
// Releases not seen in a parsed document are appended sorted.
func (c *Config) ReleaseNames() []string {
	names := make([]string, 0, len(c.Releases))
	seen := make(map[string]bool)
	for _, name := range c.order {
		if _, ok := c.Releases[name]; ok && !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}

	var rest []string
	for name := range c.Releases {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(names, rest...)
}

// releaseOrder returns the keys of the Releases mapping as written
func releaseOrder(data []byte) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "Releases" {
			continue
		}
		rels := root.Content[i+1]
		if rels.Kind != yaml.MappingNode {
			return nil
		}
		var names []string
		for j := 0; j+1 < len(rels.Content); j += 2 {
			names = append(names, rels.Content[j].Value)
		}
		return names
	}
	return nil
}

// Files returns the global directories for key followed by the release ones
func (c *Config) Files(rel Release, key GroupKey) []string {
	var dirs []string
	dirs = append(dirs, c.Group(key)...)
	dirs = append(dirs, rel.Group(key)...)
	return dirs
}
