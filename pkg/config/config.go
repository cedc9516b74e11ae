// Package config loads the analysis options file. The options file is one of
// the configuration-relevant files: any change to it forces the context
// manager to rebuild its whole context collection.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Options holds all configuration for the context manager and its drivers.
type Options struct {
	// Roots configures the analyzed root folders.
	Roots RootsOptions `koanf:"roots"`

	// Source describes which files are analyzable.
	Source SourceOptions `koanf:"source"`

	// Exclude defines exclusion patterns applied under every root.
	Exclude ExcludeOptions `koanf:"exclude"`

	// Descriptors names the auxiliary descriptor files handled outside the
	// main driver.
	Descriptors DescriptorOptions `koanf:"descriptors"`

	// Watch controls file watching.
	Watch WatchOptions `koanf:"watch"`
}

// RootsOptions configures analysis roots.
type RootsOptions struct {
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`
}

// SourceOptions describes analyzable source files.
type SourceOptions struct {
	Extensions []string `koanf:"extensions"`
}

// ExcludeOptions defines exclusion patterns.
type ExcludeOptions struct {
	// Patterns are doublestar globs matched against root-relative paths.
	Patterns []string `koanf:"patterns"`

	// Gitignore enables .gitignore-based exclusion.
	Gitignore bool `koanf:"gitignore"`

	// NotExcluded lists dot-folder names exempt from the dot-folder rule.
	NotExcluded []string `koanf:"not_excluded"`
}

// DescriptorOptions names the auxiliary descriptor files.
type DescriptorOptions struct {
	Manifest  string   `koanf:"manifest"`
	FixData   string   `koanf:"fix_data"`
	Lockfiles []string `koanf:"lockfiles"`
}

// WatchOptions controls file watching.
type WatchOptions struct {
	DebounceMS int `koanf:"debounce_ms"`
}

// optionsFileNames are the recognized options file names, in search order.
var optionsFileNames = []string{
	"skiff.toml",
	"skiff.yaml",
	"skiff.yml",
	"skiff.json",
	".skiff.toml",
	".skiff.yaml",
	".skiff.yml",
	".skiff.json",
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Source: SourceOptions{
			Extensions: []string{".sk"},
		},
		Exclude: ExcludeOptions{
			Patterns: []string{
				"**/build/**",
				"**/node_modules/**",
			},
			Gitignore: true,
		},
		Descriptors: DescriptorOptions{
			Manifest:  "manifest.yaml",
			FixData:   "fix_data.json",
			Lockfiles: []string{"skiff.lock"},
		},
		Watch: WatchOptions{
			DebounceMS: 500,
		},
	}
}

// Load loads options from a file, choosing the parser by extension.
func Load(path string) (*Options, error) {
	k := koanf.New(".")
	opts := DefaultOptions()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadOrDefault tries the standard options file names under dir, falling back
// to defaults when none loads.
func LoadOrDefault(dir string) *Options {
	for _, name := range optionsFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			if opts, err := Load(path); err == nil {
				return opts
			}
		}
	}
	return DefaultOptions()
}

// IsOptionsFile reports whether name is a recognized options file name.
func IsOptionsFile(name string) bool {
	for _, candidate := range optionsFileNames {
		if name == candidate {
			return true
		}
	}
	return false
}

// IsLockfile reports whether name is a recognized dependency lockfile.
func (o *Options) IsLockfile(name string) bool {
	for _, lf := range o.Descriptors.Lockfiles {
		if name == lf {
			return true
		}
	}
	return false
}

// IsSourceFile reports whether path has an analyzable extension.
func (o *Options) IsSourceFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range o.Source.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
