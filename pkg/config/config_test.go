package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, []string{".sk"}, opts.Source.Extensions)
	assert.True(t, opts.Exclude.Gitignore)
	assert.Equal(t, "manifest.yaml", opts.Descriptors.Manifest)
	assert.Equal(t, "fix_data.json", opts.Descriptors.FixData)
	assert.Equal(t, 500, opts.Watch.DebounceMS)
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "skiff.toml", `
[roots]
include = ["lib", "bin"]

[source]
extensions = [".sk", ".ski"]

[watch]
debounce_ms = 100
`)

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "bin"}, opts.Roots.Include)
	assert.Equal(t, []string{".sk", ".ski"}, opts.Source.Extensions)
	assert.Equal(t, 100, opts.Watch.DebounceMS)
	// Unset sections keep their defaults.
	assert.Equal(t, "manifest.yaml", opts.Descriptors.Manifest)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "skiff.yaml", `
exclude:
  patterns:
    - "**/generated/**"
  gitignore: false
  not_excluded:
    - ".workspace"
`)

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"**/generated/**"}, opts.Exclude.Patterns)
	assert.False(t, opts.Exclude.Gitignore)
	assert.Equal(t, []string{".workspace"}, opts.Exclude.NotExcluded)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "skiff.json", `{"descriptors": {"lockfiles": ["skiff.lock", "deps.lock"]}}`)

	opts, err := Load(path)
	require.NoError(t, err)
	assert.True(t, opts.IsLockfile("deps.lock"))
	assert.True(t, opts.IsLockfile("skiff.lock"))
	assert.False(t, opts.IsLockfile("other.lock"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "skiff.toml"))
	assert.Error(t, err)
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "skiff.yml", "watch:\n  debounce_ms: 42\n")

	opts := LoadOrDefault(dir)
	assert.Equal(t, 42, opts.Watch.DebounceMS)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	opts := LoadOrDefault(t.TempDir())
	assert.Equal(t, DefaultOptions(), opts)
}

func TestIsOptionsFile(t *testing.T) {
	assert.True(t, IsOptionsFile("skiff.toml"))
	assert.True(t, IsOptionsFile(".skiff.yaml"))
	assert.False(t, IsOptionsFile("skiff.txt"))
	assert.False(t, IsOptionsFile("manifest.yaml"))
}

func TestIsSourceFile(t *testing.T) {
	opts := DefaultOptions()
	assert.True(t, opts.IsSourceFile("lib/main.sk"))
	assert.False(t, opts.IsSourceFile("lib/main.go"))
	assert.False(t, opts.IsSourceFile("README"))
}
