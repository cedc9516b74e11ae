// Package scanner discovers the analyzable files of a context root. Exclusion
// combines three layers: the dot-folder rule (any path segment starting with
// "." relative to the root, minus explicit allowances), configured glob
// patterns, and optionally the repository's .gitignore files.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/sourcegraph/conc/pool"

	"github.com/calitho/skiff/internal/bytestore"
	"github.com/calitho/skiff/pkg/config"
)

// Scanner finds source files under a root.
type Scanner struct {
	opts     *config.Options
	matchers []gitignore.Matcher
}

// New creates a scanner for the given options.
func New(opts *config.Options) *Scanner {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	return &Scanner{opts: opts}
}

// findGitRoot walks up from start looking for a .git directory.
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadGitignore collects .gitignore patterns for the repository containing
// root, when gitignore exclusion is enabled.
func (s *Scanner) loadGitignore(root string) {
	if !s.opts.Exclude.Gitignore {
		return
	}
	gitRoot := findGitRoot(root)
	if gitRoot == "" {
		return
	}
	fsys := osfs.New(gitRoot)
	if patterns, err := gitignore.ReadPatterns(fsys, nil); err == nil && len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// IsDotExcluded applies the dot-folder rule: any segment of the root-relative
// path starting with "." excludes the path, unless the segment name carries an
// explicit allowance.
func (s *Scanner) IsDotExcluded(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if !strings.HasPrefix(seg, ".") || seg == "." {
			continue
		}
		allowed := false
		for _, name := range s.opts.Exclude.NotExcluded {
			if seg == name {
				allowed = true
				break
			}
		}
		if !allowed {
			return true
		}
	}
	return false
}

// IsExcluded reports whether a root-relative location is excluded by any
// layer: dot-folders, configured globs, gitignore, or the excluded paths.
func (s *Scanner) IsExcluded(root, path string, isDir bool, excluded []string) bool {
	for _, ex := range excluded {
		if path == ex || strings.HasPrefix(path, ex+string(filepath.Separator)) {
			return true
		}
	}
	if s.IsDotExcluded(root, path) {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	relSlash := filepath.ToSlash(rel)
	for _, pattern := range s.opts.Exclude.Patterns {
		if ok, _ := doublestar.Match(pattern, relSlash); ok {
			return true
		}
	}
	for _, m := range s.matchers {
		if m.Match(strings.Split(rel, string(filepath.Separator)), isDir) {
			return true
		}
	}
	return false
}

// ScanRoot walks root and returns every analyzable source file, skipping
// excluded directories without descending into them.
func (s *Scanner) ScanRoot(root string, excluded []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s.loadGitignore(absRoot)

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			if path != absRoot && s.IsExcluded(absRoot, path, true, excluded) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.IsExcluded(absRoot, path, false, excluded) {
			return nil
		}
		if s.opts.IsSourceFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// HashAll reads and hashes every file concurrently, storing contents in the
// shared byte store. Unreadable files are skipped. The returned map is keyed
// by path with the content hash as value; onFile, if non-nil, is called once
// per processed file.
func HashAll(files []string, store *bytestore.Store, onFile func()) map[string]string {
	var mu sync.Mutex
	hashes := make(map[string]string, len(files))

	p := pool.New().WithMaxGoroutines(runtime.NumCPU() * 2)
	for _, path := range files {
		p.Go(func() {
			data, err := os.ReadFile(path)
			if onFile != nil {
				defer onFile()
			}
			if err != nil {
				return
			}
			key := store.Put(data)
			mu.Lock()
			hashes[path] = key
			mu.Unlock()
		})
	}
	p.Wait()
	return hashes
}
