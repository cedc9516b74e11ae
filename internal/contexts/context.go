package contexts

import (
	"path/filepath"
	"strings"

	"github.com/calitho/skiff/internal/scanner"
)

// Context is one analysis context: a bounded root scope with its own driver,
// file set, and watch subscription. Contexts are never mutated across a
// root-set change; the manager always destroys and recreates the whole
// collection.
type Context struct {
	root       string
	excluded   []string
	generation uint64
	driver     *Driver
	scanner    *scanner.Scanner
	cancelSub  func()
}

// Root returns the context's root folder.
func (c *Context) Root() string { return c.root }

// Driver returns the context's analysis driver.
func (c *Context) Driver() *Driver { return c.driver }

// Generation returns the manager generation this context belongs to. In-flight
// work bound to an older generation must discard its result rather than apply
// it to a context that no longer exists.
func (c *Context) Generation() uint64 { return c.generation }

// ContainsPath reports whether path falls under the context root, before
// exclusion filtering.
func (c *Context) ContainsPath(path string) bool {
	return path == c.root || strings.HasPrefix(path, c.root+string(filepath.Separator))
}

// Analyzes reports whether path is analyzed by this context: under the root
// and not excluded by any layer.
func (c *Context) Analyzes(path string) bool {
	if !c.ContainsPath(path) {
		return false
	}
	return !c.scanner.IsExcluded(c.root, path, false, c.excluded)
}

// cancelSubscription releases the context's file-watch subscription, if any.
func (c *Context) cancelSubscription() {
	if c.cancelSub != nil {
		c.cancelSub()
		c.cancelSub = nil
	}
}
