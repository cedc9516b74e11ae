// Package contexts maps a changing set of source roots and file-system events
// onto a minimal collection of long-lived analysis contexts. The manager owns
// the collection and the callback interface; listeners never hold a strong
// reference back to the manager, only the lookup methods they are handed.
package contexts

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/calitho/skiff/internal/bytestore"
	"github.com/calitho/skiff/internal/descriptor"
	"github.com/calitho/skiff/internal/scanner"
	"github.com/calitho/skiff/pkg/config"
	"github.com/calitho/skiff/pkg/watch"
)

// Listener is the callback interface the manager drives. Implementations are
// called with the manager's internal lock released only for ListenDriver; all
// other callbacks must not call back into mutating manager methods.
type Listener interface {
	// AfterContextsCreated fires once the context collection for the latest
	// SetRoots call is fully built.
	AfterContextsCreated()

	// AfterWatchEvent fires for every classified watch event, before routing.
	AfterWatchEvent(ev watch.Event)

	// ApplyFileRemoved fires when an analyzed file was removed from disk.
	ApplyFileRemoved(path string)

	// RemoveContext fires when a context is torn down, with the files it was
	// analyzing flushed out for the caller's bookkeeping.
	RemoveContext(root string, flushedFiles []string)

	// ListenDriver hands the caller a newly created driver to subscribe to.
	ListenDriver(d *Driver)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the shared byte store.
func WithStore(store *bytestore.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithWatching enables or disables file watching; disabled managers rely on
// the caller to feed events through HandleWatchEvent.
func WithWatching(enabled bool) Option {
	return func(m *Manager) { m.watching = enabled }
}

// Manager owns the context collection. Its mutable state is guarded by one
// lock; watch callbacks and public methods may arrive from any goroutine.
type Manager struct {
	opts     *config.Options
	listener Listener
	store    *bytestore.Store
	watching bool

	mu         sync.Mutex
	contexts   []*Context
	included   []string
	excluded   []string
	generation uint64
	runCtx     context.Context

	descMu      sync.Mutex
	descResults map[string]*descriptor.Result
}

// NewManager creates a manager. The listener must be non-nil.
func NewManager(opts *config.Options, listener Listener, options ...Option) *Manager {
	if opts == nil {
		opts = config.DefaultOptions()
	}
	m := &Manager{
		opts:        opts,
		listener:    listener,
		descResults: make(map[string]*descriptor.Result),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.store == nil {
		m.store = bytestore.New()
	}
	return m
}

// Start enables watch subscriptions for current and future contexts, bound to
// the lifetime of ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.runCtx = ctx
	m.watching = true
	ctxs := append([]*Context(nil), m.contexts...)
	m.mu.Unlock()
	for _, c := range ctxs {
		m.subscribe(c)
	}
}

// SetRoots replaces the root configuration. Every existing context is torn
// down, with its subscription cancelled and its file list flushed to the
// listener, before the new collection is built. Nothing is migrated: driver
// results are content-addressed in the shared store and survive on their own.
func (m *Manager) SetRoots(included, excluded []string) error {
	m.mu.Lock()

	old := m.contexts
	m.contexts = nil
	m.generation++
	gen := m.generation

	absIncluded, err := absAll(included)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	absExcluded, err := absAll(excluded)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.included = absIncluded
	m.excluded = absExcluded
	m.mu.Unlock()

	for _, c := range old {
		c.cancelSubscription()
		m.listener.RemoveContext(c.root, c.driver.KnownFiles())
	}

	var created []*Context
	for _, root := range contextRoots(absIncluded) {
		created = append(created, m.createContext(root, absExcluded, gen))
	}

	m.mu.Lock()
	if m.generation != gen {
		// A newer SetRoots superseded this one while contexts were building;
		// its collection wins and ours is discarded.
		m.mu.Unlock()
		for _, c := range created {
			c.cancelSubscription()
		}
		return nil
	}
	m.contexts = created
	watching := m.watching
	m.mu.Unlock()

	if watching {
		for _, c := range created {
			m.subscribe(c)
		}
	}
	m.listener.AfterContextsCreated()
	return nil
}

// Refresh rebuilds the context collection from the last SetRoots
// configuration.
func (m *Manager) Refresh() error {
	m.mu.Lock()
	included := append([]string(nil), m.included...)
	excluded := append([]string(nil), m.excluded...)
	m.mu.Unlock()
	return m.SetRoots(included, excluded)
}

// contextRoots returns the minimal set of context boundaries: included roots
// not nested under another included root, reliably ordered.
func contextRoots(included []string) []string {
	sorted := append([]string(nil), included...)
	sort.Strings(sorted)
	var roots []string
	for _, root := range sorted {
		covered := false
		for _, existing := range roots {
			if root == existing || strings.HasPrefix(root, existing+string(filepath.Separator)) {
				covered = true
				break
			}
		}
		if !covered {
			roots = append(roots, root)
		}
	}
	return roots
}

func absAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// createContext builds one context: discovers its files, hashes them into the
// shared store, and validates any descriptor files present at the root. A
// failure validating one descriptor never aborts creation.
func (m *Manager) createContext(root string, excluded []string, gen uint64) *Context {
	sc := scanner.New(m.opts)
	c := &Context{
		root:       root,
		excluded:   excluded,
		generation: gen,
		scanner:    sc,
		driver:     NewDriver(root, m.store),
	}

	files, err := sc.ScanRoot(root, excluded)
	if err == nil {
		hashes := scanner.HashAll(files, m.store, nil)
		for _, path := range files {
			if h, ok := hashes[path]; ok {
				c.driver.AddFileHashed(path, h)
			} else {
				c.driver.AddFile(path)
			}
		}
	}

	m.validateDescriptor(filepath.Join(root, m.opts.Descriptors.Manifest), descriptor.KindManifest, gen)
	m.validateDescriptor(filepath.Join(root, m.opts.Descriptors.FixData), descriptor.KindFixData, gen)

	m.listener.ListenDriver(c.driver)
	return c
}

// subscribe starts the context's watch subscription.
func (m *Manager) subscribe(c *Context) {
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return
	}

	debounce := time.Duration(m.opts.Watch.DebounceMS) * time.Millisecond
	w, err := watch.NewWatcher(c.root, debounce)
	if err != nil {
		return
	}
	sc := c.scanner
	w.ShouldSkipDir = func(path string) bool {
		return sc.IsExcluded(c.root, path, true, c.excluded)
	}
	w.OnEvent(m.HandleWatchEvent)
	w.OnOverflow(m.handleOverflow)

	subCtx, cancel := context.WithCancel(runCtx)
	c.cancelSub = func() {
		cancel()
		_ = w.Close()
	}
	go func() { _ = w.Start(subCtx) }()
}

// HandleWatchEvent classifies and routes one file event. Configuration-
// relevant files force a full rebuild; source files are routed to every
// context analyzing the path; descriptor files get a narrow re-validation
// independent of the main driver.
func (m *Manager) HandleWatchEvent(ev watch.Event) {
	m.listener.AfterWatchEvent(ev)

	name := filepath.Base(ev.Path)
	switch {
	case config.IsOptionsFile(name) || m.opts.IsLockfile(name):
		_ = m.Refresh()

	case name == m.opts.Descriptors.Manifest:
		m.mu.Lock()
		gen := m.generation
		m.mu.Unlock()
		m.validateDescriptor(ev.Path, descriptor.KindManifest, gen)

	case name == m.opts.Descriptors.FixData:
		m.mu.Lock()
		gen := m.generation
		m.mu.Unlock()
		m.validateDescriptor(ev.Path, descriptor.KindFixData, gen)

	case m.opts.IsSourceFile(ev.Path):
		m.routeSourceEvent(ev)
	}
}

// routeSourceEvent applies a source-file event to every context whose root
// contains the path and does not exclude it.
func (m *Manager) routeSourceEvent(ev watch.Event) {
	m.mu.Lock()
	ctxs := append([]*Context(nil), m.contexts...)
	m.mu.Unlock()

	for _, c := range ctxs {
		if !c.Analyzes(ev.Path) {
			continue
		}
		switch ev.Op {
		case watch.OpCreate:
			c.driver.AddFile(ev.Path)
		case watch.OpModify:
			c.driver.ChangeFile(ev.Path)
		case watch.OpRemove:
			c.driver.RemoveFile(ev.Path)
			m.listener.ApplyFileRemoved(ev.Path)
		}
	}
}

// validateDescriptor runs a single-file validation and records the result,
// unless a newer generation superseded the work while it ran: a stale result
// is silently discarded rather than applied to a context that no longer
// exists.
func (m *Manager) validateDescriptor(path string, kind descriptor.Kind, gen uint64) {
	var res *descriptor.Result
	switch kind {
	case descriptor.KindManifest:
		res = descriptor.ValidateManifest(path)
	case descriptor.KindFixData:
		res = descriptor.ValidateFixData(path)
	default:
		return
	}

	m.mu.Lock()
	stale := m.generation != gen
	m.mu.Unlock()
	if stale {
		return
	}

	m.descMu.Lock()
	m.descResults[path] = res
	m.descMu.Unlock()
}

// handleOverflow recovers from a dropped OS event stream: the set of missed
// events is unknowable, so the whole collection is rebuilt.
func (m *Manager) handleOverflow() {
	_ = m.Refresh()
}

// DescriptorResult returns the last validation result recorded for path.
func (m *Manager) DescriptorResult(path string) (*descriptor.Result, bool) {
	m.descMu.Lock()
	defer m.descMu.Unlock()
	res, ok := m.descResults[path]
	return res, ok
}

// ContextFor returns the innermost context whose root contains path.
func (m *Manager) ContextFor(path string) *Context {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Context
	for _, c := range m.contexts {
		if !c.ContainsPath(abs) {
			continue
		}
		if best == nil || len(c.root) > len(best.root) {
			best = c
		}
	}
	return best
}

// DriverFor returns the driver of the context containing path.
func (m *Manager) DriverFor(path string) *Driver {
	if c := m.ContextFor(path); c != nil {
		return c.driver
	}
	return nil
}

// IsInAnalysisRoot reports whether path would be analyzed by some context.
func (m *Manager) IsInAnalysisRoot(path string) bool {
	c := m.ContextFor(path)
	if c == nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return c.Analyzes(abs)
}

// Contexts returns a snapshot of the current context collection.
func (m *Manager) Contexts() []*Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Context(nil), m.contexts...)
}

// Store returns the shared byte store.
func (m *Manager) Store() *bytestore.Store { return m.store }
