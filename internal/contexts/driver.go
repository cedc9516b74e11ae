package contexts

import (
	"os"
	"sync"

	"github.com/calitho/skiff/internal/bytestore"
)

// Driver is the per-context incremental analysis driver. It owns the analyzed
// file set and a changed-file queue; the external analysis loop drains the
// queue and looks results up in the shared byte store by content hash, so
// results survive context teardown and recreation.
type Driver struct {
	root  string
	store *bytestore.Store

	mu      sync.Mutex
	files   map[string]string // path -> content hash
	changed []string
}

// NewDriver creates a driver for a context rooted at root.
func NewDriver(root string, store *bytestore.Store) *Driver {
	return &Driver{
		root:  root,
		store: store,
		files: make(map[string]string),
	}
}

// Root returns the context root this driver serves.
func (d *Driver) Root() string { return d.root }

// AddFile brings path under analysis. The content is read and stored in the
// byte store; unreadable files are tracked with an empty hash and re-read on
// the next change event.
func (d *Driver) AddFile(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[path]; ok {
		d.changeLocked(path)
		return
	}
	d.files[path] = d.hash(path)
	d.changed = append(d.changed, path)
}

// AddFileHashed brings path under analysis with an already-computed hash.
func (d *Driver) AddFileHashed(path, hash string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.files[path]; !ok {
		d.files[path] = hash
		d.changed = append(d.changed, path)
	}
}

// ChangeFile marks path as changed. The file is re-read; when the content
// hash is unchanged the event is dropped, keeping the cache valid without
// redundant recomputation.
func (d *Driver) ChangeFile(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeLocked(path)
}

func (d *Driver) changeLocked(path string) {
	prev, tracked := d.files[path]
	if !tracked {
		return
	}
	next := d.hash(path)
	if next != "" && next == prev {
		return
	}
	d.files[path] = next
	d.changed = append(d.changed, path)
}

// RemoveFile stops tracking path.
func (d *Driver) RemoveFile(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.files, path)
}

// hash reads and stores the file content, returning its key.
func (d *Driver) hash(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return d.store.Put(data)
}

// KnownFiles returns the tracked file paths.
func (d *Driver) KnownFiles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.files))
	for path := range d.files {
		out = append(out, path)
	}
	return out
}

// ContentHash returns the tracked content hash for path.
func (d *Driver) ContentHash(path string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.files[path]
	return h, ok
}

// TakeChanged drains the changed-file queue.
func (d *Driver) TakeChanged() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.changed
	d.changed = nil
	return out
}
