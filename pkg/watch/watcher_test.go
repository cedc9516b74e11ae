package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector gathers delivered events for assertion with a timeout.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) add(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) waitFor(t *testing.T, match func(Event) bool) Event {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, ev := range c.events {
			if match(ev) {
				c.mu.Unlock()
				return ev
			}
		}
		c.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("timed out waiting for event")
	return Event{}
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func startWatcher(t *testing.T, root string, skip func(string) bool) *collector {
	t.Helper()
	w, err := NewWatcher(root, 50*time.Millisecond)
	require.NoError(t, err)
	w.ShouldSkipDir = skip

	col := &collector{}
	w.OnEvent(col.add)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give registration a moment before the test mutates the tree.
	time.Sleep(100 * time.Millisecond)
	return col
}

func TestWatcherDeliversCreate(t *testing.T) {
	root := t.TempDir()
	col := startWatcher(t, root, nil)

	path := filepath.Join(root, "a.sk")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	// The create is often followed by the content write within the debounce
	// window; either op is acceptable, a remove is not.
	ev := col.waitFor(t, func(ev Event) bool { return ev.Path == path })
	assert.NotEqual(t, OpRemove, ev.Op)
}

func TestWatcherDeliversRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.sk")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	col := startWatcher(t, root, nil)
	require.NoError(t, os.Remove(path))

	ev := col.waitFor(t, func(ev Event) bool {
		return ev.Path == path && ev.Op == OpRemove
	})
	assert.Equal(t, OpRemove, ev.Op)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.sk")
	require.NoError(t, os.WriteFile(path, []byte("0"), 0o644))

	col := startWatcher(t, root, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('0' + i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	col.waitFor(t, func(ev Event) bool { return ev.Path == path })
	time.Sleep(200 * time.Millisecond)

	count := 0
	for _, ev := range col.snapshot() {
		if ev.Path == path {
			count++
		}
	}
	assert.Equal(t, 1, count, "rapid writes collapse into one debounced event")
}

func TestWatcherSeesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	col := startWatcher(t, root, nil)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "b.sk")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ev := col.waitFor(t, func(ev Event) bool { return ev.Path == path })
	assert.NotEqual(t, OpRemove, ev.Op)
}

func TestWatcherSkipsPrunedDirectories(t *testing.T) {
	root := t.TempDir()
	hidden := filepath.Join(root, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0o755))

	col := startWatcher(t, root, func(path string) bool {
		return filepath.Base(path) == ".cache"
	})

	inHidden := filepath.Join(hidden, "x.sk")
	visible := filepath.Join(root, "y.sk")
	require.NoError(t, os.WriteFile(inHidden, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(visible, []byte("y"), 0o644))

	col.waitFor(t, func(ev Event) bool { return ev.Path == visible })
	for _, ev := range col.snapshot() {
		assert.NotEqual(t, inHidden, ev.Path, "pruned directory must stay silent")
	}
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "modify", OpModify.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "unknown", Op(9).String())
}
