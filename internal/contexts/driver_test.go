package contexts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calitho/skiff/internal/bytestore"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDriverAddFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "alpha")

	d := NewDriver(dir, bytestore.New())
	d.AddFile(path)

	h, ok := d.ContentHash(path)
	require.True(t, ok)
	assert.Equal(t, bytestore.Hash([]byte("alpha")), h)
	assert.Equal(t, []string{path}, d.TakeChanged())
}

func TestDriverAddExistingFileIsAChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "alpha")

	d := NewDriver(dir, bytestore.New())
	d.AddFile(path)
	d.TakeChanged()

	writeFile(t, dir, "a.sk", "beta")
	d.AddFile(path)
	assert.Equal(t, []string{path}, d.TakeChanged())
}

func TestDriverChangeFileDropsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "alpha")

	d := NewDriver(dir, bytestore.New())
	d.AddFile(path)
	d.TakeChanged()

	// Touch without content change: the hash matches and the event is dropped.
	d.ChangeFile(path)
	assert.Empty(t, d.TakeChanged())

	writeFile(t, dir, "a.sk", "beta")
	d.ChangeFile(path)
	assert.Equal(t, []string{path}, d.TakeChanged())
}

func TestDriverChangeUntrackedFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "alpha")

	d := NewDriver(dir, bytestore.New())
	d.ChangeFile(path)
	assert.Empty(t, d.TakeChanged())
	_, ok := d.ContentHash(path)
	assert.False(t, ok)
}

func TestDriverRemoveFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "alpha")

	d := NewDriver(dir, bytestore.New())
	d.AddFile(path)
	d.RemoveFile(path)

	_, ok := d.ContentHash(path)
	assert.False(t, ok)
	assert.Empty(t, d.KnownFiles())
}

func TestDriverAddFileHashed(t *testing.T) {
	store := bytestore.New()
	d := NewDriver("/root", store)

	key := store.Put([]byte("content"))
	d.AddFileHashed("/root/a.sk", key)
	d.AddFileHashed("/root/a.sk", key) // idempotent

	h, ok := d.ContentHash("/root/a.sk")
	require.True(t, ok)
	assert.Equal(t, key, h)
	assert.Equal(t, []string{"/root/a.sk"}, d.TakeChanged())
}

func TestDriverSharesStoreAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.sk", "shared")
	store := bytestore.New()

	d1 := NewDriver(dir, store)
	d1.AddFile(path)
	h, ok := d1.ContentHash(path)
	require.True(t, ok)

	// A recreated driver finds the same content under the same key.
	d2 := NewDriver(dir, store)
	d2.AddFile(path)
	h2, ok := d2.ContentHash(path)
	require.True(t, ok)
	assert.Equal(t, h, h2)

	data, ok := store.Get(h)
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), data)
}
