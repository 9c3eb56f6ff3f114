package fdiff

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOSStorage(t *testing.T) (*OSStorage, string) {
	t.Helper()
	dir := t.TempDir()
	pr, err := NewPathResolver(dir)
	require.NoError(t, err)
	return NewOSStorage(pr), dir
}

func TestOSStorageReadWrite(t *testing.T) {
	store, dir := newTestOSStorage(t)

	assert.False(t, store.Exists("sub/a.txt"))
	require.NoError(t, store.MkdirParents("sub/a.txt"))
	require.NoError(t, store.Write("sub/a.txt", "hello\n"))
	assert.True(t, store.Exists("sub/a.txt"))

	content, err := store.Read("sub/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", content)

	raw, err := os.ReadFile(filepath.Join(dir, "sub", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(raw))

	_, err = store.Read("sub")
	assert.Error(t, err)
}

func TestOSStoragePreservesMode(t *testing.T) {
	store, dir := newTestOSStorage(t)
	path := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

	require.NoError(t, store.Write("run.sh", "#!/bin/sh\necho hi\n"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestOSStorageRemove(t *testing.T) {
	store, _ := newTestOSStorage(t)
	require.NoError(t, store.Write("a.txt", "x"))

	require.NoError(t, store.Remove("a.txt"))
	assert.False(t, store.Exists("a.txt"))
	require.NoError(t, store.Remove("a.txt"))
}

func TestPathResolver(t *testing.T) {
	dir := t.TempDir()
	pr, err := NewPathResolver(dir)
	require.NoError(t, err)

	abs := pr.Resolve("a/b.go")
	assert.Equal(t, filepath.Join(dir, "a", "b.go"), abs)
	assert.Equal(t, filepath.Join("a", "b.go"), pr.Rel(abs))
	assert.Equal(t, filepath.Clean("/etc/hosts"), pr.Resolve("/etc/hosts"))
}

func TestBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := []byte("some file content\n")
	hash := HashContent(string(content))

	require.NoError(t, WriteBlob(dir, hash, content))
	got, err := ReadBlob(dir, hash)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	empty, err := ReadBlob(dir, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStorage(t *testing.T) {
	src := map[string]string{"./a.txt": "a"}
	store := NewMemoryStorage(src)
	src["a.txt"] = "mutated"

	content, err := store.Read("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a", content)

	_, err = store.Read("missing.txt")
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, store.Write("dir/b.txt", "b"))
	require.NoError(t, store.Remove("a.txt"))
	assert.Equal(t, map[string]string{"dir/b.txt": "b"}, store.Files())
	assert.Error(t, store.Write("", "x"))
}

func TestMemoryStorageConcurrentWrites(t *testing.T) {
	store := NewMemoryStorage(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := filepath.Join("f", string(rune('a'+i)))
			assert.NoError(t, store.Write(name, name))
			_, _ = store.Read(name)
		}()
	}
	wg.Wait()
	assert.Len(t, store.Files(), 20)
}
