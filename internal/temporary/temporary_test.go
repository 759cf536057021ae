package temporary

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestCleanRemovesUncommittedAndKeepsCommitted(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	sample := filepath.Join(dir, "movie.sample10+20s.mkv")
	encoded := filepath.Join(dir, "movie.sample10+20s.crf30.mkv")
	output := filepath.Join(dir, "movie.av1.mkv")
	for _, p := range []string{sample, encoded, output} {
		r.Add(p, File)
		touch(t, p)
	}
	r.Commit(output)

	r.Clean(false)

	assert.NoFileExists(t, sample)
	assert.NoFileExists(t, encoded)
	assert.FileExists(t, output)
	assert.False(t, r.Registered(sample))
}

func TestCleanIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	p := filepath.Join(dir, "a.mkv")
	r.Add(p, File)
	touch(t, p)

	r.Clean(false)
	r.Clean(false)
	assert.NoFileExists(t, p)

	// A path registered but never created is not an error.
	r.Add(filepath.Join(dir, "never-created.mkv"), File)
	r.Clean(false)
}

func TestCleanWithKeepDrainsWithoutDeleting(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	p := filepath.Join(dir, "keep.mkv")
	r.Add(p, File)
	touch(t, p)

	r.Clean(true)
	assert.FileExists(t, p)
	assert.False(t, r.Registered(p))
}

func TestProcessDirRemovedWithContents(t *testing.T) {
	r := NewRegistry()
	dir, err := r.ProcessDir(t.TempDir())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(dir), ".ab-av1-"))
	assert.DirExists(t, dir)

	inner := filepath.Join(dir, "sample.mkv")
	r.Add(inner, File)
	touch(t, inner)
	touch(t, filepath.Join(dir, "stray.log"))

	r.Clean(false)
	assert.NoDirExists(t, dir)
}

func TestRemoveDeletesImmediately(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()
	p := filepath.Join(dir, "encoded.mkv")
	r.Add(p, File)
	touch(t, p)

	require.NoError(t, r.Remove(p))
	assert.NoFileExists(t, p)
	assert.False(t, r.Registered(p))
	require.NoError(t, r.Remove(p))
}

func TestConcurrentAdd(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := filepath.Join(dir, "f"+strings.Repeat("x", i))
			r.Add(p, File)
			_ = os.WriteFile(p, []byte("x"), 0o644)
		}()
	}
	wg.Wait()

	r.Clean(false)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
