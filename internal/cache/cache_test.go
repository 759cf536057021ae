package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/five82/ab-av1/internal/errors"
)

type entry struct {
	Score       float64       `json:"score"`
	EncodedSize uint64        `json:"encoded_size"`
	EncodeTime  time.Duration `json:"encode_time"`
}

func testIdentity() Identity {
	return Identity{
		FileName:      "movie.sample60+20s.mkv",
		InputDuration: 3600 * time.Second,
		InputExt:      "mkv",
		InputSize:     4 << 30,
	}
}

func TestKeyDeterministic(t *testing.T) {
	fp := []byte("libsvtav1 crf 32")
	a := Key(testIdentity(), fp)
	b := Key(testIdentity(), fp)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestKeyChangesWithEveryField(t *testing.T) {
	fp := []byte("fp")
	base := Key(testIdentity(), fp)

	mutations := map[string]func(*Identity){
		"file name": func(id *Identity) { id.FileName = "movie.sample120+20s.mkv" },
		"duration":  func(id *Identity) { id.InputDuration += time.Millisecond },
		"extension": func(id *Identity) { id.InputExt = "mp4" },
		"size":      func(id *Identity) { id.InputSize++ },
		"full pass": func(id *Identity) { id.FullPass = true },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			id := testIdentity()
			mutate(&id)
			assert.NotEqual(t, base, Key(id, fp))
		})
	}
	assert.NotEqual(t, base, Key(testIdentity(), []byte("fp2")))
}

func TestStoreRoundTrip(t *testing.T) {
	s, err := Open(t.Context(), t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	key := Key(testIdentity(), []byte("fp"))
	var got entry
	assert.False(t, s.Get(key, &got), "empty store must miss")

	want := entry{Score: 95.3, EncodedSize: 1234, EncodeTime: 3 * time.Second}
	s.Put(key, want)

	require.True(t, s.Get(key, &got))
	assert.Equal(t, want, got)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(t.Context(), dir)
	require.NoError(t, err)
	s.Put("k", entry{Score: 90})
	require.NoError(t, s.Close())

	s, err = Open(t.Context(), dir)
	require.NoError(t, err)
	defer s.Close()

	var got entry
	require.True(t, s.Get("k", &got))
	assert.Equal(t, 90.0, got.Score)
}

func TestNilStoreIsDisabled(t *testing.T) {
	var s *Store
	var got entry
	assert.False(t, s.Get("k", &got))
	s.Put("k", entry{})
	assert.NoError(t, s.Close())
}

func TestOpenGivesUpWhileLocked(t *testing.T) {
	dir := t.TempDir()
	held, err := Open(t.Context(), dir)
	require.NoError(t, err)
	defer held.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = Open(ctx, dir)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindCache))
	assert.Less(t, time.Since(start), 3*time.Second)
}
