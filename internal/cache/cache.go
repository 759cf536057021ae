// Package cache persists sample-encode results across runs.
package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dgraph-io/badger/v4"
	"lukechampine.com/blake3"

	"github.com/five82/ab-av1/internal/errors"
	"github.com/five82/ab-av1/internal/logging"
)

const (
	// openTimeout bounds how long Open waits for another process to release
	// the directory lock.
	openTimeout = 2 * time.Second

	valueLogFileSize = 16 << 20
)

// DefaultDir returns <UserCacheDir>/ab-av1/sample-encode-cache.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", errors.NewCacheError("no user cache directory", err)
	}
	return filepath.Join(base, "ab-av1", "sample-encode-cache"), nil
}

// Identity describes the sample whose result is cached.
type Identity struct {
	// FileName is the sample's file name, which encodes input stem, start
	// and length.
	FileName      string
	InputDuration time.Duration
	InputExt      string
	InputSize     uint64
	FullPass      bool
}

// Key returns the hex BLAKE3 hash of the identity followed by fingerprint.
func Key(id Identity, fingerprint []byte) string {
	h := blake3.New(32, nil)
	var n [8]byte
	writeBytes := func(b []byte) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(b)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(b)
	}
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(n[:], v)
		_, _ = h.Write(n[:])
	}

	writeBytes([]byte(id.FileName))
	writeUint(math.Float64bits(id.InputDuration.Seconds()))
	writeBytes([]byte(id.InputExt))
	writeUint(id.InputSize)
	if id.FullPass {
		writeUint(1)
	} else {
		writeUint(0)
	}
	writeBytes(fingerprint)

	return hex.EncodeToString(h.Sum(nil))
}

// Store is a badger-backed key/value cache. A nil *Store is a disabled
// cache: reads miss and writes are dropped.
type Store struct {
	mu  sync.Mutex
	db  *badger.DB
	log *logging.Logger
}

// Open opens or creates the store at dir. While another process holds the
// directory lock the open is retried with backoff for up to two seconds.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCacheError("failed to create cache directory", err)
	}
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithValueLogFileSize(valueLogFileSize)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	db, err := backoff.Retry(ctx, func() (*badger.DB, error) {
		return badger.Open(opts)
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(openTimeout))
	if err != nil {
		return nil, errors.NewCacheError("failed to open cache "+dir, err)
	}
	return &Store{db: db, log: logging.Component("cache")}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get decodes the value stored under key into out and reports whether it
// was found. Failures are logged and count as a miss.
func (s *Store) Get(key string, out any) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return false
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		if !stderrors.Is(err, badger.ErrKeyNotFound) {
			s.log.Warn("cache read failed", "key", key, "error", err)
		}
		return false
	}
	return true
}

// Put stores v under key. Failures are logged.
func (s *Store) Put(key string, v any) {
	if s == nil {
		return
	}
	buf, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), buf)
	})
	if err != nil {
		s.log.Warn("cache write failed", "key", key, "error", err)
	}
}

var (
	sharedMu     sync.Mutex
	shared       *Store
	sharedOpened bool
)

// Shared returns the process-wide store, opening it in the default
// directory on first use. If it cannot be opened the cache is disabled for
// the rest of the run and nil is returned.
func Shared(ctx context.Context) *Store {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedOpened {
		return shared
	}
	sharedOpened = true

	dir, err := DefaultDir()
	if err == nil {
		shared, err = Open(ctx, dir)
	}
	if err != nil {
		logging.Component("cache").Warn("sample-encode cache disabled", "error", err)
		shared = nil
	}
	return shared
}

// CloseShared closes the process-wide store if it was opened.
func CloseShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		if err := shared.Close(); err != nil {
			logging.Component("cache").Warn("failed to close cache", "error", err)
		}
	}
	shared = nil
	sharedOpened = false
}
