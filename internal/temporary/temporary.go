// Package temporary tracks files and directories that must not outlive the
// process unless explicitly kept.
package temporary

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/five82/ab-av1/internal/logging"
)

// Kind distinguishes registered files from directories.
type Kind int

const (
	File Kind = iota
	Dir
)

// Registry is a mutex-guarded set of temporary paths.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Kind
	order   []string
}

// NewRegistry creates an empty registry. Most callers use the process-wide
// registry through the package functions.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Kind)}
}

var global = NewRegistry()

// Add registers path for deletion. Register before the producing process is
// spawned so a cancellation cannot leave it behind.
func (r *Registry) Add(path string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[path]; !ok {
		r.order = append(r.order, path)
	}
	r.entries[path] = kind
}

// Commit keeps path on exit.
func (r *Registry) Commit(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, path)
}

// Registered reports whether path is still scheduled for deletion.
func (r *Registry) Registered(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[path]
	return ok
}

// Remove deletes path now and forgets it. Unregistered paths are removed
// as files.
func (r *Registry) Remove(path string) error {
	r.mu.Lock()
	kind, ok := r.entries[path]
	delete(r.entries, path)
	r.mu.Unlock()
	if !ok {
		kind = File
	}
	return removePath(path, kind)
}

// Clean deletes every registered path. Files go first, then directories in
// reverse registration order. With keep set, nothing is deleted but the
// registry is still drained. Clean is idempotent.
func (r *Registry) Clean(keep bool) {
	r.mu.Lock()
	var files, dirs []string
	for i := len(r.order) - 1; i >= 0; i-- {
		p := r.order[i]
		kind, ok := r.entries[p]
		if !ok {
			continue
		}
		if kind == Dir {
			dirs = append(dirs, p)
		} else {
			files = append(files, p)
		}
	}
	r.entries = make(map[string]Kind)
	r.order = nil
	r.mu.Unlock()

	if keep {
		return
	}
	log := logging.Component("temporary")
	for _, p := range files {
		if err := removePath(p, File); err != nil {
			log.Warn("failed to remove temporary file", "path", p, "error", err)
		}
	}
	for _, p := range dirs {
		if err := removePath(p, Dir); err != nil {
			log.Warn("failed to remove temporary directory", "path", p, "error", err)
		}
	}
}

func removePath(path string, kind Kind) error {
	var err error
	if kind == Dir {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Add registers path in the process-wide registry.
func Add(path string, kind Kind) { global.Add(path, kind) }

// Commit keeps path in the process-wide registry.
func Commit(path string) { global.Commit(path) }

// Remove deletes one path from the process-wide registry now.
func Remove(path string) error { return global.Remove(path) }

// Clean drains the process-wide registry.
func Clean(keep bool) { global.Clean(keep) }

// Global returns the process-wide registry.
func Global() *Registry { return global }

// ProcessDir creates a run-scoped working directory ".ab-av1-<id>" inside
// base and registers it. An empty base uses the current directory.
func (r *Registry) ProcessDir(base string) (string, error) {
	if base == "" {
		base = "."
	}
	id := uuid.NewString()[:8]
	dir := filepath.Join(base, ".ab-av1-"+id)
	r.Add(dir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.Commit(dir)
		return "", fmt.Errorf("failed to create temp dir %s: %w", dir, err)
	}
	return dir, nil
}

// ProcessDir creates a working directory in the process-wide registry.
func ProcessDir(base string) (string, error) { return global.ProcessDir(base) }
