package manager

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"mercator-hq/vigil/pkg/policy/model"
)

// Registry is a thread-safe cache of loaded policy layers keyed by
// absolute file path.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*registryEntry
	loadTime time.Time
}

type registryEntry struct {
	layer    *model.Layer
	checksum string
	loadedAt time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]*registryEntry),
		loadTime: time.Now(),
	}
}

// Get returns the cached layer for path.
func (r *Registry) Get(path string) (*model.Layer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[path]
	if !ok {
		return nil, false
	}
	return e.layer, true
}

// Put caches layer under path. data is the raw file content used for the
// registry version checksum.
func (r *Registry) Put(path string, layer *model.Layer, data []byte) {
	sum := sha256.Sum256(data)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[path] = &registryEntry{
		layer:    layer,
		checksum: hex.EncodeToString(sum[:]),
		loadedAt: time.Now(),
	}
	r.loadTime = time.Now()
}

// Invalidate drops the entry for path. It reports whether one existed.
func (r *Registry) Invalidate(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[path]
	delete(r.entries, path)
	return ok
}

// Clear drops all entries.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*registryEntry)
	r.loadTime = time.Now()
}

// Count returns the number of cached layers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Paths returns the cached paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Version returns a short hash over all cached file checksums. It changes
// whenever any cached file content changes.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return ""
	}

	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte(r.entries[p].checksum))
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// LoadTime returns the time of the last Put or Clear.
func (r *Registry) LoadTime() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadTime
}
