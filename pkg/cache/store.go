package cache

import (
	"sync"

	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Store holds cache entries for all files, keyed by workspace-relative path.
// It is safe for concurrent use; workers stage results locally and commit
// with Set at the end of a file lint.
type Store struct {
	mu      sync.RWMutex
	dir     string
	enabled bool
	entries map[string]*Entry
	// raw holds archive payloads not yet decoded; a Get decodes exactly the
	// one entry it needs.
	raw map[string][]byte
}

// NewStore creates an enabled store persisting into dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:     dir,
		enabled: true,
		entries: make(map[string]*Entry),
		raw:     make(map[string][]byte),
	}
}

// Disable turns caching off; all lookups miss and Set becomes a no-op.
func (s *Store) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = false
}

// Enabled reports whether caching is active.
func (s *Store) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Get returns the entry for path, or nil.
func (s *Store) Get(path string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil
	}
	return s.getLocked(path)
}

// getLocked resolves an entry, decoding a raw archive payload on first use.
// Caller holds the write lock.
func (s *Store) getLocked(path string) *Entry {
	if e, ok := s.entries[path]; ok {
		return e
	}
	payload, ok := s.raw[path]
	if !ok {
		return nil
	}
	delete(s.raw, path)
	e, err := decodeEntry(payload)
	if err != nil {
		logging.Default().Warn("dropping corrupt cache entry",
			logging.FieldPath, path,
			logging.FieldError, err)
		return nil
	}
	s.entries[path] = e
	return e
}

// Lookup returns the cached diagnostics for a file when the entry is valid
// for the given fingerprints.
func (s *Store) Lookup(path string, contentHash, configHash Hash, ruleVersions map[string]string) ([]plugin.Diagnostic, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil, false
	}
	e := s.getLocked(path)
	if e == nil || !e.Valid(contentHash, configHash, ruleVersions) {
		return nil, false
	}
	out := make([]plugin.Diagnostic, len(e.Diagnostics))
	copy(out, e.Diagnostics)
	return out, true
}

// Set stores an entry, replacing any previous one.
func (s *Store) Set(path string, e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return
	}
	delete(s.raw, path)
	s.entries[path] = e
}

// Remove drops the entry for path.
func (s *Store) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
	delete(s.raw, path)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
	s.raw = make(map[string][]byte)
}

// Len returns the number of entries, decoded or pending.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) + len(s.raw)
}
