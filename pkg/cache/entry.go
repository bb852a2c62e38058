// Package cache provides file- and block-level memoization of lint results,
// keyed by content, configuration, and rule-version fingerprints, with an
// on-disk archive that survives runs.
package cache

import (
	"time"

	"github.com/zeebo/blake3"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Hash is a 32-byte BLAKE3 content fingerprint.
type Hash [32]byte

// HashBytes fingerprints a byte slice.
func HashBytes(data []byte) Hash {
	return blake3.Sum256(data)
}

// HashString fingerprints a string.
func HashString(s string) Hash {
	return blake3.Sum256([]byte(s))
}

// BlockEntry caches the diagnostics of one top-level document block.
type BlockEntry struct {
	// Hash fingerprints the block's source bytes.
	Hash Hash `msgpack:"hash"`
	// Span is the block's byte range at the time it was cached.
	Span ast.Span `msgpack:"span"`
	// Diagnostics are the block-isolated findings whose spans fall inside
	// Span.
	Diagnostics []plugin.Diagnostic `msgpack:"diagnostics"`
}

// Entry is the cached lint result of one file.
type Entry struct {
	ContentHash  Hash                `msgpack:"content_hash"`
	ConfigHash   Hash                `msgpack:"config_hash"`
	RuleVersions map[string]string   `msgpack:"rule_versions"`
	Diagnostics  []plugin.Diagnostic `msgpack:"diagnostics"`
	Blocks       []BlockEntry        `msgpack:"blocks"`
	CreatedAt    int64               `msgpack:"created_at"`
}

// NewEntry creates an entry stamped with the current time.
func NewEntry(contentHash, configHash Hash, ruleVersions map[string]string,
	diagnostics []plugin.Diagnostic, blocks []BlockEntry) *Entry {
	return &Entry{
		ContentHash:  contentHash,
		ConfigHash:   configHash,
		RuleVersions: ruleVersions,
		Diagnostics:  diagnostics,
		Blocks:       blocks,
		CreatedAt:    time.Now().Unix(),
	}
}

// Valid reports whether the entry still applies: all three of content hash,
// config hash, and the rule-version map must match exactly.
func (e *Entry) Valid(contentHash, configHash Hash, ruleVersions map[string]string) bool {
	if e.ContentHash != contentHash || e.ConfigHash != configHash {
		return false
	}
	if len(e.RuleVersions) != len(ruleVersions) {
		return false
	}
	for name, version := range e.RuleVersions {
		if ruleVersions[name] != version {
			return false
		}
	}
	return true
}
