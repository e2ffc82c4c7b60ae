// Package analysisdb implements the core-owned half of the Analysis
// Database: the in-memory handle the Action Context holds and the
// Post-Build Processor reloads into. The on-disk format the compiler
// writes is an external collaborator this package only ever reads
// from, never authors.
package analysisdb

import "sync"

// Payload is one crate's worth of semantic-analysis data as captured
// by the compiler driver. The core treats it as opaque bytes (or, for
// in-memory replay, an opaque handle); nothing in this package
// interprets the compiler's analysis format.
type Payload struct {
	CrateRoot string
	Data      []byte
	// FromDisk records whether Data was read from the compiler's
	// on-disk output directory rather than handed over in-memory,
	// which callers surface for debug introspection.
	FromDisk bool
}

// DB is the concurrency-safe crate-root -> analysis payload map the
// Action Context holds. The zero value is not usable; use New.
type DB struct {
	mu       sync.RWMutex
	payloads map[string]Payload
}

// New returns an empty analysis database.
func New() *DB {
	return &DB{payloads: make(map[string]Payload)}
}

// Reload installs payloads, replacing any existing entry for the same
// crate root. Called by the Post-Build Processor once per completed
// build.
func (db *DB) Reload(payloads []Payload) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range payloads {
		db.payloads[p.CrateRoot] = p
	}
}

// Lookup returns the payload for a crate root, if one has been loaded.
func (db *DB) Lookup(crateRoot string) (Payload, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.payloads[crateRoot]
	return p, ok
}

// CratesFor returns every crate root currently loaded, for handlers
// that need to know the analyzed universe (e.g. workspace/symbol).
func (db *DB) CratesFor() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.payloads))
	for root := range db.payloads {
		out = append(out, root)
	}
	return out
}

// Len reports how many crate roots are currently loaded, for the
// debug introspection surface.
func (db *DB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.payloads)
}
