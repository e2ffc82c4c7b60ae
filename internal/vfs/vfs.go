// Package vfs implements the Virtual File System: an in-memory overlay
// of text buffers keyed by absolute path, with per-file dirty-version
// tracking. It is the component the compiler driver's file loader
// consults before falling back to disk, and the component protocol
// notification handlers mutate on didOpen/didChange/didSave.
package vfs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"unicode/utf8"

	"github.com/ternarybob/rls/internal/fileutil"
)

// Version is a per-file, monotonically increasing edit counter.
type Version uint64

type entry struct {
	text      string
	version   Version
	lineTable *LineTable // lazy, invalidated on replace
}

// VFS is the in-memory text buffer overlay. Zero value is not usable;
// use New.
type VFS struct {
	mu    sync.RWMutex
	files map[string]*entry
}

// New creates an empty VFS.
func New() *VFS {
	return &VFS{files: make(map[string]*entry)}
}

// Open installs text as the buffer for path, replacing any previous
// content and resetting its version to 1.
func (v *VFS) Open(path, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[path] = &entry{text: text, version: 1}
}

// Set replaces the buffer for path outright (equivalent to didOpen for
// an already-open file), bumping its version.
func (v *VFS) Set(path, text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.files[path]; ok {
		v.files[path] = &entry{text: text, version: e.version + 1}
		return
	}
	v.files[path] = &entry{text: text, version: 1}
}

// Saved records that path's current buffer has been written to disk.
// It does not change the buffer content or version; callers that track
// "dirty since last build" compare against the version observed at
// build start, not against save events.
func (v *VFS) Saved(path string) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	// No-op on content: presence is enough to confirm the path is
	// tracked. Kept as an explicit method (rather than folded into Set)
	// because didSave and didChange are distinct wire notifications
	// with distinct ordering guarantees at the dispatcher.
	_ = v.files[path]
}

// Close drops path from the overlay (e.g. on didClose), so later loads
// fall back to disk.
func (v *VFS) Close(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.files, path)
}

// Version returns the current version of path and whether it is
// tracked in the overlay at all.
func (v *VFS) Version(path string) (Version, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.files[path]
	if !ok {
		return 0, false
	}
	return e.version, true
}

// Text returns the raw text of path, if open.
func (v *VFS) Text(path string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.files[path]
	if !ok {
		return "", false
	}
	return e.text, true
}

// LineTable returns the (lazily built, cached) line table for path.
func (v *VFS) LineTable(path string) (*LineTable, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.files[path]
	if !ok {
		return nil, false
	}
	if e.lineTable == nil {
		e.lineTable = NewLineTable(e.text)
	}
	return e.lineTable, true
}

// AddFile is a batch change that creates a new overlay entry.
type AddFile struct {
	Path string
	Text string
}

// ReplaceText is a batch change that replaces the text within Span
// with NewText. RangeLength is the UTF-16 code-unit length the client
// claims Span covers; it must match the actual UTF-16 length of the
// text currently spanning Span or the change is rejected.
type ReplaceText struct {
	Path        string
	Span        Range
	RangeLength int
	NewText     string
}

// Range is a half-open span expressed in wire Positions.
type Range struct {
	Start Position
	End   Position
}

// Change is implemented by AddFile and ReplaceText.
type Change interface{ changePath() string }

func (a AddFile) changePath() string     { return a.Path }
func (r ReplaceText) changePath() string { return r.Path }

// ApplyChanges applies a batch of changes atomically: either every
// change in the batch is applied, or none are (on the first
// validation failure, the VFS is left as it was before the call).
func (v *VFS) ApplyChanges(changes []Change) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	// Validate every change first so the batch is all-or-nothing.
	for _, c := range changes {
		if rt, ok := c.(ReplaceText); ok {
			e, ok := v.files[rt.Path]
			if !ok {
				return fmt.Errorf("apply changes: %s is not open", rt.Path)
			}
			lt := e.lineTable
			if lt == nil {
				lt = NewLineTable(e.text)
			}
			start, ok := lt.PositionToPoint(rt.Span.Start)
			if !ok {
				return fmt.Errorf("apply changes: %s: out-of-range start position", rt.Path)
			}
			end, ok := lt.PositionToPoint(rt.Span.End)
			if !ok {
				return fmt.Errorf("apply changes: %s: out-of-range end position", rt.Path)
			}
			if end < start {
				return fmt.Errorf("apply changes: %s: end before start", rt.Path)
			}
			spanned := e.text[start:end]
			if gotLen := UTF16Len(spanned); gotLen != rt.RangeLength {
				return fmt.Errorf("apply changes: %s: range_length %d does not match spanned text (%d UTF-16 units)", rt.Path, rt.RangeLength, gotLen)
			}
		}
	}

	for _, c := range changes {
		switch change := c.(type) {
		case AddFile:
			v.files[change.Path] = &entry{text: change.Text, version: 1}
		case ReplaceText:
			e := v.files[change.Path]
			lt := e.lineTable
			if lt == nil {
				lt = NewLineTable(e.text)
			}
			start, _ := lt.PositionToPoint(change.Span.Start)
			end, _ := lt.PositionToPoint(change.Span.End)
			var buf bytes.Buffer
			buf.WriteString(e.text[:start])
			buf.WriteString(change.NewText)
			buf.WriteString(e.text[end:])
			v.files[change.Path] = &entry{text: buf.String(), version: e.version + 1}
		}
	}
	return nil
}

// Kind distinguishes a text load from a binary load.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

// LoadResult is the result of LoadFile: either Text content or a
// Binary marker so callers can skip files the semantic index and
// compiler driver cannot meaningfully consume.
type LoadResult struct {
	Kind Kind
	Text string
	Data []byte
}

// LoadFile returns the overlay content for path if open, otherwise
// reads it from disk. Non-UTF-8 content is reported as Binary rather
// than as an error.
func (v *VFS) LoadFile(path string) (LoadResult, error) {
	if text, ok := v.Text(path); ok {
		return LoadResult{Kind: KindText, Text: text}, nil
	}
	data, err := fileutil.ReadFile(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return LoadResult{Kind: KindBinary, Data: data}, nil
	}
	return LoadResult{Kind: KindText, Text: string(data)}, nil
}

// LoadLine returns the text of row (1-based) in path.
func (v *VFS) LoadLine(path string, row int) (string, error) {
	res, err := v.LoadFile(path)
	if err != nil {
		return "", err
	}
	if res.Kind != KindText {
		return "", fmt.Errorf("load line: %s is binary", path)
	}
	lt := NewLineTable(res.Text)
	line, ok := lt.LineText(row)
	if !ok {
		return "", fmt.Errorf("load line: %s has no row %d", path, row)
	}
	return line, nil
}

// GetCachedFiles returns a snapshot of every overlay entry's current
// text, keyed by absolute path.
func (v *VFS) GetCachedFiles() map[string]string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[string]string, len(v.files))
	for path, e := range v.files {
		out[path] = e.text
	}
	return out
}

// AbsPath normalizes path the way every VFS key is expected to be
// normalized: absolute and cleaned.
func AbsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
