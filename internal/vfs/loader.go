package vfs

import "fmt"

// OverlayLoader is a file-access surface over the VFS: it answers from
// the in-memory overlay first, falling back to disk for anything the
// client hasn't opened. The server does not wire it in: the Semantic
// Index reads through handlers.NewLoader and the compiler driver
// through cmd/rls's own overlayLoader, both over the same VFS.
type OverlayLoader struct {
	vfs *VFS
}

// NewOverlayLoader wraps vfs for use as a compiler file loader.
func NewOverlayLoader(vfs *VFS) *OverlayLoader {
	return &OverlayLoader{vfs: vfs}
}

// FileContent returns the text content of path, preferring the
// overlay. Binary files are reported as an error since the compiler
// driver and semantic index both operate on source text.
func (l *OverlayLoader) FileContent(path string) (string, error) {
	res, err := l.vfs.LoadFile(path)
	if err != nil {
		return "", err
	}
	if res.Kind != KindText {
		return "", fmt.Errorf("load %s: binary file", path)
	}
	return res.Text, nil
}

// Exists reports whether path is visible to the loader, either as an
// open overlay buffer or as a file on disk.
func (l *OverlayLoader) Exists(path string) bool {
	if _, ok := l.vfs.Text(path); ok {
		return true
	}
	_, err := l.vfs.LoadFile(path)
	return err == nil
}

// IsOverlaid reports whether path currently has an open, in-memory
// buffer (as opposed to being served straight from disk).
func (l *OverlayLoader) IsOverlaid(path string) bool {
	_, ok := l.vfs.Text(path)
	return ok
}
