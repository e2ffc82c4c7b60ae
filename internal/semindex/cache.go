package semindex

import (
	"strconv"
	"sync"
)

// Loader is the minimal file-access surface the cache needs; the VFS
// overlay loader satisfies it.
type Loader interface {
	FileContent(path string) (string, error)
}

// cachedFile holds both representations of a source file: the raw
// text as loaded, and its masked form (comments/strings blanked).
type cachedFile struct {
	raw    string
	masked string
}

// Cache is the per-session file cache: raw and masked text keyed by
// path, backed by the VFS-driven Loader on miss, plus a store of
// whitespace-normalized generic-impl headers keyed by path and
// impl-block start. Lookups do not read the stored headers back:
// membersOfType re-scans and re-parses the impl blocks on every call.
type Cache struct {
	mu    sync.RWMutex
	files map[string]*cachedFile

	implMu   sync.RWMutex
	implHdrs map[string]string // key: "path@point" -> resolved header text
}

// NewCache returns an empty Cache backed by loader.
func NewCache() *Cache {
	return &Cache{
		files:    make(map[string]*cachedFile),
		implHdrs: make(map[string]string),
	}
}

// Get returns the raw and masked text for path, loading and masking
// it via loader on first access.
func (c *Cache) Get(loader Loader, path string) (raw, masked string, err error) {
	c.mu.RLock()
	if f, ok := c.files[path]; ok {
		c.mu.RUnlock()
		return f.raw, f.masked, nil
	}
	c.mu.RUnlock()

	text, err := loader.FileContent(path)
	if err != nil {
		return "", "", err
	}
	m := Mask(text)

	c.mu.Lock()
	c.files[path] = &cachedFile{raw: text, masked: m}
	c.mu.Unlock()

	return text, m, nil
}

// Invalidate drops path from the cache, forcing the next Get to
// reload and re-mask it. Called when the VFS reports a new version
// for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.files, path)
	c.mu.Unlock()
}

// GenericImplHeader returns a cached resolved generic-impl header for
// (path, point), and whether it was present.
func (c *Cache) GenericImplHeader(path string, point int) (string, bool) {
	c.implMu.RLock()
	defer c.implMu.RUnlock()
	v, ok := c.implHdrs[implKey(path, point)]
	return v, ok
}

// SetGenericImplHeader stores a resolved generic-impl header for
// (path, point).
func (c *Cache) SetGenericImplHeader(path string, point int, header string) {
	c.implMu.Lock()
	defer c.implMu.Unlock()
	c.implHdrs[implKey(path, point)] = header
}

func implKey(path string, point int) string {
	return path + "@" + strconv.Itoa(point)
}
