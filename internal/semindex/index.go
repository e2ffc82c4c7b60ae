package semindex

import (
	"fmt"

	"github.com/ternarybob/arbor"
)

// Index is the semantic index's public entry point: the source-driven
// resolver that answers completion and definition queries without any
// compiler involvement. One Index is shared by the whole server; its
// Cache amortizes repeated scans of the same files across requests.
type Index struct {
	cache    *Cache
	loader   Loader
	resolver *Resolver
	log      arbor.ILogger
}

// New returns an Index backed by loader (typically the VFS overlay
// loader), logging via log.
func New(loader Loader, log arbor.ILogger) *Index {
	cache := NewCache()
	idx := &Index{cache: cache, loader: loader, log: log}
	idx.resolver = NewResolver(cache, loader, idx.fileItems)
	return idx
}

// Invalidate drops path from the file cache; called when the VFS
// reports path changed.
func (idx *Index) Invalidate(path string) {
	idx.cache.Invalidate(path)
}

func (idx *Index) fileItems(path string) ([]Match, error) {
	raw, masked, err := idx.cache.Get(idx.loader, path)
	if err != nil {
		return nil, err
	}
	items := ExtractTopLevelItems(raw, masked, LineOf(raw))
	for i := range items {
		items[i].FilePath = path
		items[i].Docstring = ExtractDocstring(idx.rawLineTable(raw), items[i].Row)
	}
	return items, nil
}

func (idx *Index) rawLineTable(raw string) *LineTableLike {
	lines := splitKeepEnds(raw)
	return NewLineTableAdapter(func(row int) (string, bool) {
		if row < 1 || row > len(lines) {
			return "", false
		}
		return lines[row-1], true
	})
}

func splitKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			line := s[start:i]
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			lines = append(lines, line)
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

// FindDefinition resolves the identifier at cursor in path. The
// cursor may sit mid-identifier: the characters after it are part of
// the search string too. Like racer, it searches by prefix rather than
// requiring that string to be a complete, exact identifier, and
// returns every candidate in tie-break order so the caller can take
// the first as the goto-definition target.
func (idx *Index) FindDefinition(path string, cursor int) ([]Match, error) {
	_, masked, err := idx.cache.Get(idx.loader, path)
	if err != nil {
		return nil, err
	}
	split := SplitExpression(masked, cursor)
	for end := cursor; end >= 0 && end < len(masked) && identChar(masked[end]); end++ {
		split.SearchStr += string(masked[end])
	}
	if split.SearchStr == "" {
		return nil, nil
	}

	scope := Scope{FilePath: path, Point: cursor}
	ns := Namespace(0)
	if split.Kind == CompletionField {
		ns = NSField | NSFunc
	}
	matches, err := idx.resolver.ResolvePath(scope, split, ModePrefix, ns)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		idx.logDebug("find_definition: no match for %q in %s", split.SearchStr, path)
	}
	return matches, nil
}

// CompleteFromFile returns completion candidates for the identifier
// prefix at cursor in path.
func (idx *Index) CompleteFromFile(path string, cursor int) ([]Match, error) {
	_, masked, err := idx.cache.Get(idx.loader, path)
	if err != nil {
		return nil, err
	}
	split := SplitExpression(masked, cursor)

	scope := Scope{FilePath: path, Point: cursor}
	ns := Namespace(0)
	if split.Kind == CompletionField {
		ns = NSField | NSFunc
	}
	return idx.resolver.ResolvePath(scope, split, ModePrefix, ns)
}

// FileSymbols returns every top-level item declared in path, for
// textDocument/documentSymbol and as the per-file search unit
// workspace/symbol scans over.
func (idx *Index) FileSymbols(path string) ([]Match, error) {
	return idx.fileItems(path)
}

func (idx *Index) logDebug(format string, args ...interface{}) {
	if idx.log == nil {
		return
	}
	idx.log.Debug().Msg(fmt.Sprintf(format, args...))
}
