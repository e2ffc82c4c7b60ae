package semindex

import (
	"sort"
	"strconv"
	"strings"
)

// builtinPrimitives are always resolvable in any scope; they ground
// out path resolution without needing a prelude file.
var builtinPrimitives = []string{
	"bool", "char", "str", "f32", "f64",
	"i8", "i16", "i32", "i64", "i128", "isize",
	"u8", "u16", "u32", "u64", "u128", "usize",
}

// localBindings scans masked/raw text from the start of the enclosing
// brace block up to point, collecting `let`, `if let`, `while let`,
// `for`, and fn-argument bindings. They are gathered one keyword at a
// time (every `let`, then every `if let`, and so on, fn arguments
// last), and all of them are kept: a later binding does not hide an
// earlier one with the same name, and an `if let`/`while let` binding
// is also found by the `let ` scan. Each Match's
// Context holds the binding's declaration text, for the type
// inference field/method lookup performs off a receiver expression.
func localBindings(raw, masked string, point int) []Match {
	enclosing, ok := EnclosingBraceRange(masked, point)
	start := 0
	if ok {
		start = enclosing.Start
	}
	region := masked[start:point]

	var out []Match
	for _, kw := range []struct {
		prefix string
		kind   Kind
	}{
		{"let ", KindLet},
		{"if let ", KindIfLet},
		{"while let ", KindWhileLet},
		{"for ", KindFor},
	} {
		idx := 0
		for {
			i := strings.Index(region[idx:], kw.prefix)
			if i < 0 {
				break
			}
			pos := idx + i
			name := identAt(region, pos+len(kw.prefix))
			if name != "" {
				absStart := start + pos
				end := declEnd(masked, absStart)
				context := strings.TrimSpace(raw[min(absStart, len(raw)):min(end, len(raw))])
				out = append(out, Match{
					Name:    name,
					Point:   start + pos + len(kw.prefix),
					Kind:    kw.kind,
					Local:   true,
					Context: context,
				})
			}
			idx = pos + len(kw.prefix)
		}
	}
	out = append(out, fnArgBindings(raw, masked, point)...)
	return out
}

// declEnd finds the end of a declaration statement starting at start:
// the next top-level `;` or newline, not counting one nested inside
// `(...)`/`[...]` (so a multi-line call's arguments don't truncate
// the captured Context early).
func declEnd(masked string, start int) int {
	depth := 0
	for i := start; i < len(masked); i++ {
		switch masked[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ';':
			if depth == 0 {
				return i + 1
			}
		case '\n':
			if depth == 0 {
				return i
			}
		}
	}
	return len(masked)
}

// fnArgBindings finds the `fn` signature enclosing point (if any) and
// returns a Match for each named parameter, skipping `self`/`&self`/
// `&mut self`.
func fnArgBindings(raw, masked string, point int) []Match {
	sigStart, ok := enclosingFnSignature(masked, point)
	if !ok {
		return nil
	}
	rel := strings.IndexByte(masked[sigStart:], '(')
	if rel < 0 {
		return nil
	}
	open := sigStart + rel
	depth := 1
	closeAt := -1
	for i := open + 1; i < len(masked) && closeAt < 0; i++ {
		switch masked[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				closeAt = i
			}
		}
	}
	if closeAt < 0 {
		return nil
	}
	body := masked[open+1 : closeAt]

	var out []Match
	for _, part := range splitTopLevel(body, ',') {
		p := strings.TrimSpace(part)
		p = strings.TrimPrefix(p, "&")
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, "mut ")
		p = strings.TrimSpace(p)
		if p == "self" || p == "" {
			continue
		}
		colon := strings.IndexByte(p, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(p[:colon])
		if name == "" || !identChar(name[0]) {
			continue
		}
		offset := strings.Index(body, part)
		if offset < 0 {
			continue
		}
		namePoint := open + 1 + offset + strings.Index(part, name)
		out = append(out, Match{
			Name:    name,
			Point:   namePoint,
			Kind:    KindFnArg,
			Local:   true,
			Context: strings.TrimSpace(part),
		})
	}
	return out
}

// enclosingFnSignature walks outward through nested brace scopes from
// point looking for one whose header parses as a `fn` declaration,
// returning the byte offset where that declaration's statement
// starts.
func enclosingFnSignature(masked string, point int) (int, bool) {
	p := point
	for {
		rng, ok := EnclosingBraceRange(masked, p)
		if !ok {
			return 0, false
		}
		header := headerBefore(masked, rng.Start)
		trimmed := stripModifiers(stripVisibility(strings.TrimSpace(header)))
		if trimmed == "fn" || strings.HasPrefix(trimmed, "fn ") || strings.HasPrefix(trimmed, "fn<") {
			return currentStatementStart(masked, rng.Start), true
		}
		if rng.Start == 0 {
			return 0, false
		}
		p = rng.Start
	}
}

// identAt reads an identifier (ignoring a leading `mut `) starting at
// byte offset i in s.
func identAt(s string, i int) string {
	if strings.HasPrefix(s[i:], "mut ") {
		i += 4
	}
	j := i
	for j < len(s) && identChar(s[j]) {
		j++
	}
	if j == i {
		return ""
	}
	return s[i:j]
}

// Resolver answers lexical-scope and path-based queries against a set
// of files, using cache to avoid re-scanning.
type Resolver struct {
	cache  *Cache
	loader Loader
	// fileItems returns every top-level item Match in one file; the
	// caller (Index) supplies this since item extraction depends on
	// statement parsing that belongs to the file-level walker.
	fileItems func(path string) ([]Match, error)
}

// NewResolver returns a Resolver backed by cache/loader, using
// fileItems to enumerate a file's top-level items on demand.
func NewResolver(cache *Cache, loader Loader, fileItems func(path string) ([]Match, error)) *Resolver {
	return &Resolver{cache: cache, loader: loader, fileItems: fileItems}
}

// ResolveFirstSegment resolves the first segment of a path at scope,
// per spec.md §4.2 "Path resolution" step 1, in order: local
// bindings, module items, names brought in by a `use` declaration in
// this file, then builtins. A name matched against a `use` import
// that this source-driven index can't follow across files (an
// external crate, or a module this file doesn't itself declare)
// resolves to a KindUseAlias Match wrapping a best-effort module/crate
// placeholder rather than the imported item itself — see
// matchFromImport.
func (r *Resolver) ResolveFirstSegment(scope Scope, name string, mode SearchMode, ns Namespace) ([]Match, error) {
	raw, masked, err := r.cache.Get(r.loader, scope.FilePath)
	if err != nil {
		return nil, err
	}

	var out []Match
	for _, b := range localBindings(raw, masked, scope.Point) {
		if matchesName(b.Name, name, mode) {
			out = append(out, b)
		}
	}

	items, err := r.fileItems(scope.FilePath)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if !ns.Has(NamespaceOf(it.Kind)) && ns != 0 {
			continue
		}
		if matchesName(it.Name, name, mode) {
			out = append(out, it)
		}
	}

	imports, err := r.fileImports(scope)
	if err != nil {
		return nil, err
	}
	for _, imp := range imports {
		if imp.Glob {
			continue
		}
		importedName := imp.ImportedName
		if imp.Alias != "" {
			importedName = imp.Alias
		}
		m := matchFromImport(imp)
		if (ns == 0 || ns.Has(NamespaceOf(m.EffectiveKind()))) && matchesName(importedName, name, mode) {
			out = append(out, m)
		}
	}

	if ns == 0 || ns.Has(NSPrimitive) {
		for _, p := range builtinPrimitives {
			if matchesName(p, name, mode) {
				out = append(out, Match{Name: p, Kind: KindBuiltin})
			}
		}
	}

	return dedupeAndSort(out), nil
}

// fileImports scans scope's file for top-level `use` statements and
// expands each one's tree into its flat import list.
func (r *Resolver) fileImports(scope Scope) ([]UseImport, error) {
	_, masked, err := r.cache.Get(r.loader, scope.FilePath)
	if err != nil {
		return nil, err
	}
	var out []UseImport
	for _, stmt := range TopLevelStatements(masked) {
		header := strings.TrimSpace(masked[stmt.Start:stmt.End])
		header = stripVisibility(header)
		if !strings.HasPrefix(header, "use ") {
			continue
		}
		body := strings.TrimSpace(strings.TrimPrefix(header, "use"))
		out = append(out, ExpandUseTree(body)...)
	}
	return out, nil
}

// matchFromImport builds a placeholder Match for a name this file
// imported via `use`, wrapped in KindUseAlias per Match.Alias's
// contract. The wrapped Match's Kind is a best-effort guess (a
// single-segment path is a crate root, anything longer a module) —
// this source-driven index has no cross-file workspace map to follow
// the import to its real declaration.
func matchFromImport(imp UseImport) Match {
	name := imp.ImportedName
	if imp.Alias != "" {
		name = imp.Alias
	}
	segs := ParsePath(imp.Path)
	kind := KindModule
	if len(segs) <= 1 {
		kind = KindCrate
	}
	target := &Match{Name: lastSegment(imp.Path), Kind: kind, Context: imp.Path}
	return Match{Name: name, Kind: KindUseAlias, Alias: target, Context: imp.Path}
}

func matchesName(candidate, query string, mode SearchMode) bool {
	if mode == ModeExact {
		return candidate == query
	}
	return strings.HasPrefix(candidate, query)
}

// filterMatches narrows items to those whose name satisfies mode
// against query and whose kind is in ns (ns == 0 means unfiltered),
// then applies the usual tie-break sort/dedupe.
func filterMatches(items []Match, query string, mode SearchMode, ns Namespace) []Match {
	var out []Match
	for _, m := range items {
		if !matchesName(m.Name, query, mode) {
			continue
		}
		if ns != 0 && !ns.Has(NamespaceOf(m.EffectiveKind())) {
			continue
		}
		out = append(out, m)
	}
	return dedupeAndSort(out)
}

// dedupeAndSort sorts matches by (name, byte-offset) and removes
// duplicates keyed by (name, offset, file path), per spec's
// tie-breaking rule.
func dedupeAndSort(matches []Match) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Name != matches[j].Name {
			return matches[i].Name < matches[j].Name
		}
		return matches[i].Point < matches[j].Point
	})

	seen := make(map[string]bool, len(matches))
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		key := m.Name + "\x00" + m.FilePath + "\x00" + strconv.Itoa(m.Point)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
