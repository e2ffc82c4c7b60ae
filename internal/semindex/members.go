package semindex

import "strings"

// ResolvePath resolves a full split expression per spec.md §4.2
// "Path resolution" steps 1-3: the first segment is resolved at
// scope (ResolveFirstSegment), then each subsequent segment is
// resolved relative to the previous segment's match, narrowed to that
// match's members (a module's items, a type's fields and methods),
// before the final segment is searched by mode/ns. A bare expression
// with no Context (split.Context == "") falls straight through to
// ResolveFirstSegment.
func (r *Resolver) ResolvePath(scope Scope, split SplitResult, mode SearchMode, ns Namespace) ([]Match, error) {
	segs := contextSegments(split.Context)
	if len(segs) == 0 {
		return r.ResolveFirstSegment(scope, split.SearchStr, mode, ns)
	}

	cur, ok, err := r.resolveBase(scope, segs[0])
	if err != nil || !ok {
		return nil, err
	}
	for _, seg := range segs[1:] {
		next, err := r.membersOf(scope, cur, seg, ModeExact, 0)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			return nil, nil
		}
		cur = next[0]
	}
	return r.membersOf(scope, cur, split.SearchStr, mode, ns)
}

// contextSegments splits a path/field-access prefix on both `::` and
// `.` in left-to-right order, so `a::b.c` and `foo.bar.baz` both
// yield their component segments. Rust source doesn't actually mix
// the two separators in one expression in the cases this index
// cares about, but the scan doesn't need to assume that.
func contextSegments(context string) []string {
	if context == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(context); i++ {
		switch {
		case context[i] == ':' && i+1 < len(context) && context[i+1] == ':':
			segs = append(segs, context[start:i])
			i++
			start = i + 1
		case context[i] == '.':
			segs = append(segs, context[start:i])
			start = i + 1
		}
	}
	segs = append(segs, context[start:])

	out := segs[:0]
	for _, s := range segs {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// resolveBase resolves a path's first segment to a single Match,
// special-casing `self`/`Self` (which name the enclosing impl's
// target type rather than anything `use`-imported or locally bound).
func (r *Resolver) resolveBase(scope Scope, name string) (Match, bool, error) {
	if name == "self" || name == "Self" {
		typeName, err := r.enclosingSelfType(scope)
		if err != nil || typeName == "" {
			return Match{}, false, err
		}
		return Match{Name: typeName, Kind: KindStruct, FilePath: scope.FilePath}, true, nil
	}
	matches, err := r.ResolveFirstSegment(scope, name, ModeExact, 0)
	if err != nil || len(matches) == 0 {
		return Match{}, false, err
	}
	return matches[0], true, nil
}

// membersOf returns the members of a resolved match that seg can
// name: a module's or crate's items, or a value/type's fields and
// methods (struct fields plus every inherent-impl and trait-impl
// method targeting that type).
func (r *Resolver) membersOf(scope Scope, m Match, seg string, mode SearchMode, ns Namespace) ([]Match, error) {
	switch m.EffectiveKind() {
	case KindModule:
		var items []Match
		var err error
		if m.Kind != KindUseAlias {
			// A real nested `mod name { ... }` found in this file:
			// its Point is the name token, so the body can be
			// located and scanned directly.
			items, err = r.moduleItems(scope.FilePath, m.Point)
			if err != nil {
				return nil, err
			}
		}
		if items == nil {
			// Either a `use`-imported module alias (no in-file
			// Point to scan from) or a `mod name;` declaration with
			// no body in this file: fall back to this file's own
			// items, since flat single-file layouts are common in
			// the corpus this index targets.
			items, err = r.fileItems(scope.FilePath)
			if err != nil {
				return nil, err
			}
		}
		return filterMatches(items, seg, mode, ns), nil

	case KindCrate:
		items, err := r.fileItems(scope.FilePath)
		if err != nil {
			return nil, err
		}
		return filterMatches(items, seg, mode, ns), nil

	case KindStruct, KindEnum, KindUnion, KindTrait, KindType:
		items, err := r.membersOfType(scope.FilePath, m.Name)
		if err != nil {
			return nil, err
		}
		return filterMatches(items, seg, mode, ns), nil

	case KindLet, KindIfLet, KindWhileLet, KindFor, KindFnArg, KindStructField:
		typeName := inferDeclType(m.Context)
		if typeName == "" {
			return nil, nil
		}
		items, err := r.membersOfType(scope.FilePath, typeName)
		if err != nil {
			return nil, err
		}
		return filterMatches(items, seg, mode, ns), nil

	default:
		return nil, nil
	}
}

// moduleItems returns the items declared inside a `mod name { ... }`
// block whose name token sits at modPoint in path, or nil if modPoint
// names an out-of-file `mod name;` declaration this index can't
// follow.
func (r *Resolver) moduleItems(path string, modPoint int) ([]Match, error) {
	raw, masked, err := r.cache.Get(r.loader, path)
	if err != nil {
		return nil, err
	}
	body, ok := moduleBodyRange(masked, modPoint)
	if !ok {
		return nil, nil
	}
	lineOf := LineOf(raw)
	sub := masked[body.Start:body.End]
	subRaw := raw[min(body.Start, len(raw)):min(body.End, len(raw))]
	items := ExtractTopLevelItems(subRaw, sub, func(point int) (int, int) {
		return lineOf(point + body.Start)
	})
	for i := range items {
		items[i].Point += body.Start
		items[i].FilePath = path
	}
	return items, nil
}

// moduleBodyRange scans forward from a `mod` item's name token to its
// `{`, then finds the matching `}`, returning the (start, end) of the
// body in between. ok is false for `mod name;` declarations, which
// have no body in this file.
func moduleBodyRange(masked string, namePoint int) (Statement, bool) {
	i := namePoint
	for i < len(masked) && masked[i] != '{' && masked[i] != ';' {
		i++
	}
	if i >= len(masked) || masked[i] != '{' {
		return Statement{}, false
	}
	start := i + 1
	depth := 1
	for j := start; j < len(masked); j++ {
		switch masked[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Statement{Start: start, End: j}, true
			}
		}
	}
	return Statement{}, false
}

// membersOfType returns typeName's struct fields plus every method
// declared in an impl block (inherent or trait) targeting typeName,
// scanning path's top-level statements. The header of each generic
// impl it meets is stored in the resolver's Cache; nothing here reads
// it back, so every call parses each impl header again.
func (r *Resolver) membersOfType(path, typeName string) ([]Match, error) {
	raw, masked, err := r.cache.Get(r.loader, path)
	if err != nil {
		return nil, err
	}
	lineOf := LineOf(raw)

	var out []Match
	for _, stmt := range TopLevelStatements(masked) {
		header := strings.TrimSpace(masked[stmt.Start:stmt.End])

		if kw, name, ok := classifyItem(header); ok && kw == KindStruct && name == typeName {
			out = append(out, structFieldMatches(masked, stmt, lineOf)...)
			continue
		}

		if implName, ok := implTargetType(header); ok && implName == typeName {
			if strings.Contains(header, "<") {
				r.genericImplHeader(path, stmt.Start, header)
			}
			out = append(out, implMethodMatches(raw, masked, stmt, lineOf)...)
		}
	}
	for i := range out {
		out[i].FilePath = path
	}
	return out, nil
}

// genericImplHeader returns a whitespace-normalized form of a
// generic impl block's header, memoizing it in the Cache keyed by
// (path, impl-block start) so a second lookup against the same impl
// within this session is a cache hit instead of a re-parse.
func (r *Resolver) genericImplHeader(path string, implStart int, header string) string {
	if cached, ok := r.cache.GenericImplHeader(path, implStart); ok {
		return cached
	}
	normalized := strings.Join(strings.Fields(header), " ")
	r.cache.SetGenericImplHeader(path, implStart, normalized)
	return normalized
}

// structFieldMatches extracts a struct's named fields from its
// statement range (`struct Name { a: T, b: U }`); tuple and unit
// structs have no named fields and return nil.
func structFieldMatches(masked string, stmt Statement, lineOf func(int) (int, int)) []Match {
	text := masked[stmt.Start:stmt.End]
	open := strings.IndexByte(text, '{')
	closeIdx := strings.LastIndexByte(text, '}')
	if open < 0 || closeIdx < 0 || closeIdx <= open {
		return nil
	}
	body := text[open+1 : closeIdx]

	var out []Match
	for _, part := range splitTopLevel(body, ',') {
		field := stripVisibility(strings.TrimSpace(part))
		colon := strings.IndexByte(field, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(field[:colon])
		if name == "" || !identChar(name[0]) {
			continue
		}
		partOffset := strings.Index(body, part)
		if partOffset < 0 {
			continue
		}
		namePoint := stmt.Start + open + 1 + partOffset + strings.Index(part, name)
		row, col := lineOf(namePoint)
		out = append(out, Match{
			Name:    name,
			Point:   namePoint,
			Row:     row,
			Col:     col,
			Kind:    KindStructField,
			Context: strings.TrimSpace(part),
		})
	}
	return out
}

// implMethodMatches extracts the fn items declared directly inside an
// impl block's body, reclassifying them as KindMethod.
func implMethodMatches(raw, masked string, stmt Statement, lineOf func(int) (int, int)) []Match {
	text := masked[stmt.Start:stmt.End]
	open := strings.IndexByte(text, '{')
	if open < 0 {
		return nil
	}
	bodyStart := stmt.Start + open + 1
	bodyEnd := stmt.End - 1
	if bodyEnd <= bodyStart {
		return nil
	}
	sub := masked[bodyStart:bodyEnd]
	subRaw := raw[min(bodyStart, len(raw)):min(bodyEnd, len(raw))]

	items := ExtractTopLevelItems(subRaw, sub, func(point int) (int, int) {
		return lineOf(point + bodyStart)
	})
	for i := range items {
		items[i].Point += bodyStart
		if items[i].Kind == KindFunction {
			items[i].Kind = KindMethod
		}
	}
	return items
}

// implTargetType parses an `impl<T: Bound> Trait for Type<T>` or
// `impl<T> Type<T>` header and returns the Self type's name. header
// may be the whole impl statement including its body; only the
// signature up to the first `{` is examined, so a ` for ` inside a
// nested for-loop in the body can't be mistaken for the trait-impl
// separator.
func implTargetType(header string) (string, bool) {
	if brace := strings.IndexByte(header, '{'); brace >= 0 {
		header = header[:brace]
	}
	header = stripModifiers(strings.TrimSpace(header))
	if header != "impl" && !strings.HasPrefix(header, "impl ") && !strings.HasPrefix(header, "impl<") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(header, "impl"))
	rest = stripGenericParams(rest)
	if idx := strings.Index(rest, " for "); idx >= 0 {
		rest = rest[idx+len(" for "):]
	}
	name := leadingTypeIdent(strings.TrimSpace(rest))
	if name == "" {
		return "", false
	}
	return name, true
}

// stripGenericParams removes a single leading `<...>` generic-param
// list (the impl block's own parameters, not the Self type's).
func stripGenericParams(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "<") {
		return s
	}
	depth := 0
	for i, c := range s {
		switch c {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[i+1:])
			}
		}
	}
	return s
}

// enclosingSelfType finds the impl block containing scope.Point and
// returns the Self type it implements, walking outward through
// nested brace scopes until one's header parses as an impl.
func (r *Resolver) enclosingSelfType(scope Scope) (string, error) {
	_, masked, err := r.cache.Get(r.loader, scope.FilePath)
	if err != nil {
		return "", err
	}
	point := scope.Point
	for {
		rng, ok := EnclosingBraceRange(masked, point)
		if !ok {
			return "", nil
		}
		header := headerBefore(masked, rng.Start)
		if name, ok := implTargetType(header); ok {
			return name, nil
		}
		if rng.Start == 0 {
			return "", nil
		}
		point = rng.Start
	}
}

// headerBefore returns the statement text immediately preceding an
// opening brace at braceStart, trimmed.
func headerBefore(masked string, braceStart int) string {
	start := currentStatementStart(masked, braceStart)
	return strings.TrimSpace(masked[start:braceStart])
}
