// Package handlers wires the Virtual File System, the Semantic Index,
// the Build Queue, and the Request Dispatcher's quiescence flag
// together into the concrete LSP-facing operations spec.md §8
// describes: goto-definition, completion, hover, a quiescence-aware
// rename, and the deglob code action. It owns no state of its own
// beyond what those components already expose — it is glue, grounded
// on the same "Action Context" shape the teacher's `pkg/orchestra`
// handlers close over a shared `*Worker` and job registry.
package handlers

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/jobs"
	"github.com/ternarybob/rls/internal/rustconfig"
	"github.com/ternarybob/rls/internal/semindex"
	"github.com/ternarybob/rls/internal/vfs"
)

// Quiescence is the subset of *dispatch.Server a mutating handler
// needs: the flag a concurrent didChange notification flips to signal
// "an edit arrived while you were computing, discard your answer".
// Expressed as an interface rather than importing internal/dispatch
// directly so this package has no dependency edge back onto the
// dispatcher it is registered with.
type Quiescence interface {
	SetQuiescent(bool)
	Quiescent() bool
}

// Handlers is the Action Context: the set of collaborators every
// request handler in this package closes over.
type Handlers struct {
	VFS     *vfs.VFS
	Index   *semindex.Index
	Queue   *buildqueue.Queue
	Jobs    *jobs.Registry
	Quiesce Quiescence
	Config  func() rustconfig.Config
	PID     int
	log     arbor.ILogger
}

// New returns a Handlers wired to the given collaborators. config is
// called fresh on every request so a didChangeConfiguration update
// between requests is observed immediately.
func New(v *vfs.VFS, idx *semindex.Index, q *buildqueue.Queue, reg *jobs.Registry, quiesce Quiescence, config func() rustconfig.Config, pid int, log arbor.ILogger) *Handlers {
	return &Handlers{VFS: v, Index: idx, Queue: q, Jobs: reg, Quiesce: quiesce, Config: config, PID: pid, log: log}
}

// vfsLoader adapts *vfs.VFS to semindex.Loader (overlay-or-disk file
// content, the shape every masking/resolution query needs).
type vfsLoader struct{ v *vfs.VFS }

func (l vfsLoader) FileContent(path string) (string, error) {
	res, err := l.v.LoadFile(path)
	if err != nil {
		return "", err
	}
	if res.Kind != vfs.KindText {
		return "", fmt.Errorf("%s is not a text file", path)
	}
	return res.Text, nil
}

// NewLoader returns the semindex.Loader backing Handlers.Index,
// exposed so callers constructing the Index can use the same overlay
// semantics this package relies on.
func NewLoader(v *vfs.VFS) semindex.Loader { return vfsLoader{v: v} }

// Position is the wire Position type (0-based line, UTF-16 character),
// reusing the VFS's own definition so callers never juggle two
// structurally identical types.
type Position = vfs.Position

// Location is an LSP Location: a file URI-equivalent path plus range.
type Location struct {
	Path  string
	Start Position
	End   Position
}

func (h *Handlers) lineTable(path string) (*vfs.LineTable, error) {
	if lt, ok := h.VFS.LineTable(path); ok {
		return lt, nil
	}
	res, err := h.VFS.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if res.Kind != vfs.KindText {
		return nil, fmt.Errorf("%s is not a text file", path)
	}
	return vfs.NewLineTable(res.Text), nil
}

func (h *Handlers) pointToPosition(path string, point int) (Position, error) {
	lt, err := h.lineTable(path)
	if err != nil {
		return Position{}, err
	}
	pos, ok := lt.PointToPosition(vfs.Point(point))
	if !ok {
		return Position{}, fmt.Errorf("%s: point %d out of range", path, point)
	}
	return pos, nil
}

func (h *Handlers) positionToPoint(path string, pos Position) (int, error) {
	lt, err := h.lineTable(path)
	if err != nil {
		return 0, err
	}
	p, ok := lt.PositionToPoint(pos)
	if !ok {
		return 0, fmt.Errorf("%s: position out of range", path)
	}
	return int(p), nil
}

// Definition implements textDocument/definition (scenario 1): resolve
// the identifier at cursor and return its declaration's location. When
// resolution yields more than one candidate (shadowing, overloads by
// namespace) the first in tie-break order is returned, matching
// racer's own "first candidate wins" contract.
func (h *Handlers) Definition(path string, pos Position) (*Location, error) {
	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.FindDefinition(path, point)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	m := matches[0]
	return h.matchLocation(m)
}

func (h *Handlers) matchLocation(m semindex.Match) (*Location, error) {
	target := &m
	if target.EffectiveKind() != target.Kind && target.Alias != nil {
		target = target.Alias
	}
	file := target.FilePath
	start, err := h.pointToPosition(file, target.Point)
	if err != nil {
		return nil, err
	}
	end, err := h.pointToPosition(file, target.Point+len(target.Name))
	if err != nil {
		end = start
	}
	return &Location{Path: file, Start: start, End: end}, nil
}

// CompletionItemKind mirrors the LSP CompletionItemKind enum, the
// subset this index can distinguish.
type CompletionItemKind int

const (
	CIKText CompletionItemKind = iota + 1
	CIKMethod
	CIKFunction
	CIKConstructor
	CIKField
	CIKVariable
	CIKClass
	CIKInterface
	CIKModule
	CIKProperty
	CIKUnit
	CIKValue
	CIKEnum
	CIKKeyword
	CIKSnippet
	CIKColor
	CIKFile
	CIKReference
	CIKFolder
	CIKEnumMember
	CIKConstant
	CIKStruct
)

// CompletionKindFor exposes completionKind's Match-Kind-to-LSP-kind
// mapping for callers outside this package that need to render a
// SymbolInfo's Kind (e.g. textDocument/documentSymbol's SymbolKind).
func CompletionKindFor(k semindex.Kind) CompletionItemKind { return completionKind(k) }

func completionKind(k semindex.Kind) CompletionItemKind {
	switch k {
	case semindex.KindFunction:
		return CIKFunction
	case semindex.KindMethod:
		return CIKMethod
	case semindex.KindStruct, semindex.KindUnion:
		return CIKStruct
	case semindex.KindEnum:
		return CIKEnum
	case semindex.KindEnumVariant:
		return CIKEnumMember
	case semindex.KindTrait:
		return CIKInterface
	case semindex.KindConst, semindex.KindStatic:
		return CIKConstant
	case semindex.KindModule, semindex.KindCrate:
		return CIKModule
	case semindex.KindStructField:
		return CIKField
	case semindex.KindType, semindex.KindAssocType, semindex.KindTypeParameter:
		return CIKClass
	case semindex.KindBuiltin, semindex.KindMacro:
		return CIKKeyword
	default:
		return CIKVariable
	}
}

// CompletionItem is one completion candidate. InsertTextFormat is
// deliberately omitted rather than zero-valued: the server never
// advertises snippet support (scenario 2), so every item is a plain
// text insertion and the field simply does not appear on the wire.
type CompletionItem struct {
	Label  string
	Kind   CompletionItemKind
	Detail string
}

// Completion implements textDocument/completion (scenario 2): prefix
// search from the cursor, returned in the same tie-break order the
// resolver already establishes (name, then declaration offset).
func (h *Handlers) Completion(path string, pos Position) ([]CompletionItem, error) {
	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.CompleteFromFile(path, point)
	if err != nil {
		return nil, err
	}
	items := make([]CompletionItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, CompletionItem{
			Label:  m.Name,
			Kind:   completionKind(m.EffectiveKind()),
			Detail: m.Context,
		})
	}
	return items, nil
}

// HoverResult is the tooltip content for textDocument/hover: a list of
// "marked string" elements in display order, matching scenario 6's
// "first element is the type, second (when enabled) is the source
// line" contract.
type HoverResult struct {
	Contents []string
	Range    *struct{ Start, End Position }
}

// stdQualified maps a bare type name a `Type::ctor()` expression might
// name to its fully-qualified std path, covering the common
// prelude-reexported constructors a source-driven index can resolve
// without a real trait-based type checker.
var stdQualified = map[string]string{
	"String":  "std::string::String",
	"Vec":     "std::vec::Vec",
	"HashMap": "std::collections::HashMap",
	"HashSet": "std::collections::HashSet",
	"Box":     "std::boxed::Box",
	"Rc":      "std::rc::Rc",
	"Arc":     "std::sync::Arc",
}

// inferLetType extracts a best-effort type from a `let NAME = Type::ctor(...)`
// header line, the only shape this source-driven index can infer
// without running the compiler's own type checker.
func inferLetType(context string) string {
	eq := strings.Index(context, "=")
	if eq < 0 {
		return ""
	}
	rhs := strings.TrimSpace(context[eq+1:])
	sep := strings.Index(rhs, "::")
	if sep <= 0 {
		return ""
	}
	typeName := rhs[:sep]
	if q, ok := stdQualified[typeName]; ok {
		return q
	}
	return typeName
}

// Hover implements textDocument/hover (scenario 6). When the resolved
// match is a local let-binding, the type is inferred from its
// initializer; for every other kind, the declaration's own Context
// line stands in for a type signature.
func (h *Handlers) Hover(path string, pos Position) (*HoverResult, error) {
	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.FindDefinition(path, point)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	m := matches[0]

	// Context already holds the declaring line for both local
	// bindings and top-level items; fall back to the line table only
	// for a match that somehow arrived with none.
	sourceLine := m.Context
	if sourceLine == "" {
		if lt, lerr := h.lineTable(m.FilePath); lerr == nil {
			if coords, ok := lt.PointToCoords(vfs.Point(m.Point)); ok {
				if line, ok := lt.LineText(coords.Row); ok {
					sourceLine = strings.TrimSpace(line)
				}
			}
		}
	}

	var typ string
	if m.EffectiveKind() == semindex.KindLet {
		typ = inferLetType(sourceLine)
	}
	if typ == "" {
		typ = sourceLine
	}
	if typ == "" {
		typ = m.Name
	}

	contents := []string{typ}
	cfg := rustconfig.Default()
	if h.Config != nil {
		cfg = h.Config()
	}
	if cfg.ShowHoverContext && sourceLine != "" {
		contents = append(contents, sourceLine)
	}
	return &HoverResult{Contents: contents}, nil
}

// DeglobResult locates the `*` of one `use path::*;` glob (Start to
// End) and lists the Names to put in its place, sorted
// snake_case < CamelCase < UPPER_SNAKE_CASE. Deglob describes which
// names are collected.
type DeglobResult struct {
	Path  string
	Start Position
	End   Position
	Names []string
}

// rustKeywords are excluded from a deglob candidate set; they can
// never be the name a glob import brought into scope.
var rustKeywords = map[string]bool{
	"as": true, "break": true, "const": true, "continue": true, "crate": true,
	"else": true, "enum": true, "extern": true, "false": true, "fn": true,
	"for": true, "if": true, "impl": true, "in": true, "let": true, "loop": true,
	"match": true, "mod": true, "move": true, "mut": true, "pub": true, "ref": true,
	"return": true, "self": true, "Self": true, "static": true, "struct": true,
	"super": true, "trait": true, "true": true, "type": true, "unsafe": true,
	"use": true, "where": true, "while": true, "async": true, "await": true,
	"dyn": true,
}

// caseClass orders deglob candidates per scenario 5: snake_case (0)
// sorts before CamelCase (1), which sorts before UPPER_SNAKE_CASE (2).
func caseClass(name string) int {
	hasLower, hasUpper := false, false
	for _, r := range name {
		if r >= 'a' && r <= 'z' {
			hasLower = true
		}
		if r >= 'A' && r <= 'Z' {
			hasUpper = true
		}
	}
	switch {
	case hasUpper && !hasLower:
		return 2 // UPPER_SNAKE_CASE (a single uppercase letter lands here too)
	case len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z':
		return 1 // CamelCase
	default:
		return 0 // snake_case
	}
}

func sortDeglobNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		ci, cj := caseClass(names[i]), caseClass(names[j])
		if ci != cj {
			return ci < cj
		}
		return names[i] < names[j]
	})
}

// Deglob implements the deglob code action (scenario 5): given a
// `use path::*;` statement's line, it collects every non-keyword
// identifier in the file's masked text. The names are not filtered by
// origin: the glob line's own path segments, items and bindings
// declared in the file, and names from other imports are all included.
func (h *Handlers) Deglob(path string, globLine string, lineStart, lineEnd int) (*DeglobResult, error) {
	res, err := h.VFS.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if res.Kind != vfs.KindText {
		return nil, fmt.Errorf("%s is not a text file", path)
	}
	masked := semindex.Mask(res.Text)

	star := strings.Index(globLine, "*")
	if star < 0 {
		return nil, fmt.Errorf("deglob: no glob in %q", globLine)
	}

	used := map[string]bool{}
	for _, ident := range extractIdentifiers(masked) {
		if rustKeywords[ident] || len(ident) == 0 {
			continue
		}
		used[ident] = true
	}
	names := make([]string, 0, len(used))
	for n := range used {
		names = append(names, n)
	}
	sortDeglobNames(names)

	startPos, err1 := h.pointToPosition(path, lineStart+star)
	endPos, err2 := h.pointToPosition(path, lineStart+star+1)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("deglob: could not locate glob span")
	}
	return &DeglobResult{Path: path, Start: startPos, End: endPos, Names: names}, nil
}

func extractIdentifiers(masked string) []string {
	var out []string
	i := 0
	for i < len(masked) {
		c := masked[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			j := i
			for j < len(masked) && identChar(masked[j]) {
				j++
			}
			out = append(out, masked[i:j])
			i = j
			continue
		}
		i++
	}
	return out
}

func identChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// DeglobCommand returns the execute-command verb's name, suffixed with
// the server's own pid so multiple server instances in one client
// don't collide (spec.md §6).
func (h *Handlers) DeglobCommand() string {
	return fmt.Sprintf("rls.deglobImports-%d", h.PID)
}

// ApplySuggestionCommand is the companion execute-command verb for
// compiler-suggested fixes.
func (h *Handlers) ApplySuggestionCommand() string {
	return fmt.Sprintf("rls.applySuggestion-%d", h.PID)
}

// RenameResult is the outcome of a quiescence-checked rename.
type RenameResult struct {
	// Edits maps file path to the replacement spans for that file. Nil
	// (not merely empty) signals a refused rename distinguishable from
	// "zero occurrences found".
	Edits   map[string][]TextEdit
	Refused bool
	Warning string
}

// TextEdit is one replacement span within a single file.
type TextEdit struct {
	Start, End Position
	NewText    string
}

// busyWarning is the literal message scenario 4 requires.
const busyWarning = "RLS busy, please retry"

// renameInFlight guards against two concurrent rename requests
// trampling each other's quiescence flag; only one rename computes
// edits at a time, matching the single-worker "mutating request"
// posture spec.md §5 describes.
var renameInFlight atomic.Bool

// Rename implements textDocument/rename (scenario 4): it sets the
// quiescence flag, blocks until the build queue drains, resolves every
// occurrence of the identifier at cursor within path, then re-checks
// the flag. If an intervening didChange notification flipped it back
// to false — the notification handler's job, not this one's — the
// rename is refused with the literal warning text and an empty edit
// set, never a partial one.
func (h *Handlers) Rename(path string, pos Position, newName string) (*RenameResult, error) {
	if !renameInFlight.CompareAndSwap(false, true) {
		return &RenameResult{Refused: true, Warning: busyWarning}, nil
	}
	defer renameInFlight.Store(false)

	h.Quiesce.SetQuiescent(true)
	h.Queue.BlockOnBuild()

	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.FindDefinition(path, point)
	if err != nil {
		return nil, err
	}

	if !h.Quiesce.Quiescent() {
		return &RenameResult{Refused: true, Warning: busyWarning}, nil
	}
	h.Quiesce.SetQuiescent(false)

	if len(matches) == 0 {
		return &RenameResult{Edits: map[string][]TextEdit{}}, nil
	}
	target := matches[0]
	edits := map[string][]TextEdit{
		target.FilePath: renameOccurrences(h, target, newName),
	}
	return &RenameResult{Edits: edits}, nil
}

// renameOccurrences finds every occurrence of target.Name in its own
// file and returns the edit spans to replace them with newName. This
// source-driven index has no cross-file reference graph, so rename is
// scoped to the declaring file — the same limitation racer's own
// completion/definition surface has.
func renameOccurrences(h *Handlers, target semindex.Match, newName string) []TextEdit {
	spans := occurrencesInFile(h, target.FilePath, target.Name)
	edits := make([]TextEdit, 0, len(spans))
	for _, sp := range spans {
		edits = append(edits, TextEdit{Start: sp.Start, End: sp.End, NewText: newName})
	}
	return edits
}

// occurrencesInFile returns the byte-offset-adjacent Location of every
// whole-identifier occurrence of name within path, in source order.
// Shared by Rename, References, and DocumentHighlight — all three are
// the same "every mention of this identifier" query, scoped to the
// declaring file for the reasons renameOccurrences documents.
func occurrencesInFile(h *Handlers, path, name string) []Location {
	res, err := h.VFS.LoadFile(path)
	if err != nil || res.Kind != vfs.KindText {
		return nil
	}
	var out []Location
	text := res.Text
	for i := 0; i+len(name) <= len(text); {
		idx := strings.Index(text[i:], name)
		if idx < 0 {
			break
		}
		pos := i + idx
		before := pos == 0 || !identChar(text[pos-1])
		afterIdx := pos + len(name)
		after := afterIdx >= len(text) || !identChar(text[afterIdx])
		if before && after {
			start, e1 := h.pointToPosition(path, pos)
			end, e2 := h.pointToPosition(path, afterIdx)
			if e1 == nil && e2 == nil {
				out = append(out, Location{Path: path, Start: start, End: end})
			}
		}
		i = pos + len(name)
	}
	return out
}

// References implements textDocument/references: every occurrence of
// the identifier at cursor within its declaring file. includeDeclaration
// controls whether the definition site itself is part of the result,
// matching the LSP request's own context flag.
func (h *Handlers) References(path string, pos Position, includeDeclaration bool) ([]Location, error) {
	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.FindDefinition(path, point)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	target := matches[0]
	occurrences := occurrencesInFile(h, target.FilePath, target.Name)
	if includeDeclaration {
		return occurrences, nil
	}
	declStart, derr := h.pointToPosition(target.FilePath, target.Point)
	if derr != nil {
		return occurrences, nil
	}
	out := make([]Location, 0, len(occurrences))
	for _, loc := range occurrences {
		if loc.Path == target.FilePath && loc.Start == declStart {
			continue
		}
		out = append(out, loc)
	}
	return out, nil
}

// DocumentHighlight implements textDocument/documentHighlight: every
// occurrence of the identifier at cursor within the same file, without
// the declaration-exclusion option References exposes.
func (h *Handlers) DocumentHighlight(path string, pos Position) ([]Location, error) {
	point, err := h.positionToPoint(path, pos)
	if err != nil {
		return nil, err
	}
	matches, err := h.Index.FindDefinition(path, point)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return occurrencesInFile(h, path, matches[0].Name), nil
}

// SymbolInfo is one entry of a textDocument/documentSymbol or
// workspace/symbol result: a named, kinded, located declaration.
type SymbolInfo struct {
	Name string
	Kind semindex.Kind
	Loc  Location
}

// DocumentSymbol implements textDocument/documentSymbol: every
// top-level item the Semantic Index can see in path, in declaration
// order.
func (h *Handlers) DocumentSymbol(path string) ([]SymbolInfo, error) {
	items, err := h.Index.FileSymbols(path)
	if err != nil {
		return nil, err
	}
	return h.symbolsFromMatches(items)
}

// WorkspaceSymbol implements workspace/symbol: a case-insensitive
// substring search for query over every file currently held in the
// VFS, the same "only what's open or already touched" scope the
// Semantic Index itself operates under (it has no project-wide file
// enumeration of its own).
func (h *Handlers) WorkspaceSymbol(query string) ([]SymbolInfo, error) {
	query = strings.ToLower(query)
	var out []SymbolInfo
	for path := range h.VFS.GetCachedFiles() {
		items, err := h.Index.FileSymbols(path)
		if err != nil {
			continue
		}
		for _, m := range items {
			if query != "" && !strings.Contains(strings.ToLower(m.Name), query) {
				continue
			}
			syms, err := h.symbolsFromMatches([]semindex.Match{m})
			if err != nil {
				continue
			}
			out = append(out, syms...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (h *Handlers) symbolsFromMatches(items []semindex.Match) ([]SymbolInfo, error) {
	out := make([]SymbolInfo, 0, len(items))
	for _, m := range items {
		loc, err := h.matchLocation(m)
		if err != nil {
			continue
		}
		out = append(out, SymbolInfo{Name: m.Name, Kind: m.EffectiveKind(), Loc: *loc})
	}
	return out, nil
}

// CodeAction implements textDocument/codeAction for the one code
// action the core supports (scenario 5): offering a deglob command for
// every `use path::*;` statement whose line falls inside the
// requested range.
type CodeActionDeglob struct {
	Title     string
	Path      string
	GlobLine  string
	LineStart int
	LineEnd   int
}

func (h *Handlers) CodeAction(path string, startLine, endLine int) ([]CodeActionDeglob, error) {
	res, err := h.VFS.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if res.Kind != vfs.KindText {
		return nil, nil
	}
	lt, err := h.lineTable(path)
	if err != nil {
		return nil, err
	}
	var out []CodeActionDeglob
	for row := startLine + 1; row <= endLine+1; row++ {
		line, ok := lt.LineText(row)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "use ") || !strings.Contains(trimmed, "*") {
			continue
		}
		rowStart, ok := lt.RowStart(row)
		if !ok {
			continue
		}
		out = append(out, CodeActionDeglob{
			Title:     fmt.Sprintf("Expand glob import: %s", trimmed),
			Path:      path,
			GlobLine:  line,
			LineStart: rowStart,
			LineEnd:   rowStart + len(line),
		})
	}
	return out, nil
}

// CodeLensRun is one "Run" code lens anchored above a binary entry
// point (`fn main`), offered only when the client advertised cmdRun
// support (spec.md §6).
type CodeLensRun struct {
	Loc   Location
	Title string
}

// CodeLens implements textDocument/codeLens: a "Run" lens over every
// top-level `fn main` the Semantic Index finds in path. The command
// itself is bound by the caller to RunCommand(), matching the
// pid-suffixed execute-command verbs Deglob/ApplySuggestion already
// use.
func (h *Handlers) CodeLens(path string) ([]CodeLensRun, error) {
	items, err := h.Index.FileSymbols(path)
	if err != nil {
		return nil, err
	}
	var out []CodeLensRun
	for _, m := range items {
		if m.Kind != semindex.KindFunction || m.Name != "main" {
			continue
		}
		loc, err := h.matchLocation(m)
		if err != nil {
			continue
		}
		out = append(out, CodeLensRun{Loc: *loc, Title: "Run"})
	}
	return out, nil
}

// RunCommand is the execute-command verb a "Run" code lens is bound
// to.
func (h *Handlers) RunCommand() string {
	return fmt.Sprintf("rls.run-%d", h.PID)
}

// OnDidChange is registered as (part of) the textDocument/didChange
// notification handler. Its only job here is the quiescence side
// effect spec.md §5 describes: an edit arriving while a mutating
// request believes the system is quiescent interrupts that request.
// VFS mutation itself happens in the dispatcher-facing notification
// handler that calls this.
func (h *Handlers) OnDidChange() {
	if h.Quiesce.Quiescent() {
		h.Quiesce.SetQuiescent(false)
	}
}
