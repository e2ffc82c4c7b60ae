package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/jobs"
	"github.com/ternarybob/rls/internal/rustconfig"
	"github.com/ternarybob/rls/internal/semindex"
	"github.com/ternarybob/rls/internal/vfs"
)

type fakeQuiescence struct{ v bool }

func (f *fakeQuiescence) SetQuiescent(b bool) { f.v = b }
func (f *fakeQuiescence) Quiescent() bool     { return f.v }

func newTestHandlers(t *testing.T) (*Handlers, *vfs.VFS) {
	t.Helper()
	v := vfs.New()
	idx := semindex.New(NewLoader(v), nil)
	reg := jobs.NewRegistry()
	q := buildqueue.New(func([]string) buildqueue.Result { return buildqueue.Result{Outcome: buildqueue.OutcomeSuccess} }, reg, nil)
	h := New(v, idx, q, reg, &fakeQuiescence{}, func() rustconfig.Config { return rustconfig.Default() }, 4242, nil)
	return h, v
}

func TestDefinition_LocalItem(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn apple() {}\nfn main() { ap }"
	v.Open("/ws/src/lib.rs", text)

	// cursor immediately after "ap" on line 1 (0-based), column 14.
	loc, err := h.Definition("/ws/src/lib.rs", Position{Line: 1, Character: 14})
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 0, loc.Start.Line)
	assert.Equal(t, 3, loc.Start.Character)
}

func TestCompletion_NoSnippetFormat(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn apple() {}\nfn main() { ap }"
	v.Open("/ws/src/lib.rs", text)

	items, err := h.Completion("/ws/src/lib.rs", Position{Line: 1, Character: 14})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "apple", items[0].Label)
	assert.Equal(t, CIKFunction, items[0].Kind)
}

func TestHover_LocalLetBinding(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn main() {\n    let s = String::new();\n    println!(\"{}\", s);\n}\n"
	v.Open("/ws/src/lib.rs", text)

	lines := splitLines(text)
	secondSIdx := indexOf(lines[2], "s")
	hover, err := h.Hover("/ws/src/lib.rs", Position{Line: 2, Character: secondSIdx + 1})
	require.NoError(t, err)
	require.NotNil(t, hover)
	require.NotEmpty(t, hover.Contents)
	assert.Equal(t, "std::string::String", hover.Contents[0])
	require.Len(t, hover.Contents, 2)
	assert.Contains(t, hover.Contents[1], "let s")
}

func TestDeglob_SortsByCaseClass(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "use std::io::*;\nfn main() {\n    let Stdout = write_all(MAX_LEN);\n}\n"
	v.Open("/ws/src/lib.rs", text)

	res, err := h.Deglob("/ws/src/lib.rs", "use std::io::*;", 0, len("use std::io::*;"))
	require.NoError(t, err)
	require.NotNil(t, res)

	idxWriteAll, idxStdout, idxMaxLen := -1, -1, -1
	for i, n := range res.Names {
		switch n {
		case "write_all":
			idxWriteAll = i
		case "Stdout":
			idxStdout = i
		case "MAX_LEN":
			idxMaxLen = i
		}
	}
	require.True(t, idxWriteAll >= 0 && idxStdout >= 0 && idxMaxLen >= 0)
	assert.Less(t, idxWriteAll, idxStdout)
	assert.Less(t, idxStdout, idxMaxLen)
}

func TestRename_RefusedDuringEditStorm(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn foo() {}\nfn main() { foo(); }\n"
	v.Open("/ws/src/lib.rs", text)

	q := h.Quiesce.(*fakeQuiescence)
	// Simulate a didChange arriving the instant quiescence is set, by
	// having SetQuiescent(true) immediately flip back via the same
	// path OnDidChange uses, before Rename re-checks it.
	origSet := q.SetQuiescent
	_ = origSet
	q.v = false

	// Patch: wrap Quiesce so the first SetQuiescent(true) triggers an
	// interrupting OnDidChange before Rename's own recheck.
	interrupting := &interruptingQuiescence{inner: q}
	h.Quiesce = interrupting

	res, err := h.Rename("/ws/src/lib.rs", Position{Line: 0, Character: 4}, "bar")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Refused)
	assert.Equal(t, busyWarning, res.Warning)
	assert.Nil(t, res.Edits)
}

func TestReferences_FindsAllOccurrencesInFile(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn foo() {}\nfn main() { foo(); foo(); }\n"
	v.Open("/ws/src/lib.rs", text)

	refs, err := h.References("/ws/src/lib.rs", Position{Line: 0, Character: 4}, true)
	require.NoError(t, err)
	assert.Len(t, refs, 3) // declaration + two call sites

	withoutDecl, err := h.References("/ws/src/lib.rs", Position{Line: 0, Character: 4}, false)
	require.NoError(t, err)
	assert.Len(t, withoutDecl, 2)
}

func TestDocumentHighlight_SameFileOccurrences(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn foo() {}\nfn main() { foo(); }\n"
	v.Open("/ws/src/lib.rs", text)

	locs, err := h.DocumentHighlight("/ws/src/lib.rs", Position{Line: 0, Character: 4})
	require.NoError(t, err)
	assert.Len(t, locs, 2)
}

func TestDocumentSymbol_ListsTopLevelItems(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "struct Point { x: i32 }\nfn apple() {}\n"
	v.Open("/ws/src/lib.rs", text)

	syms, err := h.DocumentSymbol("/ws/src/lib.rs")
	require.NoError(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "Point", syms[0].Name)
	assert.Equal(t, "apple", syms[1].Name)
}

func TestWorkspaceSymbol_FiltersBySubstring(t *testing.T) {
	h, v := newTestHandlers(t)
	v.Open("/ws/src/a.rs", "fn apple() {}\n")
	v.Open("/ws/src/b.rs", "fn banana() {}\n")

	syms, err := h.WorkspaceSymbol("app")
	require.NoError(t, err)
	require.Len(t, syms, 1)
	assert.Equal(t, "apple", syms[0].Name)
}

func TestCodeAction_OffersDeglobForGlobImport(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "use std::io::*;\nfn main() {}\n"
	v.Open("/ws/src/lib.rs", text)

	actions, err := h.CodeAction("/ws/src/lib.rs", 0, 1)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Contains(t, actions[0].GlobLine, "use std::io::*;")
}

func TestCodeLens_OffersRunOnMain(t *testing.T) {
	h, v := newTestHandlers(t)
	text := "fn helper() {}\nfn main() {}\n"
	v.Open("/ws/src/lib.rs", text)

	lenses, err := h.CodeLens("/ws/src/lib.rs")
	require.NoError(t, err)
	require.Len(t, lenses, 1)
	assert.Equal(t, "Run", lenses[0].Title)
}

type interruptingQuiescence struct {
	inner   *fakeQuiescence
	armed   bool
}

func (q *interruptingQuiescence) SetQuiescent(v bool) {
	q.inner.SetQuiescent(v)
	if v {
		// An intervening didChange lands right after the mutating
		// handler declares itself quiescent.
		q.inner.SetQuiescent(false)
	}
}

func (q *interruptingQuiescence) Quiescent() bool { return q.inner.Quiescent() }

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func indexOf(line, sub string) int {
	for i := 0; i+len(sub) <= len(line); i++ {
		if line[i:i+len(sub)] == sub {
			// require a word-boundary match for the bare identifier "s"
			before := i == 0 || !(line[i-1] == '_' || isAlnum(line[i-1]))
			after := i+len(sub) >= len(line) || !(line[i+len(sub)] == '_' || isAlnum(line[i+len(sub)]))
			if before && after && i > 0 {
				return i
			}
		}
	}
	return -1
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
