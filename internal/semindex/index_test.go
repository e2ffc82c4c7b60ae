package semindex

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader serves fixed in-memory content, standing in for the VFS
// overlay loader in these package-local tests.
type fakeLoader struct {
	files map[string]string
}

func (f *fakeLoader) FileContent(path string) (string, error) {
	text, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return text, nil
}

// Scenario 1 from the testable-properties set: goto-definition via a
// local item.
func TestIndex_FindDefinition_LocalItem(t *testing.T) {
	src := "fn apple() {}\nfn main() { ap }"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.LastIndex(src, "ap") + len("ap")
	matches, err := idx.FindDefinition("/src/lib.rs", cursor)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	var found *Match
	for i := range matches {
		if matches[i].Name == "apple" {
			found = &matches[i]
		}
	}
	require.NotNil(t, found, "expected a match named apple")
	assert.Equal(t, KindFunction, found.Kind)
	assert.Equal(t, 1, found.Row)
	assert.Equal(t, 3, found.Col, "apple's definition starts at column 3 on row 1")
}

// Scenario 2: completion with snippet support off — the first result
// for a prefix search is the matching function. Matches carry no
// snippet marker, and the completion items built from them never set
// insertTextFormat.
func TestIndex_CompleteFromFile_FunctionLabel(t *testing.T) {
	src := "fn apple() {}\nfn main() { ap }"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.LastIndex(src, "ap") + len("ap")
	matches, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	assert.Equal(t, "apple", matches[0].Name)
	assert.Equal(t, KindFunction, matches[0].Kind)
}

func TestIndex_CompleteFromFile_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	src := "fn apple() {}\nfn apricot() {}\nfn main() { ap }"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.LastIndex(src, "ap") + len("ap")
	first, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)
	second, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
	}
}

func TestIndex_Invalidate_ForcesReload(t *testing.T) {
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": "fn apple() {}"}}
	idx := New(loader, nil)

	matches, err := idx.CompleteFromFile("/src/lib.rs", len("fn apple() {} "))
	require.NoError(t, err)
	_ = matches

	loader.files["/src/lib.rs"] = "fn apple() {}\nfn banana() {}"
	idx.Invalidate("/src/lib.rs")

	raw, _, err := idx.cache.Get(idx.loader, "/src/lib.rs")
	require.NoError(t, err)
	assert.Contains(t, raw, "banana")
}
