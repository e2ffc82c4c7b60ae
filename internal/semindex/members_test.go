package semindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Path resolution step 2-3: a segment after `::` is resolved against
// the previous segment's match rather than treated as a bare name.
func TestIndex_CompleteFromFile_ModulePathSegment(t *testing.T) {
	src := "mod foo {\n    pub fn bar() {}\n}\nfn main() {\n    foo::ba\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.Index(src, "foo::ba") + len("foo::ba")
	matches, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "bar", matches[0].Name)
	assert.Equal(t, KindFunction, matches[0].Kind)
}

// Path resolution step 1: a name brought into scope by `use` resolves
// via the use-tree index rather than falling straight through to
// builtins/file items.
func TestIndex_ResolveFirstSegment_UseImportedName(t *testing.T) {
	src := "use std::collections::HashMap;\nfn main() {\n    let m = HashM\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.Index(src, "HashM") + len("HashM")
	matches, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)

	var found *Match
	for i := range matches {
		if matches[i].Name == "HashMap" {
			found = &matches[i]
		}
	}
	require.NotNil(t, found, "expected HashMap from the use import")
	assert.Equal(t, KindUseAlias, found.Kind)
	require.NotNil(t, found.Alias)
	assert.Equal(t, "std::collections::HashMap", found.Context)
}

// Aliased imports (`use a::b as c;`) resolve under the alias name.
func TestIndex_ResolveFirstSegment_UseImportAlias(t *testing.T) {
	src := "use std::collections::HashMap as Map;\nfn main() {\n    let m = Ma\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.Index(src, "Ma\n") + len("Ma")
	matches, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)

	var found *Match
	for i := range matches {
		if matches[i].Name == "Map" {
			found = &matches[i]
		}
	}
	require.NotNil(t, found, "expected the aliased import Map")
	assert.Equal(t, KindUseAlias, found.Kind)
}

// Field and method lookup: the receiver's type is inferred from its
// let-binding's struct-literal initializer, then both struct fields
// and inherent-impl methods are offered.
func TestIndex_CompleteFromFile_FieldAndMethodLookup(t *testing.T) {
	src := "struct Point {\n    x: i32,\n    y: i32,\n}\n" +
		"impl Point {\n    fn dist(&self) -> i32 { 0 }\n}\n" +
		"fn main() {\n    let p = Point { x: 1, y: 2 };\n    p.d\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.Index(src, "p.d") + len("p.d")
	matches, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "dist", matches[0].Name)
	assert.Equal(t, KindMethod, matches[0].Kind)
}

// `self.field` inside a method resolves via the enclosing impl
// block's Self type rather than requiring a local binding named
// "self".
func TestIndex_FindDefinition_SelfField(t *testing.T) {
	src := "struct Point {\n    x: i32,\n}\n" +
		"impl Point {\n    fn getx(&self) -> i32 { self.x }\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.LastIndex(src, "self.x") + len("self.x")
	matches, err := idx.FindDefinition("/src/lib.rs", cursor)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "x", matches[0].Name)
	assert.Equal(t, KindStructField, matches[0].Kind)
}

// Caching: after a lookup against a generic impl block its normalized
// header is in the Cache, and a second lookup leaves it unchanged.
func TestResolver_GenericImplHeader_CachedAcrossLookups(t *testing.T) {
	src := "struct Wrapper<T> {\n    inner: T,\n}\n" +
		"impl<T: Clone> Wrapper<T> {\n    fn get(&self) -> i32 { 0 }\n}\n" +
		"fn main() {\n    let w = Wrapper { inner: 1 };\n    w.g\n}\n"
	loader := &fakeLoader{files: map[string]string{"/src/lib.rs": src}}
	idx := New(loader, nil)

	cursor := strings.Index(src, "w.g") + len("w.g")
	_, err := idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)

	implStart := strings.Index(src, "\nimpl<T: Clone>")
	cached, ok := idx.cache.GenericImplHeader("/src/lib.rs", implStart)
	require.True(t, ok, "expected the generic impl header to be cached after resolution")
	assert.Contains(t, cached, "impl<T: Clone> Wrapper<T>")

	_, err = idx.CompleteFromFile("/src/lib.rs", cursor)
	require.NoError(t, err)
	second, ok := idx.cache.GenericImplHeader("/src/lib.rs", implStart)
	require.True(t, ok)
	assert.Equal(t, cached, second)
}
