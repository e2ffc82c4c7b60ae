package semindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandUseTree_Simple(t *testing.T) {
	imports := ExpandUseTree("std::io")
	require.Len(t, imports, 1)
	assert.Equal(t, "io", imports[0].ImportedName)
	assert.Equal(t, "std::io", imports[0].Path)
	assert.False(t, imports[0].Glob)
}

func TestExpandUseTree_Glob(t *testing.T) {
	imports := ExpandUseTree("std::io::*")
	require.Len(t, imports, 1)
	assert.True(t, imports[0].Glob)
	assert.Equal(t, "*", imports[0].ImportedName)
	assert.Equal(t, "std::io", imports[0].Path)
}

func TestExpandUseTree_Alias(t *testing.T) {
	imports := ExpandUseTree("std::io::Error as IoError")
	require.Len(t, imports, 1)
	assert.Equal(t, "IoError", imports[0].ImportedName)
	assert.Equal(t, "std::io::Error", imports[0].Path)
	assert.Equal(t, "IoError", imports[0].Alias)
}

func TestExpandUseTree_NestedGroup(t *testing.T) {
	imports := ExpandUseTree("a::{b, c::{d, e}}")
	names := make(map[string]string)
	for _, imp := range imports {
		names[imp.ImportedName] = imp.Path
	}
	require.Len(t, imports, 3)
	assert.Equal(t, "a::b", names["b"])
	assert.Equal(t, "a::c::d", names["d"])
	assert.Equal(t, "a::c::e", names["e"])
}

func TestExpandUseTree_GroupWithAliasAndGlob(t *testing.T) {
	imports := ExpandUseTree("std::collections::{HashMap as Map, HashSet, fmt::*}")
	byName := make(map[string]UseImport)
	for _, imp := range imports {
		byName[imp.ImportedName] = imp
	}
	require.Len(t, imports, 3)
	assert.Equal(t, "std::collections::HashMap", byName["Map"].Path)
	assert.Equal(t, "std::collections::HashSet", byName["HashSet"].Path)
	assert.True(t, byName["*"].Glob)
	assert.Equal(t, "std::collections::fmt", byName["*"].Path)
}
