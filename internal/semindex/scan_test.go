package semindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopLevelStatements_SplitsOnBracesAndSemicolons(t *testing.T) {
	src := `use std::io;
fn a() { let x = 1; }
struct B { field: i32 }
const C: i32 = 1;`
	masked := Mask(src)
	stmts := TopLevelStatements(masked)
	require.Len(t, stmts, 4)

	assert.Equal(t, "use std::io;", src[stmts[0].Start:stmts[0].End])
}

func TestTopLevelStatements_BraceDepthInsideFnBodyDoesNotLeak(t *testing.T) {
	src := `fn a() { if true { let y = 2; } }
fn b() {}`
	masked := Mask(src)
	stmts := TopLevelStatements(masked)
	require.Len(t, stmts, 2)
}

func TestBraceDepthAt(t *testing.T) {
	src := `fn a() { let x = 1; }`
	masked := Mask(src)
	insideBody := len("fn a() { let x")
	assert.Equal(t, 1, BraceDepthAt(masked, insideBody))
	assert.Equal(t, 0, BraceDepthAt(masked, 0))
}

func TestEnclosingBraceRange(t *testing.T) {
	src := `fn a() { let x = 1; }`
	masked := Mask(src)
	point := len("fn a() { let x")
	rng, ok := EnclosingBraceRange(masked, point)
	require.True(t, ok)
	assert.Equal(t, "{ let x = 1; }", src[rng.Start:rng.End])

	_, ok = EnclosingBraceRange(masked, 0)
	assert.False(t, ok)
}
