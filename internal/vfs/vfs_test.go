package vfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTable_PointCoordsRoundTrip(t *testing.T) {
	text := "fn main() {\n    let x = 1;\n    println!(\"{}\", x);\n}\n"
	lt := NewLineTable(text)

	for p := 0; p <= len(text); p++ {
		coords, ok := lt.PointToCoords(Point(p))
		require.True(t, ok, "point %d should be in range", p)
		back, ok := lt.CoordsToPoint(coords)
		require.True(t, ok, "coords %+v should convert back", coords)
		assert.Equal(t, Point(p), back, "round trip should be identity for point %d", p)
	}
}

func TestLineTable_PointToCoords_OutOfRange(t *testing.T) {
	lt := NewLineTable("abc\n")
	_, ok := lt.PointToCoords(-1)
	assert.False(t, ok)
	_, ok = lt.PointToCoords(Point(100))
	assert.False(t, ok)
}

func TestLineTable_PositionPointRoundTrip_ASCII(t *testing.T) {
	text := "line one\nline two\nline three"
	lt := NewLineTable(text)

	for line := 0; line < 3; line++ {
		lineText, ok := lt.LineText(line + 1)
		require.True(t, ok)
		for ch := 0; ch <= len(lineText); ch++ {
			pos := Position{Line: line, Character: ch}
			p, ok := lt.PositionToPoint(pos)
			require.True(t, ok, "position %+v should convert", pos)
			back, ok := lt.PointToPosition(p)
			require.True(t, ok)
			assert.Equal(t, pos, back)
		}
	}
}

func TestLineTable_PositionToPoint_UTF16Surrogates(t *testing.T) {
	// U+1F600 (grinning face) is a surrogate pair in UTF-16, 4 bytes in UTF-8.
	text := "let s = \"\U0001F600\";\n"
	lt := NewLineTable(text)

	// Character offset 9 is right after the opening quote; the emoji
	// occupies two UTF-16 units (9 and 10), so position 11 should land
	// just after it, at the closing quote.
	pos := Position{Line: 0, Character: 11}
	p, ok := lt.PositionToPoint(pos)
	require.True(t, ok)
	assert.Equal(t, byte('"'), text[p])
}

func TestLineTable_PositionToPoint_OutOfRange(t *testing.T) {
	lt := NewLineTable("abc\n")
	_, ok := lt.PositionToPoint(Position{Line: 5, Character: 0})
	assert.False(t, ok)
	_, ok = lt.PositionToPoint(Position{Line: 0, Character: -1})
	assert.False(t, ok)
	_, ok = lt.PositionToPoint(Position{Line: 0, Character: 1000})
	assert.False(t, ok)
}

func TestLineTable_LineText_TrimsCRLF(t *testing.T) {
	lt := NewLineTable("one\r\ntwo\r\nthree")
	line, ok := lt.LineText(1)
	require.True(t, ok)
	assert.Equal(t, "one", line)
	line, ok = lt.LineText(3)
	require.True(t, ok)
	assert.Equal(t, "three", line)
}

func TestVFS_OpenSetVersionBumps(t *testing.T) {
	v := New()
	v.Open("/tmp/a.rs", "fn main() {}")
	ver, ok := v.Version("/tmp/a.rs")
	require.True(t, ok)
	assert.Equal(t, Version(1), ver)

	v.Set("/tmp/a.rs", "fn main() { todo!() }")
	ver, ok = v.Version("/tmp/a.rs")
	require.True(t, ok)
	assert.Equal(t, Version(2), ver)
}

func TestVFS_CloseFallsBackToDisk(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/b.rs"
	require.NoError(t, os.WriteFile(path, []byte("fn on_disk() {}"), 0o644))

	v := New()
	v.Open(path, "fn overlaid() {}")
	text, ok := v.Text(path)
	require.True(t, ok)
	assert.Equal(t, "fn overlaid() {}", text)

	v.Close(path)
	_, ok = v.Text(path)
	assert.False(t, ok, "closed file should no longer be in the overlay")

	res, err := v.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, KindText, res.Kind)
	assert.Equal(t, "fn on_disk() {}", res.Text)
}

func TestVFS_ApplyChanges_ReplaceText(t *testing.T) {
	v := New()
	v.Open("/tmp/c.rs", "let x = 1;\nlet y = 2;\n")

	err := v.ApplyChanges([]Change{
		ReplaceText{
			Path:        "/tmp/c.rs",
			Span:        Range{Start: Position{Line: 0, Character: 8}, End: Position{Line: 0, Character: 9}},
			RangeLength: 1,
			NewText:     "42",
		},
	})
	require.NoError(t, err)

	text, ok := v.Text("/tmp/c.rs")
	require.True(t, ok)
	assert.Equal(t, "let x = 42;\nlet y = 2;\n", text)

	ver, _ := v.Version("/tmp/c.rs")
	assert.Equal(t, Version(2), ver)
}

func TestVFS_ApplyChanges_RejectsMismatchedRangeLength(t *testing.T) {
	v := New()
	v.Open("/tmp/d.rs", "let x = 1;\n")

	err := v.ApplyChanges([]Change{
		ReplaceText{
			Path:        "/tmp/d.rs",
			Span:        Range{Start: Position{Line: 0, Character: 8}, End: Position{Line: 0, Character: 9}},
			RangeLength: 99,
			NewText:     "42",
		},
	})
	assert.Error(t, err)

	text, _ := v.Text("/tmp/d.rs")
	assert.Equal(t, "let x = 1;\n", text, "a rejected batch must not mutate the buffer")
}

func TestVFS_ApplyChanges_BatchIsAtomic(t *testing.T) {
	v := New()
	v.Open("/tmp/e.rs", "let x = 1;\n")

	err := v.ApplyChanges([]Change{
		ReplaceText{
			Path:        "/tmp/e.rs",
			Span:        Range{Start: Position{Line: 0, Character: 8}, End: Position{Line: 0, Character: 9}},
			RangeLength: 1,
			NewText:     "42",
		},
		ReplaceText{
			Path:        "/tmp/e.rs",
			Span:        Range{Start: Position{Line: 0, Character: 0}, End: Position{Line: 0, Character: 3}},
			RangeLength: 999, // wrong on purpose
			NewText:     "var",
		},
	})
	assert.Error(t, err)

	text, _ := v.Text("/tmp/e.rs")
	assert.Equal(t, "let x = 1;\n", text, "first change must not apply if a later change in the batch fails validation")
}

func TestVFS_GetCachedFiles(t *testing.T) {
	v := New()
	v.Open("/tmp/f.rs", "fn f() {}")
	v.Open("/tmp/g.rs", "fn g() {}")

	snapshot := v.GetCachedFiles()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "fn f() {}", snapshot["/tmp/f.rs"])
	assert.Equal(t, "fn g() {}", snapshot["/tmp/g.rs"])
}

func TestOverlayLoader_PrefersOverlayOverDisk(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/h.rs"
	require.NoError(t, os.WriteFile(path, []byte("fn on_disk() {}"), 0o644))

	v := New()
	loader := NewOverlayLoader(v)

	content, err := loader.FileContent(path)
	require.NoError(t, err)
	assert.Equal(t, "fn on_disk() {}", content)
	assert.False(t, loader.IsOverlaid(path))

	v.Open(path, "fn overlaid() {}")
	content, err = loader.FileContent(path)
	require.NoError(t, err)
	assert.Equal(t, "fn overlaid() {}", content)
	assert.True(t, loader.IsOverlaid(path))
}
