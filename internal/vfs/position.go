package vfs

import "unicode/utf16"

// Point is a 0-based byte offset into a file's raw text.
type Point int

// Coords is a 1-based row, 0-based byte column within that row.
type Coords struct {
	Row int
	Col int
}

// Position is the wire coordinate system: 0-based line, 0-based
// character measured in UTF-16 code units (the units LSP-style
// protocols use on the wire).
type Position struct {
	Line      int
	Character int
}

// LineTable converts between byte offsets and row/column coordinates
// for one file's text. It is built lazily on first access and
// invalidated whenever the file is replaced in the VFS.
type LineTable struct {
	text        string
	lineStarts  []int // byte offset of the start of each line, 0-indexed by row-1
}

// NewLineTable scans text once, recording the byte offset of every
// line start.
func NewLineTable(text string) *LineTable {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineTable{text: text, lineStarts: starts}
}

// PointToCoords converts a byte offset to 1-based row / 0-based byte
// column. Returns ok=false for an out-of-range point rather than
// panicking.
func (lt *LineTable) PointToCoords(p Point) (Coords, bool) {
	if p < 0 || int(p) > len(lt.text) {
		return Coords{}, false
	}
	row := lt.rowForOffset(int(p))
	col := int(p) - lt.lineStarts[row]
	return Coords{Row: row + 1, Col: col}, true
}

// CoordsToPoint is the inverse of PointToCoords.
func (lt *LineTable) CoordsToPoint(c Coords) (Point, bool) {
	if c.Row < 1 || c.Row > len(lt.lineStarts) {
		return 0, false
	}
	lineStart := lt.lineStarts[c.Row-1]
	lineEnd := len(lt.text)
	if c.Row < len(lt.lineStarts) {
		lineEnd = lt.lineStarts[c.Row]
	}
	p := lineStart + c.Col
	if p < lineStart || p > lineEnd {
		return 0, false
	}
	return Point(p), true
}

// rowForOffset returns the 0-indexed row containing byte offset off
// via binary search over line starts.
func (lt *LineTable) rowForOffset(off int) int {
	lo, hi := 0, len(lt.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lt.lineStarts[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// LineText returns the text of 1-based row (without the trailing
// newline).
func (lt *LineTable) LineText(row int) (string, bool) {
	if row < 1 || row > len(lt.lineStarts) {
		return "", false
	}
	start := lt.lineStarts[row-1]
	end := len(lt.text)
	if row < len(lt.lineStarts) {
		end = lt.lineStarts[row] - 1 // drop the '\n'
		if end < start {
			end = start
		}
	}
	line := lt.text[start:end]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	return line, true
}

// RowStart returns the byte offset of the start of 1-based row.
func (lt *LineTable) RowStart(row int) (int, bool) {
	if row < 1 || row > len(lt.lineStarts) {
		return 0, false
	}
	return lt.lineStarts[row-1], true
}

// PositionToPoint converts a wire Position (UTF-16 line/character) to
// a byte offset, decoding only the target line to count UTF-16 units.
// Out-of-range input yields ok=false, never a panic.
func (lt *LineTable) PositionToPoint(pos Position) (Point, bool) {
	row := pos.Line + 1
	line, ok := lt.LineText(row)
	if !ok || pos.Character < 0 {
		return 0, false
	}
	units := utf16.Encode([]rune(line))
	if pos.Character > len(units) {
		return 0, false
	}
	// Re-encode the prefix to count UTF-8 bytes consumed.
	prefix := utf16.Decode(units[:pos.Character])
	byteLen := len(string(prefix))
	lineStart := lt.lineStarts[row-1]
	return Point(lineStart + byteLen), true
}

// PointToPosition is the inverse of PositionToPoint.
func (lt *LineTable) PointToPosition(p Point) (Position, bool) {
	coords, ok := lt.PointToCoords(p)
	if !ok {
		return Position{}, false
	}
	line, ok := lt.LineText(coords.Row)
	if !ok || coords.Col > len(line) {
		return Position{}, false
	}
	units := utf16.Encode([]rune(line[:coords.Col]))
	return Position{Line: coords.Row - 1, Character: len(units)}, true
}

// UTF16Len returns the length of s in UTF-16 code units, used to
// validate a ReplaceText change's stated range_length against the
// span it claims to replace.
func UTF16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}
