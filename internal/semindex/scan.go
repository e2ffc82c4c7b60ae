package semindex

// Statement is one top-level (depth-0) item's byte range in the
// masked text.
type Statement struct {
	Start int
	End   int
}

// TopLevelStatements walks masked top to bottom with a single-pass
// brace-depth counter, emitting the byte range of each depth-0
// statement. Attribute lists (`#[...]`) and generic-parameter angle
// brackets are tracked so `<` / `>` used as comparison operators
// inside expressions don't desynchronize bracket depth, and so a
// `#[derive(...)]` attribute's parens don't get counted as brace
// depth.
func TopLevelStatements(masked string) []Statement {
	var stmts []Statement
	depth := 0
	angleDepth := 0
	stmtStart := 0
	inAttr := false

	for i := 0; i < len(masked); i++ {
		c := masked[i]
		switch {
		case c == '#' && i+1 < len(masked) && masked[i+1] == '[':
			inAttr = true
		case inAttr && c == ']' && depth == 0 && angleDepth == 0:
			inAttr = false
		case c == '<' && depth == 0:
			// Only treat as a generic bracket at statement level
			// (inside a fn/struct/impl signature); inside a body it's
			// masked-safe to just ignore since we only care about {}.
			angleDepth++
		case c == '>' && depth == 0 && angleDepth > 0:
			angleDepth--
		case c == '{':
			depth++
		case c == '}':
			if depth > 0 {
				depth--
			}
			if depth == 0 {
				// A brace-delimited item just closed at top level:
				// the statement ends here.
				stmts = append(stmts, Statement{Start: stmtStart, End: i + 1})
				stmtStart = i + 1
			}
		case c == ';' && depth == 0 && angleDepth == 0:
			stmts = append(stmts, Statement{Start: stmtStart, End: i + 1})
			stmtStart = i + 1
		}
	}

	if stmtStart < len(masked) {
		if trimmed := trimSpaceRange(masked, stmtStart, len(masked)); trimmed.Start < trimmed.End {
			stmts = append(stmts, trimmed)
		}
	}

	return stmts
}

func trimSpaceRange(s string, start, end int) Statement {
	for start < end && isBlank(s[start]) {
		start++
	}
	for end > start && isBlank(s[end-1]) {
		end--
	}
	return Statement{Start: start, End: end}
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// LineOf returns a function mapping a byte offset into raw to its
// 1-based row and 0-based column, for populating Match.Row/Match.Col
// from the byte offsets the statement/brace scanners work in.
func LineOf(raw string) func(point int) (row, col int) {
	return func(point int) (int, int) {
		row, col := 1, point
		for i := 0; i < point && i < len(raw); i++ {
			if raw[i] == '\n' {
				row++
				col = point - i - 1
			}
		}
		return row, col
	}
}

// BraceDepthAt returns the brace nesting depth at byte offset point
// within masked, counting only `{`/`}` from the start of the text.
// Used to decide whether a cursor sits inside a function body (depth
// > 0) or at module/file scope (depth == 0).
func BraceDepthAt(masked string, point int) int {
	depth := 0
	if point > len(masked) {
		point = len(masked)
	}
	for i := 0; i < point; i++ {
		switch masked[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}

// EnclosingBraceRange returns the [start, end) byte range of the
// innermost {...} block containing point, or ok=false at file scope.
func EnclosingBraceRange(masked string, point int) (Statement, bool) {
	if point > len(masked) {
		point = len(masked)
	}
	depth := 0
	var starts []int
	for i := 0; i < point; i++ {
		switch masked[i] {
		case '{':
			starts = append(starts, i)
			depth++
		case '}':
			if depth > 0 {
				starts = starts[:len(starts)-1]
				depth--
			}
		}
	}
	if depth == 0 {
		return Statement{}, false
	}
	start := starts[len(starts)-1]

	innerDepth := 1
	for i := point; i < len(masked); i++ {
		switch masked[i] {
		case '{':
			innerDepth++
		case '}':
			innerDepth--
			if innerDepth == 0 {
				return Statement{Start: start, End: i + 1}, true
			}
		}
	}
	return Statement{Start: start, End: len(masked)}, true
}
