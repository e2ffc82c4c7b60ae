package semindex

// Mask replaces every byte inside a line comment, block comment, or
// string/char literal with a space, preserving length and all other
// byte offsets. The result is used for all subsequent syntactic
// scanning (brace matching, use-tree extraction, identifier
// boundaries) so that a `{` or `"` appearing inside a comment never
// desynchronizes the scanner.
//
// This is a hand-rolled byte scanner rather than a regex or a real
// parser, the same tradeoff a tree-sitter-equipped sibling codebase
// makes for Rust specifically: syntactic masking doesn't need a full
// grammar, just correct handling of comment/string/raw-string/char
// nesting and escapes.
func Mask(raw string) string {
	out := []byte(raw)
	n := len(out)

	for i := 0; i < n; i++ {
		switch {
		case out[i] == '/' && i+1 < n && out[i+1] == '/':
			start := i
			for i < n && out[i] != '\n' {
				i++
			}
			blankRange(out, start, i)
			i-- // let the loop's i++ land back on '\n' (or n)

		case out[i] == '/' && i+1 < n && out[i+1] == '*':
			start := i
			depth := 1
			i += 2
			for i < n && depth > 0 {
				if i+1 < n && out[i] == '/' && out[i+1] == '*' {
					depth++
					i += 2
					continue
				}
				if i+1 < n && out[i] == '*' && out[i+1] == '/' {
					depth--
					i += 2
					continue
				}
				i++
			}
			blankRange(out, start, i)
			i--

		case out[i] == '"':
			start := i
			i++
			for i < n && out[i] != '"' {
				if out[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				i++
			}
			if i < n {
				i++ // consume closing quote
			}
			blankRange(out, start, i)
			i--

		case out[i] == 'r' && isRawStringStart(out, i):
			start, end := scanRawString(out, i)
			blankRange(out, start, end)
			i = end - 1

		case out[i] == '\'' && isCharLiteral(out, i):
			start, end := scanCharLiteral(out, i)
			blankRange(out, start, end)
			i = end - 1
		}
	}

	return string(out)
}

// blankRange replaces out[start:end] with spaces, except for any
// newlines, which are preserved so line numbers stay intact for
// diagnostics built against the masked text.
func blankRange(out []byte, start, end int) {
	for i := start; i < end && i < len(out); i++ {
		if out[i] != '\n' {
			out[i] = ' '
		}
	}
}

// isRawStringStart reports whether out[i:] begins a raw string
// literal: `r`, `r#`, `r##`, etc. followed by `"`.
func isRawStringStart(out []byte, i int) bool {
	j := i + 1
	for j < len(out) && out[j] == '#' {
		j++
	}
	return j < len(out) && out[j] == '"'
}

// scanRawString returns [start, end) of a raw string literal starting
// at i (which points at the leading 'r').
func scanRawString(out []byte, i int) (start, end int) {
	start = i
	j := i + 1
	hashes := 0
	for j < len(out) && out[j] == '#' {
		hashes++
		j++
	}
	if j >= len(out) || out[j] != '"' {
		return start, start + 1
	}
	j++ // past opening quote
	for j < len(out) {
		if out[j] == '"' {
			k := j + 1
			matched := 0
			for k < len(out) && out[k] == '#' && matched < hashes {
				matched++
				k++
			}
			if matched == hashes {
				return start, k
			}
		}
		j++
	}
	return start, len(out)
}

// isCharLiteral reports whether out[i] ('\'') plausibly begins a char
// literal rather than a lifetime (`'a`) or label (`'outer:`). A char
// literal is `'x'` or `'\x'...'` with a closing quote within a few
// bytes; a lifetime/label is an identifier with no closing quote
// immediately after.
func isCharLiteral(out []byte, i int) bool {
	j := i + 1
	if j >= len(out) {
		return false
	}
	if out[j] == '\\' {
		j++
		for j < len(out) && out[j] != '\'' && out[j] != '\n' {
			j++
		}
		return j < len(out) && out[j] == '\''
	}
	// Single byte then a closing quote: 'x'
	if j+1 < len(out) && out[j+1] == '\'' {
		return true
	}
	return false
}

func scanCharLiteral(out []byte, i int) (start, end int) {
	start = i
	j := i + 1
	if j < len(out) && out[j] == '\\' {
		j++
		for j < len(out) && out[j] != '\'' {
			j++
		}
	} else {
		j++
	}
	if j < len(out) && out[j] == '\'' {
		j++
	}
	return start, j
}
