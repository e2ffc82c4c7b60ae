package semindex

import "strings"

// ExtractDocstring walks upward from defLine (1-based, in raw text,
// not masked — doc comments matter here) collecting contiguous `///`
// / `//!` lines immediately above the definition, skipping over
// multi-line attributes (`#[...]` spanning several lines) that sit
// between the docs and the item. `////`-style banner comments are
// rejected, matching rustdoc's own treatment of 4-or-more slashes as
// a non-doc comment.
func ExtractDocstring(lt *LineTableLike, defLine int) string {
	var docLines []string
	line := defLine - 1
	inAttr := false

	for line >= 1 {
		text, ok := lt.LineText(line)
		if !ok {
			break
		}
		trimmed := strings.TrimSpace(text)

		if inAttr {
			if strings.HasPrefix(trimmed, "#[") {
				inAttr = false
			}
			line--
			continue
		}
		if strings.HasPrefix(trimmed, "#[") {
			// A whole attribute on one line.
			line--
			continue
		}
		if strings.HasSuffix(trimmed, "]") && !strings.HasPrefix(trimmed, "//") {
			// The last line of an attribute spanning several lines.
			inAttr = true
			line--
			continue
		}

		switch {
		case isDocBanner(trimmed):
			line--
			continue
		case strings.HasPrefix(trimmed, "///"):
			docLines = append([]string{strings.TrimPrefix(strings.TrimPrefix(trimmed, "///"), " ")}, docLines...)
			line--
		case strings.HasPrefix(trimmed, "//!"):
			docLines = append([]string{strings.TrimPrefix(strings.TrimPrefix(trimmed, "//!"), " ")}, docLines...)
			line--
		case trimmed == "":
			// A single blank line between docs and attributes is
			// tolerated; two in a row ends the walk.
			if prevWasBlank(lt, line) {
				line = 0
			} else {
				line--
			}
		default:
			line = 0
		}
	}

	return stripHiddenTestLines(strings.Join(docLines, "\n"))
}

func looksLikeAttrTail(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#[") || strings.Contains(trimmed, "#[")
}

// isDocBanner reports a `////`-or-more style banner comment, which
// rustdoc treats as a regular (non-doc) comment.
func isDocBanner(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "////") {
		return false
	}
	i := 0
	for i < len(trimmed) && trimmed[i] == '/' {
		i++
	}
	return i >= 4
}

func prevWasBlank(lt *LineTableLike, line int) bool {
	if line-1 < 1 {
		return true
	}
	text, ok := lt.LineText(line - 1)
	return !ok || strings.TrimSpace(text) == ""
}

// stripHiddenTestLines removes rustdoc's hidden-test-scaffolding
// lines (a leading `#` inside a ```rust/no_run/ignore/should_panic/
// compile_fail fence, or a fence with no info string) from doc.
func stripHiddenTestLines(doc string) string {
	lines := strings.Split(doc, "\n")
	var out []string
	inRustFence := false

	for _, l := range lines {
		trimmed := strings.TrimSpace(l)
		if strings.HasPrefix(trimmed, "```") {
			if !inRustFence {
				info := strings.TrimPrefix(trimmed, "```")
				inRustFence = isRustFenceInfo(info)
			} else {
				inRustFence = false
			}
			out = append(out, l)
			continue
		}
		if inRustFence && strings.HasPrefix(strings.TrimSpace(l), "# ") {
			continue
		}
		if inRustFence && strings.TrimSpace(l) == "#" {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func isRustFenceInfo(info string) bool {
	info = strings.TrimSpace(info)
	if info == "" {
		return true
	}
	for _, tag := range strings.Split(info, ",") {
		switch strings.TrimSpace(tag) {
		case "rust", "no_run", "ignore", "should_panic", "compile_fail":
			return true
		}
	}
	return false
}

// LineTableLike is the minimal surface doc extraction needs from a
// line table; satisfied by *vfs.LineTable.
type LineTableLike struct {
	lineTextFn func(row int) (string, bool)
}

// NewLineTableAdapter wraps any LineText-shaped function so
// ExtractDocstring doesn't need to import package vfs directly
// (avoids a dependency cycle since vfs has no reason to know about
// the semantic index).
func NewLineTableAdapter(lineTextFn func(row int) (string, bool)) *LineTableLike {
	return &LineTableLike{lineTextFn: lineTextFn}
}

// LineText delegates to the wrapped function.
func (lt *LineTableLike) LineText(row int) (string, bool) {
	return lt.lineTextFn(row)
}
