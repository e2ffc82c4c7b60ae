package semindex

import "strings"

// UseImport is one name brought into scope by a `use` declaration.
type UseImport struct {
	// ImportedName is the name visible in this file's scope (the
	// alias, if any, otherwise the last path segment, or "*" for a
	// glob import).
	ImportedName string
	// Path is the full `::`-joined path to the resolved target,
	// excluding any alias.
	Path  string
	Alias string // non-empty iff this came from `as alias`
	Glob  bool
}

// ExpandUseTree recursively expands a `use` statement's body (the
// part after `use ` and before the trailing `;`) into a flat list of
// imports. Handles `use a::b;`, `use a::{b, c::{d, e}};`,
// `use a::*;`, and `use a::b as c;`.
func ExpandUseTree(body string) []UseImport {
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, ";")
	return expandTree(body, "")
}

func expandTree(body, prefix string) []UseImport {
	body = strings.TrimSpace(body)

	if body == "*" {
		return []UseImport{{ImportedName: "*", Path: prefix, Glob: true}}
	}

	if strings.HasSuffix(body, "::*") {
		headPath := joinPath(prefix, body[:len(body)-len("::*")])
		return []UseImport{{ImportedName: "*", Path: headPath, Glob: true}}
	}

	if idx := strings.Index(body, "::{"); idx >= 0 && strings.HasSuffix(body, "}") {
		headPath := joinPath(prefix, body[:idx])
		inner := body[idx+3 : len(body)-1]
		var out []UseImport
		for _, part := range splitTopLevel(inner, ',') {
			out = append(out, expandTree(part, headPath)...)
		}
		return out
	}

	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		inner := body[1 : len(body)-1]
		var out []UseImport
		for _, part := range splitTopLevel(inner, ',') {
			out = append(out, expandTree(part, prefix)...)
		}
		return out
	}

	if name, alias, ok := splitAlias(body); ok {
		full := joinPath(prefix, name)
		return []UseImport{{ImportedName: alias, Path: full, Alias: alias}}
	}

	full := joinPath(prefix, body)
	return []UseImport{{ImportedName: lastSegment(full), Path: full}}
}

// joinPath concatenates a `::`-prefix and a suffix, both of which may
// be empty.
func joinPath(prefix, suffix string) string {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "::")
	suffix = strings.TrimSpace(suffix)
	if prefix == "" {
		return suffix
	}
	if suffix == "" {
		return prefix
	}
	return prefix + "::" + suffix
}

func lastSegment(path string) string {
	parts := strings.Split(path, "::")
	return parts[len(parts)-1]
}

// splitAlias separates `name as alias` from a bare `name`.
func splitAlias(s string) (name, alias string, ok bool) {
	idx := strings.Index(s, " as ")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+4:]), true
}

// splitTopLevel splits s on sep, respecting nested {} groups so a
// comma inside a nested use-tree group doesn't split prematurely.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	if last <= len(s) {
		out = append(out, s[last:])
	}
	var trimmed []string
	for _, part := range out {
		p := strings.TrimSpace(part)
		if p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return trimmed
}
