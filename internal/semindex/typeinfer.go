package semindex

import "strings"

// inferDeclType performs the "light local type-inference pass" of
// spec.md §4.2 "Field and method lookup": given a binding's
// declaration header (a `let NAME = Type::ctor(...)`/
// `let NAME: Type = ...` initializer, or a `name: Type` fn-argument or
// struct-field entry), extract a best-effort type name. There is no
// compiler behind this — only what the header text itself says.
func inferDeclType(header string) string {
	eq := strings.Index(header, "=")
	colon := strings.IndexByte(header, ':')

	// A colon before the first `=` is a type annotation (`let p:
	// Point = ...`, `name: Type`); a colon after it belongs to the
	// initializer (a struct literal's `field: value`) and is never
	// the binding's own type.
	if colon >= 0 && (eq < 0 || colon < eq) {
		rest := strings.TrimSpace(header[colon+1:])
		if e := strings.Index(rest, "="); e >= 0 {
			rest = strings.TrimSpace(rest[:e])
		}
		rest = strings.TrimSuffix(strings.TrimSpace(rest), ",")
		if name := leadingTypeIdent(rest); name != "" {
			return name
		}
	}
	if eq >= 0 {
		rhs := strings.TrimSpace(header[eq+1:])
		if sep := strings.Index(rhs, "::"); sep > 0 {
			if name := leadingTypeIdent(rhs[:sep]); name != "" {
				return name
			}
		}
		if name := leadingTypeIdent(rhs); name != "" {
			return name
		}
	}
	return ""
}

// leadingTypeIdent strips a leading reference/mut marker and reads
// the identifier at the start of s (the bare type name, ignoring any
// generic-argument or lifetime suffix). Returns "" if s doesn't start
// with a valid Rust type identifier (a leading digit means this is a
// numeric literal, not a type).
func leadingTypeIdent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "&")
	for _, lt := range []string{"'a ", "'static "} {
		s = strings.TrimPrefix(s, lt)
	}
	s = strings.TrimPrefix(s, "mut ")
	s = strings.TrimSpace(s)
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return ""
	}
	i := 0
	for i < len(s) && identChar(s[i]) {
		i++
	}
	return s[:i]
}
