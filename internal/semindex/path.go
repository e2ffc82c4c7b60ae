package semindex

import "strings"

// Segment is one `::`-separated component of a path, optionally
// carrying generic arguments (`Vec<T>` -> name "Vec", args ["T"]).
type Segment struct {
	Name string
	Args []string
}

// CompletionKind distinguishes the two ways an expression before the
// cursor can be completed.
type CompletionKind int

const (
	// CompletionPath completes after `::` or a bare identifier.
	CompletionPath CompletionKind = iota
	// CompletionField completes after `.`.
	CompletionField
)

// SplitResult is the outcome of splitting the expression immediately
// before the cursor.
type SplitResult struct {
	Context    string // the receiver/path prefix before the final segment
	SearchStr  string // the partial identifier being completed
	Kind       CompletionKind
	IsUse      bool // inside a `use` statement
	IsExtern   bool // inside an `extern crate` statement
	IsStruct   bool // inside a struct-literal field list
}

// identChar reports whether c can appear in a Rust identifier.
func identChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// SplitExpression walks masked backward from cursor through
// identifier and path-separator characters to find the start of the
// current expression, then splits it into context/searchstr/kind.
func SplitExpression(masked string, cursor int) SplitResult {
	if cursor > len(masked) {
		cursor = len(masked)
	}

	end := cursor
	start := cursor
	for start > 0 && (identChar(masked[start-1]) || masked[start-1] == ':' || masked[start-1] == '.') {
		start--
	}
	expr := masked[start:end]

	if idx := strings.LastIndex(expr, "."); idx >= 0 && !strings.Contains(expr[idx:], "::") {
		return SplitResult{
			Context:   expr[:idx],
			SearchStr: expr[idx+1:],
			Kind:      CompletionField,
			IsStruct:  looksLikeStructLiteral(masked, start),
		}
	}

	if idx := strings.LastIndex(expr, "::"); idx >= 0 {
		return SplitResult{
			Context:   expr[:idx],
			SearchStr: expr[idx+2:],
			Kind:      CompletionPath,
			IsUse:     isInsideUseStatement(masked, start),
			IsExtern:  isInsideExternCrate(masked, start),
		}
	}

	return SplitResult{
		Context:   "",
		SearchStr: expr,
		Kind:      CompletionPath,
		IsUse:     isInsideUseStatement(masked, start),
		IsExtern:  isInsideExternCrate(masked, start),
	}
}

// ParsePath splits a `::`-joined path string (with no generics syntax
// resolution beyond angle-bracket stripping) into Segments.
func ParsePath(path string) []Segment {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "::")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, args := splitGenericArgs(p)
		segs = append(segs, Segment{Name: name, Args: args})
	}
	return segs
}

func splitGenericArgs(seg string) (name string, args []string) {
	idx := strings.IndexByte(seg, '<')
	if idx < 0 || !strings.HasSuffix(seg, ">") {
		return seg, nil
	}
	name = seg[:idx]
	inner := seg[idx+1 : len(seg)-1]
	depth := 0
	last := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[last:i]))
				last = i + 1
			}
		}
	}
	if last < len(inner) {
		args = append(args, strings.TrimSpace(inner[last:]))
	}
	return name, args
}

// looksLikeStructLiteral reports whether the statement containing
// point (scanning backward for the enclosing `{`) looks like a struct
// literal's field list (`Name { field: ... }`) rather than a block.
// Heuristic: the character before the enclosing `{`, skipping
// whitespace, is an identifier character (the struct's type name).
func looksLikeStructLiteral(masked string, point int) bool {
	enclosing, ok := EnclosingBraceRange(masked, point)
	if !ok {
		return false
	}
	i := enclosing.Start - 1
	for i >= 0 && isBlank(masked[i]) {
		i--
	}
	return i >= 0 && identChar(masked[i])
}

func isInsideUseStatement(masked string, point int) bool {
	stmt := currentStatementStart(masked, point)
	trimmed := strings.TrimLeft(masked[stmt:point], " \t\n\r")
	return strings.HasPrefix(trimmed, "use ") || strings.HasPrefix(trimmed, "use{") || trimmed == "use"
}

func isInsideExternCrate(masked string, point int) bool {
	stmt := currentStatementStart(masked, point)
	trimmed := strings.TrimLeft(masked[stmt:point], " \t\n\r")
	return strings.HasPrefix(trimmed, "extern crate")
}

// currentStatementStart finds the start of the statement containing
// point by scanning backward to the nearest preceding `;`, `{`, or
// `}` (or the start of the file).
func currentStatementStart(masked string, point int) int {
	for i := point - 1; i >= 0; i-- {
		if masked[i] == ';' || masked[i] == '{' || masked[i] == '}' {
			return i + 1
		}
	}
	return 0
}
