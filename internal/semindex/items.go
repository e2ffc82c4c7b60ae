package semindex

import "strings"

// itemKeyword maps a leading keyword (after visibility modifiers and
// attributes are stripped) to the Kind it introduces.
var itemKeyword = map[string]Kind{
	"fn":      KindFunction,
	"struct":  KindStruct,
	"enum":    KindEnum,
	"union":   KindUnion,
	"trait":   KindTrait,
	"const":   KindConst,
	"static":  KindStatic,
	"type":    KindType,
	"mod":     KindModule,
	"macro_rules!": KindMacro,
}

// ExtractTopLevelItems scans masked for depth-0 statements and
// returns a Match for each recognizable item declaration. raw is
// used to recover the original (unmasked) header text for Match.Context
// and docstrings.
func ExtractTopLevelItems(raw, masked string, lineOf func(point int) (row, col int)) []Match {
	var out []Match
	for _, stmt := range TopLevelStatements(masked) {
		header := strings.TrimSpace(masked[stmt.Start:stmt.End])
		kw, name, ok := classifyItem(header)
		if !ok {
			continue
		}
		namePoint := stmt.Start + strings.Index(masked[stmt.Start:stmt.End], name)
		row, col := 0, 0
		if lineOf != nil {
			row, col = lineOf(namePoint)
		}
		context := strings.TrimSpace(firstLine(raw[stmt.Start:min(stmt.End, len(raw))]))
		out = append(out, Match{
			Name:    name,
			Point:   namePoint,
			Row:     row,
			Col:     col,
			Kind:    kw,
			Context: context,
		})
	}
	return out
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// classifyItem strips leading visibility (`pub`, `pub(crate)`, etc.)
// and recognizes the item keyword and name.
func classifyItem(header string) (Kind, string, bool) {
	header = strings.TrimSpace(header)
	header = stripVisibility(header)
	header = stripModifiers(header)

	for kw, kind := range itemKeyword {
		if header == kw || strings.HasPrefix(header, kw+" ") || strings.HasPrefix(header, kw+"!") {
			rest := strings.TrimSpace(strings.TrimPrefix(header, kw))
			rest = strings.TrimPrefix(rest, "!")
			rest = strings.TrimSpace(rest)
			name := leadingIdent(rest)
			if name == "" {
				return 0, "", false
			}
			return kind, name, true
		}
	}
	return 0, "", false
}

func stripVisibility(s string) string {
	s = strings.TrimPrefix(s, "pub")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") {
		if idx := strings.IndexByte(s, ')'); idx >= 0 {
			s = strings.TrimSpace(s[idx+1:])
		}
	}
	return s
}

func stripModifiers(s string) string {
	for _, mod := range []string{"async ", "unsafe ", "extern \"C\" ", "default "} {
		for strings.HasPrefix(s, mod) {
			s = strings.TrimSpace(strings.TrimPrefix(s, mod))
		}
	}
	return s
}

func leadingIdent(s string) string {
	i := 0
	for i < len(s) && identChar(s[i]) {
		i++
	}
	return s[:i]
}
