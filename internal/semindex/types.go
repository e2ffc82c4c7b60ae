// Package semindex is the source-driven semantic index: a
// racer-style resolver that answers completion, goto-definition, and
// hover queries by scanning Rust source text directly, without
// invoking the compiler. It masks comments and strings, walks `use`
// trees, and resolves dotted/coloned paths segment by segment against
// lexical scope.
package semindex

// Kind tags what a Match refers to.
type Kind int

const (
	KindStruct Kind = iota
	KindEnum
	KindEnumVariant
	KindUnion
	KindTrait
	KindFunction
	KindMethod
	KindConst
	KindStatic
	KindType
	KindAssocType
	KindTypeParameter
	KindFnArg
	KindLet
	KindIfLet
	KindWhileLet
	KindFor
	KindMatchArm
	KindStructField
	KindModule
	KindCrate
	KindMacro
	KindBuiltin
	// KindUseAlias wraps another Match; see Match.Alias. It never
	// wraps another UseAlias.
	KindUseAlias
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindEnumVariant:
		return "enum_variant"
	case KindUnion:
		return "union"
	case KindTrait:
		return "trait"
	case KindFunction:
		return "function"
	case KindMethod:
		return "method"
	case KindConst:
		return "const"
	case KindStatic:
		return "static"
	case KindType:
		return "type"
	case KindAssocType:
		return "assoc_type"
	case KindTypeParameter:
		return "type_parameter"
	case KindFnArg:
		return "fn_arg"
	case KindLet:
		return "let"
	case KindIfLet:
		return "if_let"
	case KindWhileLet:
		return "while_let"
	case KindFor:
		return "for"
	case KindMatchArm:
		return "match_arm"
	case KindStructField:
		return "struct_field"
	case KindModule:
		return "module"
	case KindCrate:
		return "crate"
	case KindMacro:
		return "macro"
	case KindBuiltin:
		return "builtin"
	case KindUseAlias:
		return "use_alias"
	default:
		return "unknown"
	}
}

// Match is the unit of semantic-index result: a resolved definition
// or candidate, whether found by exact resolution or prefix
// completion search.
type Match struct {
	Name       string
	FilePath   string
	Point      int // byte offset of the definition
	Row        int // 1-based, 0 if unknown
	Col        int // 0-based, 0 if unknown
	Kind       Kind
	Generics   []string // generic-argument list, if any
	Context    string   // header line of the definition
	Docstring  string
	Local      bool
	// Alias holds the wrapped Match when Kind == KindUseAlias. Never
	// itself has Kind == KindUseAlias.
	Alias *Match
}

// EffectiveKind returns m.Kind, resolving through a UseAlias wrapper
// so callers that branch on Kind don't need special-case alias
// handling.
func (m *Match) EffectiveKind() Kind {
	if m.Kind == KindUseAlias && m.Alias != nil {
		return m.Alias.Kind
	}
	return m.Kind
}

// Scope denotes a point inside a file for lexical lookups.
type Scope struct {
	FilePath string
	Point    int
}

// Namespace is a bitset of the namespaces a search may target, so
// e.g. field lookups don't return functions.
type Namespace uint16

const (
	NSCrate Namespace = 1 << iota
	NSMod
	NSEnum
	NSStruct
	NSUnion
	NSTrait
	NSTypeDef
	NSConst
	NSStatic
	NSFunc
	NSMacro
	NSPrimitive
	NSStdMacro
	// NSField is a struct field, returned only by field-access
	// completion/goto (Namespace isn't in NSAll: a plain path lookup
	// never targets a bare field name the way it can a function or
	// type).
	NSField

	NSAll = NSCrate | NSMod | NSEnum | NSStruct | NSUnion | NSTrait |
		NSTypeDef | NSConst | NSStatic | NSFunc | NSMacro | NSPrimitive | NSStdMacro
)

// Has reports whether ns includes member.
func (ns Namespace) Has(member Namespace) bool {
	return ns&member != 0
}

// NamespaceOf returns the namespace a Kind belongs to, for filtering
// search results against a requested Namespace mask.
func NamespaceOf(k Kind) Namespace {
	switch k {
	case KindCrate:
		return NSCrate
	case KindModule:
		return NSMod
	case KindEnum:
		return NSEnum
	case KindStruct:
		return NSStruct
	case KindUnion:
		return NSUnion
	case KindTrait:
		return NSTrait
	case KindType, KindAssocType, KindTypeParameter:
		return NSTypeDef
	case KindConst:
		return NSConst
	case KindStatic:
		return NSStatic
	case KindFunction, KindMethod:
		return NSFunc
	case KindMacro:
		return NSMacro
	case KindBuiltin:
		return NSPrimitive
	case KindStructField:
		return NSField
	default:
		return 0
	}
}

// SearchMode selects between goto-definition (exact name match) and
// completion (prefix match).
type SearchMode int

const (
	ModeExact SearchMode = iota
	ModePrefix
)
