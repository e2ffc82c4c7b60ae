package semindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask_PreservesLength(t *testing.T) {
	sources := []string{
		`fn main() { let s = "hello // not a comment"; }`,
		"// a line comment\nfn f() {}",
		"/* a block /* nested */ comment */ fn g() {}",
		`let c = '"'; // char literal containing a quote`,
		"let r = r#\"raw \"string\" here\"#;",
		"let lifetime: &'a str = x;",
	}
	for _, src := range sources {
		masked := Mask(src)
		assert.Equal(t, len(src), len(masked), "masked length must equal raw length for %q", src)
	}
}

func TestMask_BlanksStringAndCommentBytes(t *testing.T) {
	src := `fn f() { let x = "secret"; } // trailing`
	masked := Mask(src)

	for i := range src {
		inString := i >= stringsIndex(src, `"secret"`) && i < stringsIndex(src, `"secret"`)+len(`"secret"`)
		inComment := i >= stringsIndex(src, "// trailing")
		if inString || inComment {
			if src[i] != '\n' {
				assert.Equal(t, byte(' '), masked[i], "byte %d should be blanked", i)
			}
		} else {
			assert.Equal(t, src[i], masked[i], "byte %d outside string/comment must be preserved", i)
		}
	}
}

func TestMask_LeavesLifetimeAlone(t *testing.T) {
	src := `fn f<'a>(x: &'a str) -> &'a str { x }`
	masked := Mask(src)
	assert.Contains(t, masked, "'a", "a lifetime must not be mistaken for a char literal and blanked")
}

func TestMask_PreservesNewlinesInsideBlockComment(t *testing.T) {
	src := "/* line one\nline two\nline three */\nfn f() {}"
	masked := Mask(src)
	assert.Equal(t, 2, countByte(masked[:len("/* line one\nline two\nline three */")], '\n'))
}

func stringsIndex(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func countByte(s string, b byte) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			n++
		}
	}
	return n
}
