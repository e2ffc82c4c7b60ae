package postbuild

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rls/internal/analysisdb"
)

func TestParseMessage_MultiPrimarySpanYieldsMultipleDiagnostics(t *testing.T) {
	line := `{
		"message": "mismatched types",
		"level": "error",
		"code": {"code": "E0308"},
		"spans": [
			{"file_name": "src/a.rs", "is_primary": true, "line_start": 1, "line_end": 1, "column_start": 5, "column_end": 8},
			{"file_name": "src/b.rs", "is_primary": true, "line_start": 2, "line_end": 2, "column_start": 1, "column_end": 4}
		]
	}`
	diags, err := ParseMessage(line)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "src/a.rs", diags[0].File)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, "E0308", diags[0].Code)
	assert.Equal(t, "src/b.rs", diags[1].File)
}

func TestParseMessage_SecondarySpanBecomesRelatedInfo(t *testing.T) {
	line := `{
		"message": "cannot borrow as mutable",
		"level": "error",
		"spans": [
			{"file_name": "src/a.rs", "is_primary": true, "line_start": 3, "line_end": 3, "column_start": 1, "column_end": 2},
			{"file_name": "src/a.rs", "is_primary": false, "label": "first borrow here", "line_start": 1, "line_end": 1, "column_start": 1, "column_end": 2}
		]
	}`
	related := true
	var msg compilerMessage
	require.NoError(t, json.Unmarshal([]byte(line), &msg))
	diags := parseMessage(msg, &related)
	require.Len(t, diags, 1)
	require.Len(t, diags[0].Related, 1)
	assert.Equal(t, "first borrow here", diags[0].Related[0].Message)
}

func TestParseMessage_NoRelatedSupportEmitsIndependentDiagnostics(t *testing.T) {
	line := `{
		"message": "cannot borrow as mutable",
		"level": "error",
		"spans": [
			{"file_name": "src/a.rs", "is_primary": true, "line_start": 3, "line_end": 3, "column_start": 1, "column_end": 2},
			{"file_name": "src/a.rs", "is_primary": false, "label": "first borrow here", "line_start": 1, "line_end": 1, "column_start": 1, "column_end": 2}
		]
	}`
	var msg compilerMessage
	require.NoError(t, json.Unmarshal([]byte(line), &msg))
	noSupport := false
	diags := parseMessage(msg, &noSupport)
	require.Len(t, diags, 2)
	assert.Empty(t, diags[0].Related)
	assert.Equal(t, SeverityInformation, diags[1].Severity)
}

func TestParseMessage_MacroExpansionFollowsToSourceSpan(t *testing.T) {
	line := `{
		"message": "unused variable",
		"level": "warning",
		"spans": [
			{
				"file_name": "src/generated.rs",
				"is_primary": true,
				"line_start": 1, "line_end": 1, "column_start": 1, "column_end": 2,
				"expansion": {
					"macro_decl_name": "my_macro!",
					"span": {"file_name": "src/real.rs", "line_start": 5, "line_end": 5, "column_start": 3, "column_end": 4}
				}
			}
		]
	}`
	diags, err := ParseMessage(line)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "src/real.rs", diags[0].File)
	assert.Equal(t, 5, diags[0].Range.Start.Line)
}

func TestParseMessage_SuggestedReplacementBecomesSuggestion(t *testing.T) {
	line := `{
		"message": "unnecessary clone",
		"level": "warning",
		"spans": [
			{"file_name": "src/a.rs", "is_primary": true, "line_start": 1, "line_end": 1, "column_start": 1, "column_end": 10,
			 "suggested_replacement": "x"}
		]
	}`
	diags, err := ParseMessage(line)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Len(t, diags[0].Suggestions, 1)
	assert.Equal(t, "x", diags[0].Suggestions[0].NewText)
}

func TestParseMessage_ConsiderChangingChildBecomesSuggestion(t *testing.T) {
	line := `{
		"message": "type mismatch",
		"level": "error",
		"spans": [{"file_name": "src/a.rs", "is_primary": true, "line_start": 1, "line_end": 1, "column_start": 1, "column_end": 2}],
		"children": [
			{"message": "consider changing this to ` + "`" + `&x` + "`" + `", "level": "help",
			 "spans": [{"file_name": "src/a.rs", "line_start": 1, "line_end": 1, "column_start": 1, "column_end": 2}]}
		]
	}`
	diags, err := ParseMessage(line)
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.Len(t, diags[0].Suggestions, 1)
	assert.Equal(t, "&x", diags[0].Suggestions[0].NewText)
}

func TestProcessor_ClearsStaleDiagnosticsForReexaminedFiles(t *testing.T) {
	published := make(map[string][]Diagnostic)
	var mu sync.Mutex
	p := New(analysisdb.New(), func(file string, diags []Diagnostic) {
		mu.Lock()
		published[file] = diags
		mu.Unlock()
	}, nil)
	go p.Run()
	defer p.Stop()

	p.Submit(BuildOutput{
		ReexaminedFiles: []string{"src/a.rs", "src/b.rs"},
		DiagnosticLines: []string{
			`{"message":"oops","level":"error","spans":[{"file_name":"src/a.rs","is_primary":true,"line_start":1,"line_end":1,"column_start":1,"column_end":2}]}`,
		},
	})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		_, hasA := published["src/a.rs"]
		_, hasB := published["src/b.rs"]
		mu.Unlock()
		if hasA && hasB {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published["src/a.rs"], 1)
	assert.Empty(t, published["src/b.rs"])
}

func TestProcessor_DuplicateContentHashRemovesOlderJob(t *testing.T) {
	var order []string
	var mu sync.Mutex
	p := New(analysisdb.New(), func(file string, diags []Diagnostic) {
		mu.Lock()
		order = append(order, file)
		mu.Unlock()
	}, nil)

	out := BuildOutput{
		ReexaminedFiles: []string{"x.rs"},
		Analyses:        []analysisdb.Payload{{CrateRoot: "/ws/lib.rs"}},
	}
	p.Submit(out)
	assert.Equal(t, 1, p.Len())
	p.Submit(out) // same content hash: should remove the first, queue still length 1
	assert.Equal(t, 1, p.Len())
}
