package compiler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct{ overlays map[string]string }

func (f fakeLoader) Overlay(path string) (string, bool) {
	t, ok := f.overlays[path]
	return t, ok
}

type fakeRunner struct {
	stdout, stderr []byte
	exitZero       bool
	err            error
	gotOverlay     map[string]string
}

func (f *fakeRunner) Run(ctx context.Context, inv Invocation, overlay map[string]string) ([]byte, []byte, bool, error) {
	f.gotOverlay = overlay
	return f.stdout, f.stderr, f.exitZero, f.err
}

func TestDriverRun_SplitsDiagnosticLines(t *testing.T) {
	stderr := []byte(`{"message":"mismatched types","level":"error"}
not json, a plain warning line

{"message":"unused import","level":"warning"}
`)
	runner := &fakeRunner{stderr: stderr, exitZero: false}
	d := New(fakeLoader{overlays: map[string]string{}}, runner)

	res, err := d.Run(context.Background(), Invocation{Command: []string{"rustc", "main.rs"}})
	require.NoError(t, err)
	require.Len(t, res.DiagnosticLines, 2)
	assert.Contains(t, res.DiagnosticLines[0], "mismatched types")
	assert.Contains(t, res.DiagnosticLines[1], "unused import")
	assert.False(t, res.ExitZero)
}

func TestDriverRun_ParsesAnalysisEnvelope(t *testing.T) {
	stdout := []byte(`{"crate_root":"/ws/src/lib.rs","analysis":{"defs":[1,2,3]}}`)
	runner := &fakeRunner{stdout: stdout, exitZero: true}
	d := New(fakeLoader{overlays: map[string]string{}}, runner)

	res, err := d.Run(context.Background(), Invocation{Command: []string{"rustc", "lib.rs"}})
	require.NoError(t, err)
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, "/ws/src/lib.rs", res.Analyses[0].CrateRoot)
	assert.JSONEq(t, `{"defs":[1,2,3]}`, string(res.Analyses[0].Data))
	assert.True(t, res.ExitZero)
}

func TestDriverRun_BuildsOverlayManifestFromInputFiles(t *testing.T) {
	loader := fakeLoader{overlays: map[string]string{
		"/ws/src/main.rs": "fn main() {}",
	}}
	runner := &fakeRunner{exitZero: true}
	d := New(loader, runner)

	_, err := d.Run(context.Background(), Invocation{
		Command:    []string{"rustc", "main.rs"},
		InputFiles: []string{"/ws/src/main.rs", "/ws/src/lib.rs"},
	})
	require.NoError(t, err)
	require.Len(t, runner.gotOverlay, 1)
	assert.Equal(t, "fn main() {}", runner.gotOverlay["/ws/src/main.rs"])
}

func TestParseAnalysisPayload_IgnoresPlainOutput(t *testing.T) {
	_, ok := parseAnalysisPayload([]byte("Compiling foo v0.1.0\n"))
	assert.False(t, ok)
}

func TestSplitDiagnosticLines_SkipsInvalidJSON(t *testing.T) {
	lines := splitDiagnosticLines([]byte("warning: unused\n{\"level\":\"error\"}\n"))
	require.Len(t, lines, 1)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &v))
}
