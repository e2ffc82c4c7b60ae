package protocol

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_IsNotification(t *testing.T) {
	withID := &Request{Method: "textDocument/definition", ID: float64(1)}
	assert.False(t, withID.IsNotification())

	without := &Request{Method: "textDocument/didOpen"}
	assert.True(t, without.IsNotification())
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassBlocking, ClassOf("initialize"))
	assert.Equal(t, ClassBlocking, ClassOf("shutdown"))
	assert.Equal(t, ClassNotification, ClassOf("textDocument/didChange"))
	assert.Equal(t, ClassNonBlocking, ClassOf("textDocument/definition"))
	assert.Equal(t, ClassNonBlocking, ClassOf("some/unknownMethod"), "unknown methods default to non-blocking so they get a timeout and fallback")
}

func TestLifecycle_HappyPath(t *testing.T) {
	lc := NewLifecycle()
	assert.Equal(t, StateUninit, lc.State())

	assert.Equal(t, DecisionHandle, lc.Admit("initialize"))
	assert.Equal(t, StateInit, lc.State())

	assert.Equal(t, DecisionHandle, lc.Admit("textDocument/didOpen"))

	assert.Equal(t, DecisionHandle, lc.Admit("shutdown"))
	assert.Equal(t, StateShutDown, lc.State())

	assert.Equal(t, DecisionExitClean, lc.Admit("exit"))
}

func TestLifecycle_RejectsRequestsBeforeInitialize(t *testing.T) {
	lc := NewLifecycle()
	assert.Equal(t, DecisionRejectNotInitialized, lc.Admit("textDocument/definition"))
	assert.Equal(t, StateUninit, lc.State(), "a rejected request must not change state")
}

func TestLifecycle_ExitWithoutShutdownIsDirty(t *testing.T) {
	lc := NewLifecycle()
	lc.Admit("initialize")
	assert.Equal(t, DecisionExitDirty, lc.Admit("exit"))
}

func TestLifecycle_DropsMessagesAfterShutdown(t *testing.T) {
	lc := NewLifecycle()
	lc.Admit("initialize")
	lc.Admit("shutdown")

	assert.Equal(t, DecisionDrop, lc.Admit("textDocument/hover"))
	assert.Equal(t, StateShutDown, lc.State())
}

func TestFramedWriter_EmitsContentLengthHeader(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFramedWriter(&buf)
	err := fw.WriteMessage(NewResponse(float64(7), map[string]string{"ok": "true"}))
	require.NoError(t, err)

	out := buf.String()
	header, body, found := strings.Cut(out, "\r\n\r\n")
	require.True(t, found)
	assert.True(t, strings.HasPrefix(header, "Content-Length: "))
	assert.Equal(t, len(body), len(out)-len(header)-4)
}

func TestFramedReader_ParsesRequest(t *testing.T) {
	body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	msg := fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)

	fr := NewFramedReader(strings.NewReader(msg))
	req, err := fr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "initialize", req.Method)
	assert.False(t, req.IsNotification())
}

func TestFramedReader_MultipleMessages(t *testing.T) {
	body1 := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	body2 := `{"jsonrpc":"2.0","method":"initialized","params":{}}`
	stream := fmt.Sprintf("Content-Length: %d\r\n\r\n%sContent-Length: %d\r\n\r\n%s", len(body1), body1, len(body2), body2)

	fr := NewFramedReader(strings.NewReader(stream))

	req1, err := fr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "initialize", req1.Method)

	req2, err := fr.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "initialized", req2.Method)
	assert.True(t, req2.IsNotification())

	_, err = fr.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFramedReader_MissingContentLength(t *testing.T) {
	fr := NewFramedReader(strings.NewReader("\r\n{}"))
	_, err := fr.ReadMessage()
	assert.Error(t, err)
}

