package dispatch

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rls/internal/protocol"
)

func initReq(t *testing.T, s *Server) {
	t.Helper()
	resp, _ := s.Handle(&protocol.Request{ID: 1, Method: "initialize"})
	require.NotNil(t, resp)
}

func TestHandle_RejectsBeforeInitialize(t *testing.T) {
	s := New(nil)
	s.OnBlocking("shutdown", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })

	resp, _ := s.Handle(&protocol.Request{ID: 1, Method: "shutdown"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeServerNotInitialized, resp.Error.Code)
}

func TestHandle_BlockingDrainsInFlightNonBlocking(t *testing.T) {
	s := New(nil)
	s.OnBlocking("initialize", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })
	initReq(t, s)

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	s.OnNonBlocking("textDocument/hover", func(string, []byte) (interface{}, error) {
		started.Done()
		<-release
		return "hover-result", nil
	}, nil)
	s.OnBlocking("shutdown", func(string, []byte) (interface{}, error) { return map[string]interface{}{"ok": true}, nil })

	nbDone := make(chan *protocol.Response, 1)
	go func() {
		resp, _ := s.Handle(&protocol.Request{ID: 2, Method: "textDocument/hover"})
		nbDone <- resp
	}()
	started.Wait()

	blockingDone := make(chan *protocol.Response, 1)
	go func() {
		resp, _ := s.Handle(&protocol.Request{ID: 3, Method: "shutdown"})
		blockingDone <- resp
	}()

	select {
	case <-blockingDone:
		require.FailNow(t, "blocking request returned before non-blocking work drained")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-nbDone
	resp := <-blockingDone
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestHandle_NonBlockingTimeoutReturnsFallback(t *testing.T) {
	s := New(nil)
	s.OnBlocking("initialize", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })
	initReq(t, s)

	block := make(chan struct{})
	s.OnNonBlocking("textDocument/completion", func(string, []byte) (interface{}, error) {
		<-block
		return []string{"late"}, nil
	}, []string{})
	defer close(block)

	// TimeoutFor("textDocument/completion") is 1500ms. The handler
	// stays blocked until the test ends, so Handle must not reply early
	// and must reply with the registered fallback once the timeout fires.
	req := &protocol.Request{ID: 4, Method: "textDocument/completion"}
	done := make(chan *protocol.Response, 1)
	go func() {
		resp, _ := s.Handle(req)
		done <- resp
	}()

	select {
	case resp := <-done:
		require.FailNow(t, "expected handler to still be running", resp)
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case resp := <-done:
		require.NotNil(t, resp)
		assert.Nil(t, resp.Error)
		assert.Equal(t, []string{}, resp.Result)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "expected the fallback once the completion timeout fired")
	}
}

func TestHandle_PoolRefusalReturnsFallbackImmediately(t *testing.T) {
	s := New(nil)
	s.OnBlocking("initialize", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })
	initReq(t, s)

	s.pool.totalSlots = 1
	block := make(chan struct{})
	s.OnNonBlocking("textDocument/hover", func(string, []byte) (interface{}, error) {
		<-block
		return "hover", nil
	}, "fallback-hover")
	defer close(block)

	started := make(chan struct{})
	go func() {
		close(started)
		s.Handle(&protocol.Request{ID: 5, Method: "textDocument/hover"})
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let the first request take the only slot

	resp, _ := s.Handle(&protocol.Request{ID: 6, Method: "textDocument/hover"})
	require.NotNil(t, resp)
	assert.Equal(t, "fallback-hover", resp.Result)
}

func TestHandle_UnknownMethodBlocking(t *testing.T) {
	s := New(nil)
	s.OnBlocking("initialize", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })
	initReq(t, s)

	resp, _ := s.Handle(&protocol.Request{ID: 7, Method: "shutdown"})
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
}

func TestHandle_NotificationHasNoReply(t *testing.T) {
	s := New(nil)
	s.OnBlocking("initialize", func(string, []byte) (interface{}, error) { return map[string]interface{}{}, nil })
	initReq(t, s)

	called := false
	s.OnNotification("textDocument/didOpen", func(method string, params []byte) {
		called = true
	})

	resp, _ := s.Handle(&protocol.Request{Method: "textDocument/didOpen", Params: json.RawMessage(`{}`)})
	assert.Nil(t, resp)
	assert.True(t, called)
}
