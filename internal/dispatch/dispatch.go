// Package dispatch implements the Request Dispatcher: it classifies
// inbound protocol messages, runs notifications and blocking requests
// on the I/O thread (blocking requests only after draining in-flight
// non-blocking work), and runs non-blocking requests on a bounded
// worker pool with a per-method timeout and handler-defined fallback.
package dispatch

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/protocol"
)

// NotificationHandler handles a notification synchronously on the I/O
// thread. It must not block on the build queue except to enqueue a
// build and return.
type NotificationHandler func(method string, params []byte)

// BlockingHandler handles a blocking request on the I/O thread and
// returns the result (or error) to reply with.
type BlockingHandler func(method string, params []byte) (interface{}, error)

// NonBlockingHandler runs on the worker pool and returns the result to
// reply with.
type NonBlockingHandler func(method string, params []byte) (interface{}, error)

// registeredNonBlocking pairs a handler with its static fallback value
// (e.g. an empty list), known up front rather than computed by the
// handler itself — the fallback must be available the instant the
// timeout fires or the pool refuses the request, before the handler
// has necessarily produced anything.
type registeredNonBlocking struct {
	handler  NonBlockingHandler
	fallback interface{}
}

// Server is the Request Dispatcher.
type Server struct {
	lifecycle *protocol.Lifecycle
	pool      *pool
	log       arbor.ILogger

	notifications map[string]NotificationHandler
	blocking      map[string]BlockingHandler
	nonBlocking   map[string]registeredNonBlocking

	mu          sync.Mutex
	inFlightNB  int
	drainCond   *sync.Cond
	quiescent   atomic.Bool
}

// New returns an empty dispatcher; register handlers with the On*
// methods before calling Handle.
func New(log arbor.ILogger) *Server {
	s := &Server{
		lifecycle:     protocol.NewLifecycle(),
		pool:          newPool(),
		log:           log,
		notifications: make(map[string]NotificationHandler),
		blocking:      make(map[string]BlockingHandler),
		nonBlocking:   make(map[string]registeredNonBlocking),
	}
	s.drainCond = sync.NewCond(&s.mu)
	return s
}

// OnNotification registers a notification handler for method.
func (s *Server) OnNotification(method string, h NotificationHandler) { s.notifications[method] = h }

// OnBlocking registers a blocking-request handler for method.
func (s *Server) OnBlocking(method string, h BlockingHandler) { s.blocking[method] = h }

// OnNonBlocking registers a non-blocking-request handler for method,
// with the static fallback value used on timeout or pool refusal.
func (s *Server) OnNonBlocking(method string, h NonBlockingHandler, fallback interface{}) {
	s.nonBlocking[method] = registeredNonBlocking{handler: h, fallback: fallback}
}

// Lifecycle exposes the server's lifecycle state machine so the I/O
// loop can act on DecisionExitClean/DecisionExitDirty.
func (s *Server) Lifecycle() *protocol.Lifecycle { return s.lifecycle }

// SetQuiescent sets the quiescence flag, true when a potentially
// mutating request begins and reset to false on any incoming change
// notification. Exposed so VFS-mutating notification handlers can
// reset it without importing this package's internals.
func (s *Server) SetQuiescent(v bool) { s.quiescent.Store(v) }

// Quiescent reports the current quiescence flag.
func (s *Server) Quiescent() bool { return s.quiescent.Load() }

// Handle processes one inbound request according to its lifecycle
// admission and dispatch class, returning a *protocol.Response to
// send (nil for notifications and dropped messages) and the lifecycle
// decision the I/O loop must act on.
func (s *Server) Handle(req *protocol.Request) (*protocol.Response, protocol.Decision) {
	decision := s.lifecycle.Admit(req.Method)

	switch decision {
	case protocol.DecisionRejectNotInitialized:
		if req.IsNotification() {
			return nil, decision
		}
		return protocol.NewErrorResponse(req.ID, protocol.CodeServerNotInitialized, "server not yet initialized", nil), decision
	case protocol.DecisionDrop, protocol.DecisionExitClean, protocol.DecisionExitDirty:
		return nil, decision
	}

	class := protocol.ClassOf(req.Method)
	switch class {
	case protocol.ClassNotification:
		s.handleNotification(req)
		return nil, decision
	case protocol.ClassBlocking:
		return s.handleBlocking(req), decision
	default:
		return s.handleNonBlocking(req), decision
	}
}

// Serve reads framed requests from r and writes framed replies to w
// until the connection closes or the lifecycle reaches an exit
// decision, returning the process exit code spec.md §6 assigns to
// that outcome. It is the single I/O-thread loop described by §5,
// reusable for both the primary stdio transport and the secondary
// loopback transport `cmd/rlsctl` drives.
func (s *Server) Serve(r *protocol.FramedReader, w *protocol.FramedWriter) int {
	for {
		req, err := r.ReadMessage()
		if err != nil {
			if err == io.EOF {
				return 0
			}
			if s.log != nil {
				s.log.Error().Err(err).Msg("dispatch: framed read failed")
			}
			return 101
		}

		resp, decision := s.Handle(req)
		if resp != nil {
			if werr := w.WriteMessage(resp); werr != nil && s.log != nil {
				s.log.Error().Err(werr).Msg("dispatch: framed write failed")
			}
		}

		switch decision {
		case protocol.DecisionExitClean:
			return 0
		case protocol.DecisionExitDirty:
			return 1
		}
	}
}

func (s *Server) handleNotification(req *protocol.Request) {
	h, ok := s.notifications[req.Method]
	if !ok {
		return
	}
	h(req.Method, req.Params)
}

// handleBlocking drains every in-flight non-blocking request before
// running, establishing the happens-before guarantee of spec.md §5:
// "blocking requests observe the effect of every notification and
// non-blocking request that preceded them on the wire".
func (s *Server) handleBlocking(req *protocol.Request) *protocol.Response {
	s.drainNonBlocking()

	h, ok := s.blocking[req.Method]
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method, nil)
	}
	result, err := h(req.Method, req.Params)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, err.Error(), nil)
	}
	if result == nil {
		return protocol.NewErrorResponse(req.ID, protocol.CodeRequestFailed, "handler returned no result", nil)
	}
	return protocol.NewResponse(req.ID, result)
}

func (s *Server) drainNonBlocking() {
	s.mu.Lock()
	for s.inFlightNB > 0 {
		s.drainCond.Wait()
	}
	s.mu.Unlock()
}

func (s *Server) beginNB() {
	s.mu.Lock()
	s.inFlightNB++
	s.mu.Unlock()
}

func (s *Server) endNB() {
	s.mu.Lock()
	s.inFlightNB--
	if s.inFlightNB == 0 {
		s.drainCond.Broadcast()
	}
	s.mu.Unlock()
}

// handleNonBlocking dispatches to the bounded worker pool with a
// per-method timeout; on timeout or pool refusal it replies with the
// handler's declared fallback rather than cancelling the worker.
func (s *Server) handleNonBlocking(req *protocol.Request) *protocol.Response {
	reg, ok := s.nonBlocking[req.Method]
	if !ok {
		return protocol.NewErrorResponse(req.ID, protocol.CodeMethodNotFound, "method not found: "+req.Method, nil)
	}

	s.beginNB()
	type outcome struct {
		result interface{}
		err    error
	}
	resultCh, accepted := s.pool.run(nil, req.Method, func() (res interface{}) {
		defer s.endNB()
		defer func() {
			// A panicking handler is answered like an empty one: the
			// nil result below makes the reply the registered fallback.
			if r := recover(); r != nil {
				res = outcome{}
			}
		}()
		result, err := reg.handler(req.Method, req.Params)
		return outcome{result: result, err: err}
	})
	if !accepted {
		s.endNB()
		if s.log != nil {
			s.log.Warn().Msg("dispatch: pool refused " + req.Method + ", returning fallback")
		}
		return protocol.NewResponse(req.ID, reg.fallback)
	}

	timeout := protocol.TimeoutFor(req.Method)
	select {
	case raw := <-resultCh:
		out := raw.(outcome)
		if out.err != nil {
			return protocol.NewErrorResponse(req.ID, protocol.CodeInternalError, out.err.Error(), nil)
		}
		if out.result == nil {
			return protocol.NewResponse(req.ID, reg.fallback)
		}
		return protocol.NewResponse(req.ID, out.result)
	case <-time.After(timeout):
		if s.log != nil {
			s.log.Warn().Msg("dispatch: timeout on " + req.Method)
		}
		return protocol.NewResponse(req.ID, reg.fallback)
	}
}
