// Package api implements the read-only debug/introspection HTTP
// surface described by spec.md §4.9: a small chi router exposing the
// live state of the job registry, build queue, build plan, and VFS
// overlay for operator troubleshooting. It never mutates server state.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/rls/internal/buildplan"
	"github.com/ternarybob/rls/internal/buildqueue"
	"github.com/ternarybob/rls/internal/jobs"
	"github.com/ternarybob/rls/internal/vfs"
)

// Server is the debug HTTP surface.
type Server struct {
	router chi.Router
	jobs   *jobs.Registry
	queue  *buildqueue.Queue
	graph  *buildplan.Graph
	vfs    *vfs.VFS
}

// NewServer builds the debug router over the live collaborators.
// graph may be swapped out by a later call to SetGraph if the build
// plan is rebuilt after a workspace reload.
func NewServer(reg *jobs.Registry, queue *buildqueue.Queue, graph *buildplan.Graph, v *vfs.VFS) *Server {
	s := &Server{jobs: reg, queue: queue, graph: graph, vfs: v}
	s.setupRouter()
	return s
}

// SetGraph swaps the build plan graph /debug/plan reports against.
func (s *Server) SetGraph(graph *buildplan.Graph) { s.graph = graph }

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/debug/jobs", s.handleJobs)
	r.Get("/debug/queue", s.handleQueue)
	r.Get("/debug/plan", s.handlePlan)
	r.Get("/debug/vfs", s.handleVFS)

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }
