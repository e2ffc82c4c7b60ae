// Package jobs implements the job registry held by the Action Context:
// a handle per in-flight asynchronous unit of work, with "wait for all"
// semantics. In this server the build queue is the only caller of
// Start (one "build" job per build run), and no handler calls
// WaitForAll; Handlers.Rename waits on the build queue instead.
package jobs

import (
	"sync"

	"github.com/google/uuid"
)

// Job is a handle representing one piece of in-flight asynchronous
// work. It is created when work starts and completed exactly once,
// either normally or on cancellation.
type Job struct {
	ID   string
	Kind string

	registry *Registry
	once     sync.Once
}

// Complete releases the job's slot in the registry. Safe to call more
// than once; only the first call has effect, mirroring a completion
// token that can only be dropped once.
func (j *Job) Complete() {
	j.once.Do(func() {
		j.registry.remove(j.ID)
	})
}

// Registry tracks every currently in-flight Job. The zero value is not
// usable; use NewRegistry.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
	cond *sync.Cond
}

// NewRegistry returns an empty job registry.
func NewRegistry() *Registry {
	r := &Registry{jobs: make(map[string]*Job)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Start creates and registers a new Job of the given kind (e.g.
// "build", "rename", "post-build-reload"), returning a handle whose
// Complete method must be called exactly once when the work finishes.
func (r *Registry) Start(kind string) *Job {
	j := &Job{ID: uuid.NewString(), Kind: kind, registry: r}
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
	return j
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	if len(r.jobs) == 0 {
		r.cond.Broadcast()
	}
	r.mu.Unlock()
}

// WaitForAll blocks the calling goroutine until the registry is empty.
// A job started while a waiter is parked extends the wait, since the
// registry has no concept of "the jobs that existed at call time" —
// only "currently zero jobs".
func (r *Registry) WaitForAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.jobs) > 0 {
		r.cond.Wait()
	}
}

// Len returns the number of currently in-flight jobs, for the debug
// introspection surface.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Snapshot returns a copy of the (id -> kind) map of in-flight jobs,
// for the debug introspection surface.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.jobs))
	for id, j := range r.jobs {
		out[id] = j.Kind
	}
	return out
}
