// Package buildqueue implements the Build Queue: a two-slot
// priority queue (normal, high) plus an in-progress marker, with
// coalescing (same-priority squash, high squashes pending normal),
// adaptive debouncing of normal-priority requests, and a
// block-on-build contract for mutating request handlers that must
// quiesce the system before computing edits.
package buildqueue

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/rls/internal/jobs"
)

// Priority is a build request's scheduling priority.
type Priority int

const (
	// PriorityNormal is used for ordinary edit-triggered rebuilds and
	// is subject to debouncing.
	PriorityNormal Priority = iota
	// PriorityHigh is used for user-initiated, latency-sensitive
	// requests (e.g. an explicit "build now") and is never debounced;
	// it also squashes any pending normal-priority request.
	PriorityHigh
)

// Outcome tags how a queued request was resolved.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSquashed
	OutcomeError
)

// Result is delivered to a request's completion callback exactly once.
type Result struct {
	Outcome  Outcome
	Cwd      string
	Err      error
	Duration time.Duration
}

// Runner performs the actual build for a set of dirty files; it is
// supplied by the caller (typically wiring the build plan and
// compiler driver together) so this package stays free of any
// build-plan- or compiler-specific dependency.
type Runner func(files []string) Result

// request is one queued build.
type request struct {
	priority Priority
	files    []string
	done     func(Result)
	version  uint64 // dirty-file version observed when this request was queued
}

// Queue is the two-slot priority build queue described by spec.md §4.4.
type Queue struct {
	mu          sync.Mutex
	normal      *request
	high        *request
	inProgress  bool
	cond        *sync.Cond
	run         Runner
	jobs        *jobs.Registry
	log         arbor.ILogger
	overrideMs  int // user-configured debounce override; 0 means "use history"
	lastSuccess time.Duration
	haveHistory bool
	// version increments on every Push and is stamped on the queued
	// request. The queue keeps no dirty-file set of its own, so nothing
	// is cleared by version when a build succeeds.
	version uint64
	stopCh  chan struct{}
}

// New returns a Queue that runs builds via run, recording in-flight
// jobs in registry.
func New(run Runner, registry *jobs.Registry, log arbor.ILogger) *Queue {
	q := &Queue{run: run, jobs: registry, log: log, stopCh: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// SetDebounceOverride sets rust.wait_to_build_ms, bypassing the
// history-based inference when ms > 0.
func (q *Queue) SetDebounceOverride(ms int) {
	q.mu.Lock()
	q.overrideMs = ms
	q.mu.Unlock()
}

// Push enqueues a build request. Pushing into an occupied slot of the
// same priority squashes the previous occupant (its Done callback, if
// any, is invoked with OutcomeSquashed). Pushing PriorityHigh also
// squashes any pending PriorityNormal request.
func (q *Queue) Push(priority Priority, files []string, done func(Result)) {
	q.mu.Lock()
	q.version++
	req := &request{priority: priority, files: files, done: done, version: q.version}

	switch priority {
	case PriorityHigh:
		if q.normal != nil {
			squash(q.normal)
			q.normal = nil
		}
		if q.high != nil {
			squash(q.high)
		}
		q.high = req
	default:
		if q.normal != nil {
			squash(q.normal)
		}
		q.normal = req
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

func squash(r *request) {
	if r.done != nil {
		r.done(Result{Outcome: OutcomeSquashed})
	}
}

// Run drains the queue until Stop is called. It must run on its own
// goroutine (the "build thread" of spec.md §5).
func (q *Queue) Run() {
	for {
		q.mu.Lock()
		for q.high == nil && q.normal == nil {
			q.cond.Wait()
			select {
			case <-q.stopCh:
				q.mu.Unlock()
				return
			default:
			}
		}
		select {
		case <-q.stopCh:
			q.mu.Unlock()
			return
		default:
		}

		var req *request
		if q.high != nil {
			req = q.high
			q.high = nil
			q.mu.Unlock()
		} else {
			// Peek without dequeuing: a Push arriving during the
			// debounce sleep squashes this exact *request value via
			// the normal occupied-slot path in Push, which is how we
			// detect supersession below without a second queue.
			pending := q.normal
			q.mu.Unlock()
			debounce := q.debounceDuration()

			if debounce > 0 {
				time.Sleep(debounce)
			}

			q.mu.Lock()
			if q.normal != pending {
				// Squashed (and possibly replaced) while debouncing;
				// Push already delivered OutcomeSquashed to it.
				q.mu.Unlock()
				continue
			}
			req = pending
			q.normal = nil
			q.mu.Unlock()
		}

		q.mu.Lock()
		q.inProgress = true
		q.mu.Unlock()

		job := q.jobs.Start("build")
		start := time.Now()
		result := q.run(req.files)
		result.Duration = time.Since(start)

		q.mu.Lock()
		if result.Outcome == OutcomeSuccess {
			q.lastSuccess = result.Duration
			q.haveHistory = true
		}
		q.inProgress = false
		q.cond.Broadcast()
		q.mu.Unlock()

		job.Complete()
		if req.done != nil {
			req.done(result)
		}
	}
}

// debounceDuration implements spec.md §4.4's adaptive debounce tiers,
// honoring a user override when set.
func (q *Queue) debounceDuration() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.overrideMs > 0 {
		return time.Duration(q.overrideMs) * time.Millisecond
	}
	if !q.haveHistory {
		return 1500 * time.Millisecond
	}
	switch {
	case q.lastSuccess < 300*time.Millisecond:
		return 0
	case q.lastSuccess < time.Second:
		return 200 * time.Millisecond
	case q.lastSuccess < 5*time.Second:
		return 500 * time.Millisecond
	default:
		return 1500 * time.Millisecond
	}
}

// BlockOnBuild parks the caller until no build is in progress or
// pending. Callers must not be the build-queue goroutine itself.
func (q *Queue) BlockOnBuild() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.inProgress || q.normal != nil || q.high != nil {
		q.cond.Wait()
	}
}

// Snapshot reports the queue's current slot occupancy, for the debug
// introspection surface.
type Snapshot struct {
	NormalPending bool
	HighPending   bool
	InProgress    bool
}

// Snapshot returns the current slot state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Snapshot{
		NormalPending: q.normal != nil,
		HighPending:   q.high != nil,
		InProgress:    q.inProgress,
	}
}

// Stop halts the Run loop after the current build (if any) finishes.
func (q *Queue) Stop() {
	close(q.stopCh)
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
