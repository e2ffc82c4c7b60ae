package dispatch

import (
	"context"
	"runtime"
	"sync"
)

// pool is the bounded non-blocking-request worker pool: it caps total
// concurrency at one worker per available CPU and same-method
// concurrency at two simultaneous workers for the same method. A
// request refused at either boundary runs the caller's fallback
// immediately rather than queuing, matching spec.md §4.7's "refused at
// the pool boundary return the handler's fallback immediately".
type pool struct {
	mu          sync.Mutex
	totalSlots  int
	totalInUse  int
	perMethod   map[string]int
	maxPerMethod int
}

func newPool() *pool {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return &pool{totalSlots: n, perMethod: make(map[string]int), maxPerMethod: 2}
}

// tryAcquire attempts to reserve a slot for method. On success it
// returns a release function that must be called exactly once.
func (p *pool) tryAcquire(method string) (release func(), ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.totalInUse >= p.totalSlots {
		return nil, false
	}
	if p.perMethod[method] >= p.maxPerMethod {
		return nil, false
	}

	p.totalInUse++
	p.perMethod[method]++
	released := false
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if released {
			return
		}
		released = true
		p.totalInUse--
		p.perMethod[method]--
		if p.perMethod[method] == 0 {
			delete(p.perMethod, method)
		}
	}, true
}

// run invokes fn on a pooled goroutine if a slot is available,
// otherwise returns false immediately (no work spawned) so the caller
// applies the fallback itself. The context is not used for
// cancellation of fn — per spec.md §5 there is no cooperative
// cancellation path, only a dispatcher-side timeout race against fn's
// own completion channel.
func (p *pool) run(ctx context.Context, method string, fn func() interface{}) (resultCh chan interface{}, accepted bool) {
	release, ok := p.tryAcquire(method)
	if !ok {
		return nil, false
	}

	out := make(chan interface{}, 1)
	go func() {
		defer release()
		out <- fn()
	}()
	return out, true
}
