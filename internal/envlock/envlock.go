// Package envlock serializes mutation of process-global state
// (environment variables and the current working directory) around
// compiler invocations. Go's os.Setenv and os.Chdir affect the whole
// process, so two compiler invocations running on different goroutines
// must never interleave their environment pushes; this package is the
// single choke point that prevents that race.
package envlock

import (
	"os"
	"sync"
)

// Lock is a process-wide mutex guarding environment and working
// directory mutations. There is exactly one Lock per process; callers
// obtain it via Global.
type Lock struct {
	mu sync.Mutex
}

var global = &Lock{}

// Global returns the process-wide Environment Lock.
func Global() *Lock { return global }

// Acquisition holds the state needed to restore the environment and
// working directory to what they were before an Acquire call, and a
// sub-lock that linked compiler passes can share without re-entering
// the outer process-wide lock.
type Acquisition struct {
	lock     *Lock
	prevEnv  []string
	prevWD   string
	hadWD    bool
	subMu    sync.Mutex
	restored bool
}

// Acquire takes the Environment Lock for the duration of one compiler
// invocation, applies env (replacing the process environment) and, if
// dir is non-empty, changes to dir. The returned Acquisition must be
// released with Release, typically via defer, which restores both to
// their pre-acquisition values.
//
// Acquire blocks until any other in-flight acquisition has released.
func (l *Lock) Acquire(env []string, dir string) (*Acquisition, error) {
	l.mu.Lock()

	a := &Acquisition{lock: l, prevEnv: os.Environ()}

	if dir != "" {
		wd, err := os.Getwd()
		if err != nil {
			l.mu.Unlock()
			return nil, err
		}
		a.prevWD = wd
		a.hadWD = true
		if err := os.Chdir(dir); err != nil {
			l.mu.Unlock()
			return nil, err
		}
	}

	if env != nil {
		clearProcessEnv()
		for _, kv := range env {
			if k, v, ok := splitKV(kv); ok {
				os.Setenv(k, v)
			}
		}
	}

	return a, nil
}

// SubLock returns a lock scoped to this acquisition, for linked passes
// within the same compiler invocation that need to coordinate among
// themselves without contending for the outer process-wide lock.
func (a *Acquisition) SubLock() *sync.Mutex { return &a.subMu }

// Release restores the environment and working directory captured at
// Acquire time, then releases the Environment Lock. Safe to call more
// than once; only the first call has effect.
func (a *Acquisition) Release() {
	if a.restored {
		return
	}
	a.restored = true

	if a.hadWD {
		_ = os.Chdir(a.prevWD)
	}
	clearProcessEnv()
	for _, kv := range a.prevEnv {
		if k, v, ok := splitKV(kv); ok {
			os.Setenv(k, v)
		}
	}

	a.lock.mu.Unlock()
}

func clearProcessEnv() {
	for _, kv := range os.Environ() {
		if k, _, ok := splitKV(kv); ok {
			os.Unsetenv(k)
		}
	}
}

func splitKV(kv string) (key, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
