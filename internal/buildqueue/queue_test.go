package buildqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/rls/internal/jobs"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.FailNow(t, "condition not met within timeout")
}

func TestQueue_DebouncedNormalBuildsCoalesce(t *testing.T) {
	var ran []string
	var mu sync.Mutex
	block := make(chan struct{})

	runner := func(files []string) Result {
		mu.Lock()
		ran = append(ran, files[0])
		mu.Unlock()
		<-block
		return Result{Outcome: OutcomeSuccess}
	}

	q := New(runner, jobs.NewRegistry(), nil)
	q.SetDebounceOverride(30)
	go q.Run()
	defer q.Stop()

	var results []Outcome
	var rmu sync.Mutex
	record := func(r Result) {
		rmu.Lock()
		results = append(results, r.Outcome)
		rmu.Unlock()
	}

	q.Push(PriorityNormal, []string{"a.rs"}, record)
	time.Sleep(10 * time.Millisecond)
	q.Push(PriorityNormal, []string{"b.rs"}, record)

	waitFor(t, time.Second, func() bool {
		rmu.Lock()
		defer rmu.Unlock()
		return len(results) == 1
	})
	close(block)

	waitFor(t, time.Second, func() bool {
		rmu.Lock()
		defer rmu.Unlock()
		return len(results) == 2
	})

	rmu.Lock()
	assert.Equal(t, []Outcome{OutcomeSquashed, OutcomeSuccess}, results)
	rmu.Unlock()
	mu.Lock()
	assert.Equal(t, []string{"b.rs"}, ran)
	mu.Unlock()
}

func TestQueue_HighPriorityRunsAfterInProgressBuild(t *testing.T) {
	var ran []string
	var mu sync.Mutex
	unblockFirst := make(chan struct{})
	started := make(chan string, 2)

	runner := func(files []string) Result {
		started <- files[0]
		mu.Lock()
		first := len(ran) == 0
		mu.Unlock()
		if first {
			<-unblockFirst
		}
		mu.Lock()
		ran = append(ran, files[0])
		mu.Unlock()
		return Result{Outcome: OutcomeSuccess}
	}

	q := New(runner, jobs.NewRegistry(), nil)
	q.SetDebounceOverride(1)
	go q.Run()
	defer q.Stop()

	q.Push(PriorityNormal, []string{"first.rs"}, nil)
	<-started // first build now in progress

	q.Push(PriorityHigh, []string{"urgent.rs"}, nil)
	snap := q.Snapshot()
	assert.True(t, snap.InProgress)
	assert.True(t, snap.HighPending)

	close(unblockFirst)
	second := <-started
	assert.Equal(t, "urgent.rs", second)
}

func TestQueue_BlockOnBuildWaitsForCompletion(t *testing.T) {
	block := make(chan struct{})
	runner := func(files []string) Result {
		<-block
		return Result{Outcome: OutcomeSuccess}
	}
	q := New(runner, jobs.NewRegistry(), nil)
	q.SetDebounceOverride(1)
	go q.Run()
	defer q.Stop()

	q.Push(PriorityNormal, []string{"a.rs"}, nil)
	waitFor(t, time.Second, func() bool { return q.Snapshot().InProgress })

	done := make(chan struct{})
	go func() {
		q.BlockOnBuild()
		close(done)
	}()

	select {
	case <-done:
		require.FailNow(t, "BlockOnBuild returned before build completed")
	case <-time.After(30 * time.Millisecond):
	}

	close(block)
	waitFor(t, time.Second, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	})
}

func TestQueue_HighPrioritySquashesPendingNormal(t *testing.T) {
	runner := func(files []string) Result { return Result{Outcome: OutcomeSuccess} }
	q := New(runner, jobs.NewRegistry(), nil)
	q.SetDebounceOverride(200)

	var got Outcome
	q.Push(PriorityNormal, []string{"a.rs"}, func(r Result) { got = r.Outcome })
	q.Push(PriorityHigh, []string{"b.rs"}, nil)

	assert.Equal(t, OutcomeSquashed, got)
	snap := q.Snapshot()
	assert.False(t, snap.NormalPending)
	assert.True(t, snap.HighPending)
}
