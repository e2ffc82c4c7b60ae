package envlock

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_RestoresEnvAndWorkdir(t *testing.T) {
	lock := &Lock{}

	os.Setenv("ENVLOCK_TEST_OUTER", "outer-value")
	defer os.Unsetenv("ENVLOCK_TEST_OUTER")

	startWD, err := os.Getwd()
	require.NoError(t, err)

	tmpDir := t.TempDir()
	a, err := lock.Acquire([]string{"ENVLOCK_TEST_INNER=inner-value"}, tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "inner-value", os.Getenv("ENVLOCK_TEST_INNER"))
	assert.Empty(t, os.Getenv("ENVLOCK_TEST_OUTER"), "env should be replaced, not merged")

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.NotEqual(t, startWD, wd)

	a.Release()

	assert.Equal(t, "outer-value", os.Getenv("ENVLOCK_TEST_OUTER"))
	assert.Empty(t, os.Getenv("ENVLOCK_TEST_INNER"))

	wd, err = os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, startWD, wd)
}

func TestAcquire_SerializesConcurrentInvocations(t *testing.T) {
	lock := &Lock{}
	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := lock.Acquire(nil, "")
			require.NoError(t, err)
			defer a.Release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				max := atomic.LoadInt32(&maxObserved)
				if n <= max || atomic.CompareAndSwapInt32(&maxObserved, max, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxObserved, "only one acquisition should be active at a time")
}

func TestRelease_IsIdempotent(t *testing.T) {
	lock := &Lock{}
	a, err := lock.Acquire(nil, "")
	require.NoError(t, err)

	a.Release()
	assert.NotPanics(t, func() { a.Release() })

	// The lock must actually be free after the first Release, proving
	// the second Release did not double-unlock an already-unlocked mutex.
	a2, err := lock.Acquire(nil, "")
	require.NoError(t, err)
	a2.Release()
}
