package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchable(t *testing.T) {
	assert.True(t, watchable("/ws/src/main.rs"))
	assert.True(t, watchable("/ws/Cargo.toml"))
	assert.False(t, watchable("/ws/README.md"))
}

func TestShouldSkipDir(t *testing.T) {
	assert.True(t, shouldSkipDir("target"))
	assert.True(t, shouldSkipDir(filepath.Join("target", "debug")))
	assert.False(t, shouldSkipDir("src"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ChangeCreated, classify(fsnotify.Create))
	assert.Equal(t, ChangeModified, classify(fsnotify.Write))
	assert.Equal(t, ChangeDeleted, classify(fsnotify.Remove))
	assert.Equal(t, ChangeKind(0), classify(fsnotify.Chmod))
}

func TestWatcher_DebouncesExternalFileWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("fn a(){}"), 0o644))

	var mu sync.Mutex
	var got []Change
	w, err := New(dir, 20, func(batch []Change) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("fn a(){} fn b(){}"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	assert.Equal(t, filepath.Join(dir, "lib.rs"), got[0].Path)
}
