package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startWatcher(t *testing.T, paths []string, handle Handler) (cancel func()) {
	t.Helper()
	w, err := New(paths, 20*time.Millisecond, handle, zap.NewNop())
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func TestWatcherCallsHandlerOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "SymbolDB.ts")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	changed := make(chan string, 8)
	stop := startWatcher(t, []string{target}, func(_ context.Context, path string) error {
		changed <- path
		return nil
	})
	defer stop()

	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	select {
	case path := <-changed:
		abs, _ := filepath.Abs(target)
		assert.Equal(t, abs, path)
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestWatcherCallsHandlerOnRenameReplace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "SymbolDB.ts")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	changed := make(chan string, 8)
	stop := startWatcher(t, []string{target}, func(_ context.Context, path string) error {
		changed <- path
		return nil
	})
	defer stop()

	tmp := target + ".part"
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o644))
	require.NoError(t, os.Rename(tmp, target))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "SymbolDB.ts")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	changed := make(chan string, 8)
	stop := startWatcher(t, []string{target}, func(_ context.Context, path string) error {
		changed <- path
		return nil
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.ts"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)
	stop()

	assert.Empty(t, changed)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "SymbolDB.ts")
	require.NoError(t, os.WriteFile(target, []byte("v0"), 0o644))

	w, err := New([]string{target}, time.Hour, func(context.Context, string) error { return nil }, nil)
	require.NoError(t, err)
	defer w.fsw.Close()

	abs, _ := filepath.Abs(target)
	now := time.Now()
	w.pending[abs] = now

	assert.Empty(t, w.due(now.Add(time.Minute)))
	assert.Equal(t, []string{abs}, w.due(now.Add(time.Hour)))
	assert.Empty(t, w.pending)
}

func TestNewMissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "gone", "SymbolDB.ts")}, time.Millisecond, nil, nil)
	assert.Error(t, err)
}
