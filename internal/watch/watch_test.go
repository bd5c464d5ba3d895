package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/docstate/internal/coalesce"
)

func newTestWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() })
	return w
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestExternalWriteIsReported(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config", "settings.json")

	w := newTestWatcher(t)
	require.NoError(t, w.Add("settings", target))
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "other.json"), []byte("{}"), 0o600))
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0o600))

	ev := nextEvent(t, w)
	assert.Equal(t, "settings", ev.Name)
	assert.Equal(t, target, ev.Path)
	assert.Equal(t, OpCreate, ev.Op)
}

func TestAddCreatesParentDirectory(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "state.json")

	w := newTestWatcher(t)
	require.NoError(t, w.Add("state", target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConvertFiltersAndMutes(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "history.json")

	now := time.Unix(1000, 0)
	w := newTestWatcher(t, WithIgnoreFor(time.Second))
	w.now = func() time.Time { return now }
	require.NoError(t, w.Add("history", target))

	_, ok := w.convert(fsnotify.Event{Name: filepath.Join(dir, ".history.json.tmp-x"), Op: fsnotify.Create})
	assert.False(t, ok, "temp files are not targets")

	_, ok = w.convert(fsnotify.Event{Name: target, Op: fsnotify.Chmod})
	assert.False(t, ok, "chmod is ignored")

	w.MarkWritten(target)
	_, ok = w.convert(fsnotify.Event{Name: target, Op: fsnotify.Create})
	assert.False(t, ok, "self-write is muted")

	now = now.Add(2 * time.Second)
	ev, ok := w.convert(fsnotify.Event{Name: target, Op: fsnotify.Rename})
	require.True(t, ok)
	assert.Equal(t, OpRemove, ev.Op)
	assert.Equal(t, "history", ev.Name)
}

func TestUnmuteRestoresEvents(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "state.json")

	w := newTestWatcher(t, WithIgnoreFor(time.Hour))
	require.NoError(t, w.Add("state", target))

	w.MarkWritten(target)
	_, ok := w.convert(fsnotify.Event{Name: target, Op: fsnotify.Write})
	assert.False(t, ok)

	w.Unmute(target)
	ev, ok := w.convert(fsnotify.Event{Name: target, Op: fsnotify.Write})
	require.True(t, ok)
	assert.Equal(t, OpWrite, ev.Op)
}

func TestCoalescedWriteIsMutedBeforeRename(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "settings.json")

	w := newTestWatcher(t, WithIgnoreFor(300*time.Millisecond))
	require.NoError(t, w.Add("settings", target))
	require.NoError(t, w.Start(context.Background()))

	c := coalesce.New(func() string { return target },
		coalesce.WithInterval(time.Hour),
		coalesce.WithBeforeWrite(w.MarkWritten),
		coalesce.WithOnFailure(func(p string, _ error) { w.Unmute(p) }),
	)
	t.Cleanup(func() { c.Close(context.Background()) })

	c.Stage(`{"theme": "Default.qpl"}`)
	require.NoError(t, c.Flush(context.Background()))

	time.Sleep(400 * time.Millisecond)
	select {
	case ev := <-w.Events():
		t.Fatalf("own write reported as %s %s", ev.Op, ev.Path)
	default:
	}

	require.NoError(t, os.WriteFile(target, []byte(`{"theme": "Dark.qpl"}`), 0o600))
	ev := nextEvent(t, w)
	assert.Equal(t, "settings", ev.Name)
	assert.Equal(t, target, ev.Path)
}

func TestStartTwiceFails(t *testing.T) {
	w := newTestWatcher(t)
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
}

func TestStopClosesEvents(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "unknown", Op(42).String())
}
