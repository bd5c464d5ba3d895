package configfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/docstate/internal/coalesce"
	"github.com/kalambet/docstate/internal/paths"
)

func testDirs(t *testing.T) paths.Dirs {
	t.Helper()
	root := t.TempDir()
	return paths.Dirs{
		ConfigDir: filepath.Join(root, "config"),
		DataDir:   filepath.Join(root, "data"),
	}
}

// idle keeps the background ticker out of the way; tests flush explicitly.
func idle() Option {
	return WithCoalesceOptions(coalesce.WithInterval(time.Hour))
}

func newTestDocument(t *testing.T, dirs paths.Dirs, class paths.StorageClass, name string, opts ...Option) *Document {
	t.Helper()
	d := NewDocument(dirs, class, name, append([]Option{idle()}, opts...)...)
	t.Cleanup(func() { d.Close(context.Background()) })
	return d
}

func TestDocumentReadMissing(t *testing.T) {
	d := newTestDocument(t, testDirs(t), paths.UserConfig, "notes.txt")

	_, err := d.Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, d.Exists())
}

func TestDocumentPathUsesStorageClass(t *testing.T) {
	dirs := testDirs(t)

	cfg := newTestDocument(t, dirs, paths.UserConfig, "a.txt")
	data := newTestDocument(t, dirs, paths.UserData, "b.txt")

	assert.Equal(t, filepath.Join(dirs.ConfigDir, "a.txt"), cfg.Path())
	assert.Equal(t, filepath.Join(dirs.DataDir, "b.txt"), data.Path())
}

func TestDocumentReadYourWrite(t *testing.T) {
	d := newTestDocument(t, testDirs(t), paths.UserData, "notes.txt")

	d.Write("hello")

	got, err := d.Read()
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.True(t, d.Exists())

	_, err = os.Stat(d.Path())
	assert.True(t, os.IsNotExist(err), "nothing is on disk before a flush")
}

func TestDocumentFlushPersists(t *testing.T) {
	dirs := testDirs(t)
	d := newTestDocument(t, dirs, paths.UserData, filepath.Join("themes", "x"))

	d.Write("first")
	d.Write("second")
	require.NoError(t, d.Flush(context.Background()))
	assert.Equal(t, uint64(1), d.Stats().Flushes)

	fresh := newTestDocument(t, dirs, paths.UserData, filepath.Join("themes", "x"))
	got, err := fresh.Read()
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestDocumentDefaultData(t *testing.T) {
	dirs := testDirs(t)

	plain := newTestDocument(t, dirs, paths.UserData, "a")
	assert.Equal(t, "", plain.DefaultData())

	themed := newTestDocument(t, dirs, paths.UserData, "b", WithTextDefaults(func() string { return "bundled" }))
	assert.Equal(t, "bundled", themed.DefaultData())
}

func TestDocumentCloseFlushes(t *testing.T) {
	dirs := testDirs(t)
	d := NewDocument(dirs, paths.UserConfig, "c.txt", idle())

	d.Write("bye")
	require.NoError(t, d.Close(context.Background()))

	data, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}
