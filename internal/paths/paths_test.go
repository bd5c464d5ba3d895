package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirsResolve(t *testing.T) {
	d := Dirs{ConfigDir: "/cfg/app", DataDir: "/data/app"}

	assert.Equal(t, filepath.Join("/cfg/app", "accounts.json"), d.Resolve(UserConfig, "accounts.json"))
	assert.Equal(t, filepath.Join("/data/app", "state.json"), d.Resolve(UserData, "state.json"))
	assert.Equal(t, filepath.Join("/data/app", "themes", "Default.qpl"), d.Resolve(UserData, filepath.Join("themes", "Default.qpl")))
}

func TestDynamicDirsFollowsChanges(t *testing.T) {
	current := Dirs{ConfigDir: "/a", DataDir: "/b"}
	r := DynamicDirs(func() Dirs { return current })

	assert.Equal(t, filepath.Join("/a", "settings.json"), r.Resolve(UserConfig, "settings.json"))

	current.ConfigDir = "/c"
	assert.Equal(t, filepath.Join("/c", "settings.json"), r.Resolve(UserConfig, "settings.json"))
}

func TestDefaultDirsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	d := DefaultDirs("docstate")
	assert.Equal(t, filepath.Join("/xdg/config", "docstate"), d.ConfigDir)
	assert.Equal(t, filepath.Join("/xdg/data", "docstate"), d.DataDir)
}

func TestDefaultDirsHomeFallback(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")

	d := DefaultDirs("docstate")
	assert.Equal(t, filepath.Join(home, ".config", "docstate"), d.ConfigDir)
	assert.Equal(t, filepath.Join(home, ".local", "share", "docstate"), d.DataDir)
}

func TestStorageClassString(t *testing.T) {
	assert.Equal(t, "config", UserConfig.String())
	assert.Equal(t, "data", UserData.String())
	assert.Equal(t, "unknown", StorageClass(9).String())
}
