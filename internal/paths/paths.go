// Package paths maps a document's storage class and filename to an absolute
// file path under the user configuration or data directory.
package paths

import (
	"os"
	"path/filepath"
)

// StorageClass selects which base directory a document lives under.
type StorageClass int

const (
	// UserConfig documents live under the user configuration directory.
	UserConfig StorageClass = iota
	// UserData documents live under the user data directory.
	UserData
)

func (c StorageClass) String() string {
	switch c {
	case UserConfig:
		return "config"
	case UserData:
		return "data"
	default:
		return "unknown"
	}
}

// Resolver produces the absolute path of a document file. Implementations
// must be pure: no filesystem access and no errors, even if nothing exists
// at the returned path yet.
type Resolver interface {
	Resolve(class StorageClass, filename string) string
}

// Dirs holds the two base directories documents are stored under.
type Dirs struct {
	ConfigDir string
	DataDir   string
}

// Resolve implements Resolver.
func (d Dirs) Resolve(class StorageClass, filename string) string {
	if class == UserData {
		return filepath.Join(d.DataDir, filename)
	}
	return filepath.Join(d.ConfigDir, filename)
}

// DynamicDirs resolves against whatever Dirs the function returns at call
// time, so base-directory changes are picked up on the next access.
type DynamicDirs func() Dirs

// Resolve implements Resolver.
func (f DynamicDirs) Resolve(class StorageClass, filename string) string {
	return f().Resolve(class, filename)
}

// DefaultDirs returns the XDG-style directories for app:
// $XDG_CONFIG_HOME/<app> and $XDG_DATA_HOME/<app>, falling back to
// ~/.config and ~/.local/share when the variables are unset.
func DefaultDirs(app string) Dirs {
	return Dirs{
		ConfigDir: filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), app),
		DataDir:   filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), app),
	}
}

func xdgDir(env, homeRel string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, homeRel)
	}
	return "."
}
