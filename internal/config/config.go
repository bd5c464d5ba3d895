package config

import (
	"fmt"
	"time"

	"github.com/kalambet/docstate/internal/paths"
)

// AppName names the per-user configuration and data directories.
const AppName = "docstate"

type Config struct {
	Dirs   DirsConfig
	Flush  FlushConfig
	Log    LogConfig
	Server ServerConfig
}

type DirsConfig struct {
	ConfigDir string
	DataDir   string
}

type FlushConfig struct {
	Interval time.Duration
}

type LogConfig struct {
	Level string
	File  string
}

type ServerConfig struct {
	Port int
}

func defaults() Config {
	dirs := paths.DefaultDirs(AppName)
	return Config{
		Dirs: DirsConfig{
			ConfigDir: dirs.ConfigDir,
			DataDir:   dirs.DataDir,
		},
		Flush: FlushConfig{
			Interval: time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port: 4100,
		},
	}
}

// Load returns the default configuration with DOCSTATE_* environment
// variables applied on top.
//
// Directories default to $XDG_CONFIG_HOME/docstate and
// $XDG_DATA_HOME/docstate (~/.config and ~/.local/share when unset).
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c Config) Validate() error {
	if c.Dirs.ConfigDir == "" {
		return fmt.Errorf("dirs.config is required")
	}
	if c.Dirs.DataDir == "" {
		return fmt.Errorf("dirs.data is required")
	}
	if c.Flush.Interval <= 0 {
		return fmt.Errorf("flush.interval must be positive, got %s", c.Flush.Interval)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

// Paths returns the document base directories.
func (c Config) Paths() paths.Dirs {
	return paths.Dirs{ConfigDir: c.Dirs.ConfigDir, DataDir: c.Dirs.DataDir}
}
