package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "dirs.config", typ: kString, env: "DOCSTATE_CONFIG_DIR",
		apply:   func(cfg *Config, v any) { cfg.Dirs.ConfigDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Dirs.ConfigDir },
	},
	{
		key: "dirs.data", typ: kString, env: "DOCSTATE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Dirs.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Dirs.DataDir },
	},
	{
		key: "flush.interval", typ: kDuration, env: "DOCSTATE_FLUSH_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Flush.Interval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Flush.Interval },
	},
	{
		key: "log.level", typ: kString, env: "DOCSTATE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "DOCSTATE_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
	{
		key: "server.port", typ: kInt, env: "DOCSTATE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
}

// parseValue converts raw into the Go type of s.
func (s keySpec) parseValue(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer for %s: %w", s.key, err)
		}
		return i, nil
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", s.key, err)
		}
		return d, nil
	default:
		return raw, nil
	}
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.parseValue(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
