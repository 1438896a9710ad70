package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent weave configuration stored as config.toml
// in the .weave/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Backend     BackendConfig     `toml:"backend"`
	Chat        ChatConfig        `toml:"chat"`
	UI          UIConfig          `toml:"ui"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// BackendConfig holds the address of the document backend and the settings
// sent with every request.
type BackendConfig struct {
	Target     string `toml:"target,omitempty"`
	Restricted bool   `toml:"restricted"`
	Timeout    string `toml:"timeout,omitempty"`
}

// ChatConfig holds chat defaults. Index is updated by "weave chat" to the
// index last chatted with.
type ChatConfig struct {
	Index string `toml:"index,omitempty"`
}

// UIConfig holds terminal rendering settings.
type UIConfig struct {
	// Theme is one of dark, light or auto.
	Theme    string `toml:"theme,omitempty"`
	Markdown bool   `toml:"markdown"`
}

// StorageConfig selects where finished sessions are kept.
type StorageConfig struct {
	// Provider is one of sqlite, postgres or memory.
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds local API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig selects where session-completed events are published.
type EventStreamConfig struct {
	// Provider is one of nop or kafka.
	Provider string `toml:"provider,omitempty"`

	// Brokers is a comma separated list of host:port pairs.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// BrokerList splits Brokers into its entries.
func (e EventStreamConfig) BrokerList() []string {
	return SplitList(e.Brokers)
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func oneOf(key string, allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("invalid value for %s: %q (expected one of %s)", key, v, strings.Join(allowed, ", "))
	}
}

func parseBool(key string, v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}

var (
	validTheme       = oneOf("ui.theme", "dark", "light", "auto")
	validStorage     = oneOf("storage.provider", "sqlite", "postgres", "memory")
	validEventStream = oneOf("eventstream.provider", "nop", "kafka")
)

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"backend.target": {
		get: func(c *Config) string { return c.Backend.Target },
		set: func(c *Config, v string) error { c.Backend.Target = v; return nil },
	},
	"backend.restricted": {
		get: func(c *Config) string { return strconv.FormatBool(c.Backend.Restricted) },
		set: func(c *Config, v string) error {
			b, err := parseBool("backend.restricted", v)
			if err != nil {
				return err
			}
			c.Backend.Restricted = b
			return nil
		},
	},
	"backend.timeout": {
		get: func(c *Config) string { return c.Backend.Timeout },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for backend.timeout: %w", err)
			}
			c.Backend.Timeout = v
			return nil
		},
	},
	"chat.index": {
		get: func(c *Config) string { return c.Chat.Index },
		set: func(c *Config, v string) error { c.Chat.Index = v; return nil },
	},
	"ui.theme": {
		get: func(c *Config) string { return c.UI.Theme },
		set: func(c *Config, v string) error {
			if err := validTheme(v); err != nil {
				return err
			}
			c.UI.Theme = v
			return nil
		},
	},
	"ui.markdown": {
		get: func(c *Config) string { return strconv.FormatBool(c.UI.Markdown) },
		set: func(c *Config, v string) error {
			b, err := parseBool("ui.markdown", v)
			if err != nil {
				return err
			}
			c.UI.Markdown = b
			return nil
		},
	},
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error {
			if err := validStorage(v); err != nil {
				return err
			}
			c.Storage.Provider = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			if err := validEventStream(v); err != nil {
				return err
			}
			c.EventStream.Provider = v
			return nil
		},
	},
	"eventstream.brokers": {
		get: func(c *Config) string { return c.EventStream.Brokers },
		set: func(c *Config, v string) error { c.EventStream.Brokers = v; return nil },
	},
	"eventstream.topic": {
		get: func(c *Config) string { return c.EventStream.Topic },
		set: func(c *Config, v string) error { c.EventStream.Topic = v; return nil },
	},
}

// TimeoutDuration parses Timeout. An empty or invalid value yields zero,
// which callers treat as "use the client default".
func (b BackendConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0
	}
	return d
}
