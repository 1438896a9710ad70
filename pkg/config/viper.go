package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/docweave/weave/pkg/dotdir"
)

// envFile is read from the .weave/ directory and the working directory.
const envFile = ".env"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), loads .env files and binds environment
// variables with the WEAVE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (WEAVE_BACKEND_TARGET, WEAVE_API_LISTEN, etc.)
//  3. .env files, which never override variables already set
//  4. config.toml file values
//  5. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := loadEnvFiles(target, "."); err != nil {
		return nil, err
	}

	v.SetEnvPrefix("WEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// loadEnvFiles loads the .env file of each directory that has one. Earlier
// directories win, and the process environment wins over all of them.
func loadEnvFiles(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, envFile)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Backend
	v.SetDefault("backend.target", d.Backend.Target)
	v.SetDefault("backend.restricted", d.Backend.Restricted)
	v.SetDefault("backend.timeout", d.Backend.Timeout)

	// Chat
	v.SetDefault("chat.index", d.Chat.Index)

	// UI
	v.SetDefault("ui.theme", d.UI.Theme)
	v.SetDefault("ui.markdown", d.UI.Markdown)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}

// Resolve reads the effective configuration out of v, after flags, env and
// file values have been layered.
func Resolve(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Backend: BackendConfig{
			Target:     v.GetString("backend.target"),
			Restricted: v.GetBool("backend.restricted"),
			Timeout:    v.GetString("backend.timeout"),
		},
		Chat: ChatConfig{
			Index: v.GetString("chat.index"),
		},
		UI: UIConfig{
			Theme:    v.GetString("ui.theme"),
			Markdown: v.GetBool("ui.markdown"),
		},
		Storage: StorageConfig{
			Provider:    v.GetString("storage.provider"),
			SQLitePath:  v.GetString("storage.sqlite_path"),
			PostgresDSN: v.GetString("storage.postgres_dsn"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetString("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}
