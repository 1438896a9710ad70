package config

// SQLiteFile is the database file created in the .weave/ directory when
// storage.sqlite_path is empty.
const SQLiteFile = "weave.sqlite"

const (
	defaultBackendTarget  = "http://localhost:5000"
	defaultBackendTimeout = "2m"

	defaultTheme = "auto"

	defaultStorageProvider = "sqlite"

	defaultAPIListen = ":8765"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "weave.sessions"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Backend: BackendConfig{
			Target:     defaultBackendTarget,
			Restricted: true,
			Timeout:    defaultBackendTimeout,
		},
		UI: UIConfig{
			Theme:    defaultTheme,
			Markdown: true,
		},
		Storage: StorageConfig{
			Provider: defaultStorageProvider,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}

