package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --backend
// on "weave chat", "weave research" and "weave index").
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "backend.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBackend         = "backend"
	FlagRestricted      = "restricted"
	FlagTimeout         = "timeout"
	FlagIndex           = "index"
	FlagTheme           = "theme"
	FlagMarkdown        = "markdown"
	FlagStorageProvider = "storage"
	FlagSQLite          = "sqlite"
	FlagPostgresDSN     = "postgres-dsn"
	FlagAPIListen       = "listen"
	FlagEventStream     = "eventstream"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
)

// Flags is the registry shared by all weave commands.
var Flags = FlagSet{
	FlagBackend:         {Name: "backend", Shorthand: "b", ViperKey: "backend.target", Description: "Document backend URL"},
	FlagRestricted:      {Name: "restricted", ViperKey: "backend.restricted", Description: "Operate on restricted (per-user) indexes"},
	FlagTimeout:         {Name: "timeout", ViperKey: "backend.timeout", Description: "Timeout for non-streaming backend calls"},
	FlagIndex:           {Name: "index", Shorthand: "i", ViperKey: "chat.index", Description: "Index to query"},
	FlagTheme:           {Name: "theme", ViperKey: "ui.theme", Description: "Color theme (dark, light, auto)"},
	FlagMarkdown:        {Name: "markdown", ViperKey: "ui.markdown", Description: "Render answers as markdown"},
	FlagStorageProvider: {Name: "storage", ViperKey: "storage.provider", Description: "Session history store (sqlite, postgres, memory)"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: .weave/weave.sqlite)"},
	FlagPostgresDSN:     {Name: "postgres-dsn", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagAPIListen:       {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the local API server to listen on"},
	FlagEventStream:     {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Session event publisher (nop, kafka)"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for session events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string, target *time.Duration) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only the values of NewDefaultConfig.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
