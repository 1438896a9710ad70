// Package cmdenv resolves what weave commands share: the layered
// configuration, the logger, the backend client and the session recorder.
package cmdenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docweave/weave/cmd/weave/sqlitepath"
	"github.com/docweave/weave/pkg/client"
	"github.com/docweave/weave/pkg/cliui"
	"github.com/docweave/weave/pkg/config"
	"github.com/docweave/weave/pkg/eventstream"
	eventstreamutils "github.com/docweave/weave/pkg/eventstream/utils"
	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/storage"
	storageutils "github.com/docweave/weave/pkg/storage/utils"
	"github.com/docweave/weave/pkg/worker"
)

// ErrNoIndex is returned when a command needs an index and none was given
// on the command line or remembered in config.toml.
var ErrNoIndex = errors.New("no index selected; pass --index or set chat.index")

// Flag groups registered by commands.
var (
	BackendFlags = []string{config.FlagBackend, config.FlagRestricted, config.FlagTimeout}
	DisplayFlags = []string{config.FlagTheme, config.FlagMarkdown}
	StorageFlags = []string{config.FlagStorageProvider, config.FlagSQLite, config.FlagPostgresDSN}
	EventFlags   = []string{config.FlagEventStream, config.FlagKafkaBrokers, config.FlagKafkaTopic}
)

// AddFlags registers the given registry flags on cmd. Their values are read
// back through viper by Load.
func AddFlags(cmd *cobra.Command, groups ...[]string) {
	for _, keys := range groups {
		for _, key := range keys {
			if cmd.Flags().Lookup(config.Flags[key].Name) != nil {
				continue
			}
			switch key {
			case config.FlagRestricted, config.FlagMarkdown:
				config.AddBoolFlag(cmd, config.Flags, key, new(bool))
			default:
				config.AddStringFlag(cmd, config.Flags, key, new(string))
			}
		}
	}
}

// Env is the resolved environment of one command invocation.
type Env struct {
	Config    *config.Config
	ConfigDir string
	Debug     bool
	Logger    *slog.Logger
}

// Load layers flags, environment, .env files and config.toml for cmd. The
// persistent --config-dir and --debug flags are read when present.
func Load(cmd *cobra.Command) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	keys := make([]string, 0, len(config.Flags))
	for key := range config.Flags {
		keys = append(keys, key)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return &Env{
		Config:    config.Resolve(v),
		ConfigDir: configDir,
		Debug:     debug,
		Logger:    newLogger(cmd.ErrOrStderr(), debug),
	}, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatPretty),
		logger.WithWriter(w),
	)
}

// Client returns a backend client configured from the environment. opts are
// applied last.
func (e *Env) Client(opts ...client.Option) (*client.Client, error) {
	base := []client.Option{
		client.WithLogger(e.Logger),
		client.WithRestricted(e.Config.Backend.Restricted),
		client.WithTimeout(e.Config.Backend.TimeoutDuration()),
	}
	c, err := client.New(e.Config.Backend.Target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return c, nil
}

// Theme returns the configured terminal theme.
func (e *Env) Theme() (*cliui.Theme, error) {
	return cliui.NewTheme(e.Config.UI.Theme)
}

// Index returns the index to work on.
func (e *Env) Index() (string, error) {
	if e.Config.Chat.Index == "" {
		return "", ErrNoIndex
	}
	return e.Config.Chat.Index, nil
}

// RememberIndex stores index as chat.index in config.toml when it differs
// from the stored value. Failures are logged, not returned.
func (e *Env) RememberIndex(index string) {
	cfger, err := config.NewConfiger(e.ConfigDir)
	if err != nil {
		e.Logger.Debug("could not open config", "error", err)
		return
	}
	if current, err := cfger.GetConfigValue("chat.index"); err == nil && current == index {
		return
	}
	if err := cfger.SetConfigValue("chat.index", index); err != nil {
		e.Logger.Debug("could not remember index", "index", index, "error", err)
	}
}

// Storage opens the session history store.
func (e *Env) Storage(ctx context.Context) (storage.Driver, error) {
	opts := &storageutils.NewDriverOpts{
		ProviderType: e.Config.Storage.Provider,
		PostgresDSN:  e.Config.Storage.PostgresDSN,
		Logger:       e.Logger,
	}

	if opts.ProviderType == "sqlite" || opts.ProviderType == "" {
		path, err := sqlitepath.ResolveSQLitePath(e.Config.Storage.SQLitePath, e.ConfigDir)
		if err != nil {
			return nil, err
		}
		opts.SQLitePath = path
	}

	return storageutils.NewDriver(ctx, opts)
}

// Publisher returns the configured session event publisher.
func (e *Env) Publisher() (eventstream.Publisher, error) {
	return eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: e.Config.EventStream.Provider,
		Brokers:      e.Config.EventStream.BrokerList(),
		Topic:        e.Config.EventStream.Topic,
		Logger:       e.Logger,
	})
}

// Recorder starts a worker pool that stores and announces finished sessions.
// The returned func drains the pool and closes the store and publisher.
func (e *Env) Recorder(ctx context.Context) (*worker.Pool, func(), error) {
	driver, err := e.Storage(ctx)
	if err != nil {
		return nil, nil, err
	}

	pool, closePool, err := e.RecorderOn(driver)
	if err != nil {
		_ = driver.Close()
		return nil, nil, err
	}

	closeFn := func() {
		closePool()
		if err := driver.Close(); err != nil {
			e.Logger.Warn("closing storage", "error", err)
		}
	}
	return pool, closeFn, nil
}

// RecorderOn starts a worker pool writing to an already open store. The
// returned func drains the pool and closes the publisher; the store stays
// open.
func (e *Env) RecorderOn(driver storage.Driver) (*worker.Pool, func(), error) {
	pub, err := e.Publisher()
	if err != nil {
		return nil, nil, err
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: pub,
		Backend:   e.Config.Backend.Target,
		Logger:    e.Logger,
	})
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	closeFn := func() {
		pool.Close()
		if err := pub.Close(); err != nil {
			e.Logger.Warn("closing publisher", "error", err)
		}
	}
	return pool, closeFn, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
