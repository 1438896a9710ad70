package storageutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docweave/weave/pkg/logger"
	"github.com/docweave/weave/pkg/storage"
	"github.com/docweave/weave/pkg/storage/inmemory"
	"github.com/docweave/weave/pkg/storage/postgres"
	"github.com/docweave/weave/pkg/storage/sqlite"
)

type NewDriverOpts struct {
	// ProviderType is one of sqlite, postgres or memory.
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
	Logger       *slog.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (storage.Driver, error) {
	log := o.Logger
	if log == nil {
		log = logger.Nop()
	}

	switch o.ProviderType {
	case "sqlite", "":
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite storage needs a database path")
		}
		driver, err := sqlite.NewSQLiteDriver(o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Debug("using SQLite storage", "path", o.SQLitePath)
		return driver, nil

	case "postgres":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage needs a connection string")
		}
		driver, err := postgres.NewDriver(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Debug("using PostgreSQL storage")
		return driver, nil

	case "memory":
		log.Debug("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
