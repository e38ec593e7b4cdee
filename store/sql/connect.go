package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	syncmigrations "github.com/npdadmin/syncengine/migrations"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const defaultPingTimeout = 5 * time.Second

// ConnectConfig describes a database connection for the engine stores.
// It satisfies the persistence client config contract.
type ConnectConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
	MaxOpenConns   int
	SkipMigrations bool
}

func (c ConnectConfig) GetDebug() bool {
	return c.Debug
}

func (c ConnectConfig) GetDriver() string {
	return normalizeDriver(c.Driver)
}

func (c ConnectConfig) GetServer() string {
	return c.DSN
}

func (c ConnectConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c ConnectConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "syncengine"
	}
	return c.OtelIdentifier
}

// Connect opens a persistence client for the configured driver and applies
// the engine schema migrations unless SkipMigrations is set.
func Connect(ctx context.Context, cfg ConnectConfig) (*persistence.Client, error) {
	driver := normalizeDriver(cfg.Driver)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: connection dsn is required")
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s connection: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	var client *persistence.Client
	switch driver {
	case DriverPostgres:
		client, err = persistence.New(cfg, sqlDB, pgdialect.New())
	case DriverSQLite:
		client, err = persistence.New(cfg, sqlDB, sqlitedialect.New())
	default:
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	if cfg.SkipMigrations {
		return client, nil
	}
	if err := registerAndMigrate(ctx, client, driver); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func registerAndMigrate(ctx context.Context, client *persistence.Client, driver string) error {
	target := syncmigrations.DialectPostgres
	if driver == DriverSQLite {
		target = syncmigrations.DialectSQLite
	}

	_, err := syncmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, syncmigrations.WithValidationTargets(target))
	if err != nil {
		return fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pg":
		return DriverPostgres
	case "sqlite", "sqlite3":
		return DriverSQLite
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}
