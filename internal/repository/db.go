package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN             string // "" = in-memory sqlite; postgres:// or postgresql:// = pgx; anything else = sqlite file DSN
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DB is an ent SQL driver plus the pool behind it, when there is one.
type DB struct {
	drv     *entsql.Driver
	dialect string
	pool    *pgxpool.Pool
	logger  *slog.Logger
}

// Open connects to the configured backend and creates the ledger tables.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	if isPostgres(cfg.DSN) {
		db, err = openPostgres(ctx, cfg, logger)
	} else {
		db, err = openSQLite(cfg.DSN, logger)
	}
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	logger.Info("ledger ready", "dialect", db.dialect)
	return db, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "doc-cleanser"

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	sqldb := stdlib.OpenDBFromPool(pool)
	return &DB{drv: entsql.OpenDB(dialect.Postgres, sqldb), dialect: dialect.Postgres, pool: pool, logger: logger}, nil
}

func openSQLite(dsn string, logger *slog.Logger) (*DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// every :memory: connection is its own database
	sqldb.SetMaxOpenConns(1)
	if _, err := sqldb.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	logger.Debug("opened sqlite ledger", "in_memory", dsn == ":memory:")
	return &DB{drv: entsql.OpenDB(dialect.SQLite, sqldb), dialect: dialect.SQLite, logger: logger}, nil
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	if d == nil {
		return
	}
	if err := d.drv.Close(); err != nil {
		d.logger.Error("failed to close ledger driver", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// HealthCheck pings the backend.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.drv.DB().PingContext(ctx)
}

func (d *DB) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.dialect)
}

func (d *DB) exec(ctx context.Context, q entsql.Querier) error {
	query, args := q.Query()
	if args == nil {
		args = []any{}
	}
	return d.drv.Exec(ctx, query, args, nil)
}

func (d *DB) migrate(ctx context.Context) error {
	b := d.builder()
	tables := []entsql.Querier{
		b.CreateTable("cleanse_run").IfNotExists().
			Columns(
				entsql.Column("id").Type("varchar(64)").Attr("NOT NULL"),
				entsql.Column("client_name").Type("text"),
				entsql.Column("documents").Type("integer").Attr("NOT NULL"),
				entsql.Column("started_at").Type("varchar(40)").Attr("NOT NULL"),
				entsql.Column("finished_at").Type("varchar(40)"),
			).
			PrimaryKey("id"),
		b.CreateTable("cleanse_job").IfNotExists().
			Columns(
				entsql.Column("id").Type("varchar(64)").Attr("NOT NULL"),
				entsql.Column("run_id").Type("varchar(64)").Attr("NOT NULL REFERENCES cleanse_run(id) ON DELETE CASCADE"),
				entsql.Column("seq").Type("integer").Attr("NOT NULL"),
				entsql.Column("document_id").Type("varchar(128)").Attr("NOT NULL"),
				entsql.Column("document_name").Type("text"),
				entsql.Column("format").Type("varchar(16)"),
				entsql.Column("status").Type("varchar(16)").Attr("NOT NULL"),
				entsql.Column("started_at").Type("varchar(40)").Attr("NOT NULL"),
				entsql.Column("finished_at").Type("varchar(40)"),
				entsql.Column("error_message").Type("text"),
				entsql.Column("redaction_count").Type("integer").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("warning_count").Type("integer").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("finding_count").Type("integer").Attr("NOT NULL DEFAULT 0"),
				entsql.Column("findings_json").Type("text"),
			).
			PrimaryKey("id"),
	}
	for _, t := range tables {
		if err := d.exec(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
