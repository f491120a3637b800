package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"

	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

// sqliteDefaults are added to every SQLite DSN unless the caller already
// sets the same option.
var sqliteDefaults = []struct{ marker, param string }{
	{"foreign_keys", "_pragma=foreign_keys(1)"},
	{"busy_timeout", "_pragma=busy_timeout(5000)"},
	{"_time_format", "_time_format=sqlite"},
}

// DB wraps a sqlx handle with the goqu dialect matching its driver. For
// PostgreSQL the underlying connections come from a pgx pool.
type DB struct {
	*sqlx.DB
	dialect string
	pool    *pgxpool.Pool
}

// Open connects to the database selected by driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverPostgres, "postgres":
		return openPostgres(ctx, dsn)
	case DriverSQLite:
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database (%s): %w", RedactDSN(dsn), err)
	}
	return &DB{
		DB:      sqlx.NewDb(stdlib.OpenDBFromPool(pool), DriverPostgres),
		dialect: DialectPostgres,
		pool:    pool,
	}, nil
}

// OpenSQLite opens an embedded SQLite database. An empty dsn means a private
// in-memory database. Writes are serialized over a single connection.
func OpenSQLite(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sqlx.Open(DriverSQLite, sqliteDSN(dsn))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{DB: db, dialect: DialectSQLite}, nil
}

func sqliteDSN(dsn string) string {
	for _, d := range sqliteDefaults {
		if strings.Contains(dsn, d.marker) {
			continue
		}
		sep := "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
		dsn += sep + d.param
	}
	return dsn
}

// Dialect returns the goqu dialect name: "postgres" or "sqlite3".
func (d *DB) Dialect() string {
	return d.dialect
}

// Goqu returns a query builder for this database's dialect.
func (d *DB) Goqu() goqu.DialectWrapper {
	return goqu.Dialect(d.dialect)
}

func (d *DB) Ping(ctx context.Context) error {
	if d.pool != nil {
		return d.pool.Ping(ctx)
	}
	return d.DB.PingContext(ctx)
}

func (d *DB) Close() {
	_ = d.DB.Close()
	if d.pool != nil {
		d.pool.Close()
	}
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsUniqueViolation reports whether err is a unique constraint violation on
// either supported engine.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// RedactDSN hides credentials in a connection string before it is logged.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
