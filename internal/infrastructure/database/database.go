package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// dataDirMode is the permission mode for the database directory.
	dataDirMode = 0750

	// dataFileMode restricts the database file to the owning user.
	// Gateway credentials never land here, but device names and layout do.
	dataFileMode = 0600

	// openPingTimeout bounds the connectivity check during Open.
	openPingTimeout = 5 * time.Second

	// connMaxIdleTime is how long an idle connection is kept open.
	connMaxIdleTime = 30 * time.Minute
)

// DB wraps the bridge's SQLite handle with migrations, health checks
// and lifecycle management. The device repository and the migration
// runner are the only writers.
type DB struct {
	*sql.DB
	path string
}

// Config mirrors the database section of config.yaml.
type Config struct {
	// Path is the SQLite file location. The parent directory is created
	// on first open.
	Path string

	// WALMode enables write-ahead logging so registry reads are not
	// blocked while state updates are flushed.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database,
	// in seconds.
	BusyTimeout int
}

// Open opens (creating if necessary) the bridge database and verifies
// the connection with a ping before returning.
func Open(cfg Config) (*DB, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, dataDirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pragmas ride on the DSN, see github.com/mattn/go-sqlite3 docs.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite permits one writer at a time. A single pooled connection
	// sidesteps lock contention between the state writer and scans.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // best effort on the error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist yet on a fresh install; permissions stick
	// once the first write creates it.
	_ = os.Chmod(cfg.Path, dataFileMode)

	return db, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the database file.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the database answers.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Stats exposes connection pool statistics for diagnostics.
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// ExecContext executes a statement that returns no rows, wrapping any
// failure with context.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// QueryRowContext executes a query expected to return at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction. Multi-row writes, such as replacing a
// gateway's scan results, always run inside one.
func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}
