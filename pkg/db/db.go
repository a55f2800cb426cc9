package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const DefaultDBName = "mywi.db"

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNothingToClaim is returned when the frontier has no claimable rows.
	ErrNothingToClaim = errors.New("no pending expressions to claim")
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// DB is the store behind the crawl pipeline. It speaks SQLite by default and
// Postgres for postgres:// DSNs. Queries are written with ? placeholders and
// rebound per driver.
type DB struct {
	*sqlx.DB
	path    string
	dialect dialect
	now     func() time.Time
}

// New wraps an existing connection. The dialect follows the driver name.
func New(x *sqlx.DB) *DB {
	d := dialectSQLite
	if x.DriverName() == "postgres" {
		d = dialectPostgres
	}
	return &DB{DB: x, dialect: d, now: func() time.Time { return time.Now().UTC() }}
}

// openSQLite opens a SQLite database at the given path
func openSQLite(dbPath string) (*sqlx.DB, error) {
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	x, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	x.SetMaxOpenConns(1)
	return x, nil
}

// Open opens or creates the database named by dsn and makes sure the schema
// exists. An empty dsn selects DefaultDBName in the working directory.
func Open(ctx context.Context, dsn string) (*DB, error) {
	var (
		x   *sqlx.DB
		err error
	)
	path := dsn
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		x, err = sqlx.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		path = ""
	default:
		if path == "" {
			path = DefaultDBName
		}
		x, err = openSQLite(path)
		if err != nil {
			return nil, err
		}
	}

	db := New(x)
	db.path = path

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close() // Close error less important than schema error
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path, empty for Postgres.
func (db *DB) Path() string {
	return db.path
}

// InitSchema creates missing tables and indexes.
func (db *DB) InitSchema(ctx context.Context) error {
	_, err := db.ExecContext(ctx, schemaFor(db.dialect))
	return err
}

// isUniqueViolation reports whether err is a unique-constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// claimLock is appended to the frontier sub-select on Postgres so concurrent
// claimers skip rows another transaction is already updating.
func (db *DB) claimLock() string {
	if db.dialect == dialectPostgres {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}
