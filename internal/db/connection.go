// Package db opens and migrates the relational store behind the pipeline.
// The default store is an embedded SQLite file; a server-backed Postgres
// store is supported through the same database/sql surface.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Driver selects the relational store implementation.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Config holds store configuration.
type Config struct {
	Driver Driver

	// SQLite
	Path string

	// Postgres
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultConfig returns the default store configuration: a local SQLite file.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverSQLite,
		Path:     "./data/mereport.sqlite",
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "mereport",
		SSLMode:  "disable",
	}
}

// Conn wraps the database handle together with its dialect.
type Conn struct {
	DB     *sql.DB
	driver Driver
}

// Executor is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Repositories accept it so the same methods run standalone or inside the
// orchestrator's unit of work.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens a connection to the configured store and verifies it.
func Open(ctx context.Context, config Config) (*Conn, error) {
	var (
		driverName string
		dsn        string
	)

	switch config.Driver {
	case DriverSQLite, "":
		driverName = "sqlite3"
		dsn = config.Path + "?_foreign_keys=on&_journal_mode=WAL"
	case DriverPostgres:
		driverName = "pgx"
		dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode,
		)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", config.Driver)
	}

	database, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One batch run, one connection; no pool needed.
	database.SetMaxOpenConns(1)

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	driver := config.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	return &Conn{DB: database, driver: driver}, nil
}

// Close closes the underlying database handle.
func (c *Conn) Close() error {
	return c.DB.Close()
}

// Driver reports which store implementation the connection targets.
func (c *Conn) Driver() Driver {
	return c.driver
}

// Rebind rewrites ?-style placeholders into the dialect's positional form.
// SQLite queries pass through unchanged.
func (c *Conn) Rebind(query string) string {
	if c.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WithTx executes fn within a transaction, committing on success and rolling
// back on error or panic.
func (c *Conn) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if err := tx.Rollback(); err != nil {
				log.Printf("Failed to rollback transaction: %v", err)
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
