// Package sqldb opens the server's SQL database. The ledger and the account
// store share one handle so player ids and game history live side by side.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

// Dialect covers the few places SQLite and Postgres disagree.
type Dialect struct {
	Name string
	// Dollar selects $1, $2, ... placeholders instead of ?.
	Dollar bool
}

var (
	SQLite   = Dialect{Name: ModeSQLite}
	Postgres = Dialect{Name: ModePostgres, Dollar: true}
)

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Dollar {
		return query
	}
	var b strings.Builder
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

// DB is a database handle tagged with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Exec rebinds query and runs it on q.
func (db *DB) Exec(ctx context.Context, q Execer, query string, args ...any) error {
	_, err := q.ExecContext(ctx, db.Dialect.Rebind(query), args...)
	return err
}

// Migrate runs the statement list for the handle's dialect.
func (db *DB) Migrate(ctx context.Context, sqliteStmts, postgresStmts []string) error {
	stmts := sqliteStmts
	if db.Dialect.Name == ModePostgres {
		stmts = postgresStmts
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", db.Dialect.Name, err)
		}
	}
	return nil
}

// Open returns the database for mode. Memory mode has no database and
// returns nil, nil.
func Open(ctx context.Context, mode, sqlitePath, dsn string) (*DB, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeMemory:
		return nil, nil
	case ModeSQLite, "local":
		return OpenSQLite(sqlitePath)
	case ModePostgres, "postgresql", "db":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("invalid database mode %q", mode)
	}
}

// OpenSQLite opens (and if needed creates) a local database file.
func OpenSQLite(dbPath string) (*DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// one writer; also keeps :memory: on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, stmt := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA foreign_keys = ON;`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &DB{DB: db, Dialect: SQLite}, nil
}

// OpenPostgres connects to dsn.
func OpenPostgres(ctx context.Context, dsn string) (*DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db, Dialect: Postgres}, nil
}
