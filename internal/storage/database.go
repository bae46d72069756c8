package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"audiofp/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultSQLiteDSN is used when the sqlite3 driver is selected without a DSN.
const DefaultSQLiteDSN = "file:data/audiofp.db?_busy_timeout=5000"

// Dialect names accepted by Open and Migrate once aliases are folded.
const (
	DialectSQLite   = "sqlite3"
	DialectMySQL    = "mysql"
	DialectPostgres = "pgx"
)

// Dialect folds driver aliases (sqlite, postgres, ...) into the registered
// database/sql driver name. Unknown names are returned lowercased.
func Dialect(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "sqlite", "sqlite3":
		return DialectSQLite
	case "pgx", "postgres", "postgresql":
		return DialectPostgres
	default:
		return d
	}
}

// Open connects to the ledger database for driver (sqlite3, mysql or pgx).
func Open(driver string, cfg config.DatabaseConfig) (*sql.DB, error) {
	dialect := Dialect(driver)
	dsn, err := buildDSN(dialect, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time, and :memory: databases live per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func buildDSN(dialect string, cfg config.DatabaseConfig) (string, error) {
	switch dialect {
	case DialectSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
		return dsn, ensureSQLiteDir(dsn)
	case DialectMySQL:
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			cfg.Username, cfg.Password, cfg.Host, portOr(cfg.Port, 3306),
			cfg.Name, withParseTime(cfg.Params)), nil
	case DialectPostgres:
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.Username, cfg.Password),
			Host:     fmt.Sprintf("%s:%d", cfg.Host, portOr(cfg.Port, 5432)),
			Path:     "/" + cfg.Name,
			RawQuery: cfg.Params,
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", dialect)
	}
}

// schemas holds the invocation ledger DDL per dialect.
var schemas = map[string][]string{
	DialectSQLite: {
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			detected_mime TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			staged_path TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER,
			error_text TEXT,
			audio_duration REAL,
			elapsed_ms INTEGER,
			created_at DATETIME NOT NULL,
			completed_at DATETIME,
			removed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_pending ON invocations(removed_at, created_at)`,
	},
	DialectMySQL: {
		`CREATE TABLE IF NOT EXISTS invocations (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			original_name VARCHAR(1024) NOT NULL,
			mime_type VARCHAR(255) NOT NULL,
			detected_mime VARCHAR(255) NOT NULL DEFAULT '',
			size BIGINT NOT NULL,
			content_hash VARCHAR(32) NOT NULL,
			staged_path TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			exit_code INT NULL,
			error_text TEXT NULL,
			audio_duration DOUBLE NULL,
			elapsed_ms BIGINT NULL,
			created_at DATETIME(6) NOT NULL,
			completed_at DATETIME(6) NULL,
			removed_at DATETIME(6) NULL,
			INDEX idx_invocations_pending (removed_at, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	DialectPostgres: {
		`CREATE TABLE IF NOT EXISTS invocations (
			id TEXT PRIMARY KEY,
			original_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			detected_mime TEXT NOT NULL DEFAULT '',
			size BIGINT NOT NULL,
			content_hash TEXT NOT NULL,
			staged_path TEXT NOT NULL,
			status TEXT NOT NULL,
			exit_code INTEGER,
			error_text TEXT,
			audio_duration DOUBLE PRECISION,
			elapsed_ms BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ,
			removed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_pending ON invocations(removed_at, created_at)`,
	},
}

// Migrate ensures the invocation ledger table is present.
func Migrate(db *sql.DB, driver string) error {
	dialect := Dialect(driver)
	stmts, ok := schemas[dialect]
	if !ok {
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", dialect, err)
		}
	}
	return nil
}

// Rebind rewrites ? placeholders to $n for postgres.
func Rebind(driver, query string) string {
	if Dialect(driver) != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	return nil
}

func withParseTime(params string) string {
	if strings.Contains(params, "parseTime=") {
		return params
	}
	if params == "" {
		return "parseTime=true"
	}
	return params + "&parseTime=true"
}

func portOr(port, fallback int) int {
	if port == 0 {
		return fallback
	}
	return port
}
