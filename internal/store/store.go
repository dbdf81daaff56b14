// Package store implements the single-writer, per-user encrypted SQL store
// (C1 Store Actor, C2 Entity DAOs, C3 Message Timeline). Every exported
// method on [DB] is safe to call from any goroutine; callers that need the
// actor's command/reply serialization guarantee should go through [Actor]
// instead of calling a [DB] directly from multiple goroutines.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// migrationName matches the refinery-style "V{N}__{desc}.sql" filename.
var migrationName = regexp.MustCompile(`^V(\d+)__.*\.sql$`)

// externalMigrationName matches the assets-dir style
// "{14-digit-timestamp}[_desc].sql" filename.
var externalMigrationName = regexp.MustCompile(`^(\d{14})(?:_.*)?\.sql$`)

// cipherSalt is the constant build-time salt concatenated with uid before
// SHA-256 to derive a per-user database key, per spec §6.
const cipherSalt = "privchat-sdk-sub000-v1"

// DeriveKey returns the SHA-256(salt ‖ uid) key used to encrypt a user's
// database file.
func DeriveKey(uid uint64) [32]byte {
	return sha256.Sum256([]byte(cipherSalt + strconv.FormatUint(uid, 10)))
}

// DB wraps one user's SQLite connection and exposes the DAO surface (C2)
// plus the timeline pagination surface (C3). It assumes single-writer
// discipline is enforced by its caller (normally [Actor]).
type DB struct {
	conn      *sql.DB
	uid       uint64
	path      string
	assetsDir string
}

// Open opens (or creates) the per-user database at path, applies the
// derived-key pragma hook, enables WAL/foreign-key pragmas, and runs
// migrations. assetsDir, if non-empty, is scanned for external migration
// files applied strictly after the highest embedded version.
func Open(uid uint64, path, assetsDir string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	conn.SetMaxOpenConns(1) // structural single-writer: one *sql.DB connection total

	db := &DB{conn: conn, uid: uid, path: path, assetsDir: assetsDir}
	if err := db.applyCipher(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := db.pragmas(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := db.assertCoreTables(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	slog.Info("store opened", "uid", uid, "path", path)
	return db, nil
}

// applyCipher derives the per-user key. modernc.org/sqlite does not ship
// page-level encryption, so this is a no-op; the key is still derived here
// so that a cipher-capable driver can be swapped in later without changing
// any caller.
func (d *DB) applyCipher() error {
	key := DeriveKey(d.uid)
	_ = key // reserved: no-op in this build
	return nil
}

func (d *DB) pragmas() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA foreign_keys=ON`,
		`PRAGMA busy_timeout=5000`,
	}
	for _, s := range stmts {
		if _, err := d.conn.Exec(s); err != nil {
			slog.Warn("pragma failed (non-fatal)", "stmt", s, "err", err)
		}
	}
	return nil
}

func (d *DB) migrate() error {
	if _, err := d.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := d.conn.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	entries, err := fs.ReadDir(embeddedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	type migration struct {
		version int
		sql     string
		label   string
	}
	var embedded []migration
	for _, e := range entries {
		m := migrationName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, _ := strconv.Atoi(m[1])
		data, err := embeddedMigrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		embedded = append(embedded, migration{version: v, sql: string(data), label: e.Name()})
	}
	sort.Slice(embedded, func(i, j int) bool { return embedded[i].version < embedded[j].version })

	for _, m := range embedded {
		if m.version <= current {
			continue
		}
		if err := d.applyMigration(m.version, m.sql, m.label); err != nil {
			return err
		}
		current = m.version
	}

	if d.assetsDir == "" {
		return nil
	}
	return d.applyExternalMigrations(current)
}

// applyExternalMigrations applies SQL files from assetsDir named
// "{14-digit-timestamp}[_desc].sql" in sorted order, treating the
// timestamp as a version number continuing strictly after the highest
// embedded version.
func (d *DB) applyExternalMigrations(current int) error {
	entries, err := os.ReadDir(d.assetsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read assets dir: %w", err)
	}
	type migration struct {
		version int
		path    string
		label   string
	}
	var external []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := externalMigrationName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		external = append(external, migration{version: v, path: filepath.Join(d.assetsDir, e.Name()), label: e.Name()})
	}
	sort.Slice(external, func(i, j int) bool { return external[i].version < external[j].version })

	for _, m := range external {
		if m.version <= current {
			continue
		}
		data, err := os.ReadFile(m.path)
		if err != nil {
			return fmt.Errorf("read external migration %s: %w", m.label, err)
		}
		if err := d.applyMigration(m.version, string(data), m.label); err != nil {
			return err
		}
		current = m.version
	}
	return nil
}

func (d *DB) applyMigration(version int, sqlText, label string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", label, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range splitStatements(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s: %w", label, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES(?)`, version); err != nil {
		return fmt.Errorf("record migration %s: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", label, err)
	}
	slog.Info("applied migration", "version", version, "label", label)
	return nil
}

// splitStatements splits a migration file on semicolon-newline boundaries.
// Migration SQL in this module never embeds a semicolon inside a string
// literal, so this simple split is sufficient and avoids pulling in a SQL
// parser for a one-time, build-time-authored input.
func splitStatements(sqlText string) []string {
	return strings.Split(sqlText, ";\n")
}

// assertCoreTables asserts the presence of message, channel, and
// channel_member after migration, per spec §4.1.
func (d *DB) assertCoreTables() error {
	for _, table := range []string{"message", "channel", "channel_member"} {
		var name string
		err := d.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			return fmt.Errorf("core table %q missing after migration: %w", table, err)
		}
	}
	return nil
}

// Close releases the database connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Execute runs an arbitrary write statement and returns rows affected. It
// backs the generic Execute{sql, params} command in §4.1.
func (d *DB) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	return res.RowsAffected()
}

// Query runs an arbitrary read statement and returns rows as a slice of
// column-name-to-value maps, with BLOB columns hex-encoded, per §6. It
// backs the generic Query{sql, params} command.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("query scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := raw[i].([]byte); ok {
				row[c] = fmt.Sprintf("%x", b)
				continue
			}
			row[c] = raw[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
