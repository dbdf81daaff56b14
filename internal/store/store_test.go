package store

import (
	"context"
	"testing"
)

// newTestDB opens an in-memory SQLite database, runs migrations, and
// returns it. The database is discarded when the test process exits.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(1, ":memory:", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenAppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	var count int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&count); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	if count == 0 {
		t.Fatal("expected at least one migration recorded")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	first := newTestDB(t)
	var before int
	if err := first.conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&before); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}

	// Re-running migrate() against the same connection must not re-apply
	// any migration or error on duplicate version rows.
	if err := first.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var after int
	if err := first.conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&after); err != nil {
		t.Fatalf("query schema_version: %v", err)
	}
	if before != after {
		t.Errorf("expected migration count unchanged, got %d then %d", before, after)
	}
}

func TestDeriveKeyIsStableAndPerUser(t *testing.T) {
	a := DeriveKey(42)
	b := DeriveKey(42)
	if a != b {
		t.Error("DeriveKey is not deterministic for the same uid")
	}
	c := DeriveKey(43)
	if a == c {
		t.Error("DeriveKey must differ across uids")
	}
}

func TestExecuteAndQueryRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Execute(ctx, `INSERT INTO user (user_id, username, nickname, avatar, user_type) VALUES (?, ?, ?, ?, ?)`,
		7, "alice", "Alice", "", 0); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	rows, err := db.Query(ctx, `SELECT user_id, username FROM user WHERE user_id = ?`, 7)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["username"] != "alice" {
		t.Errorf("username = %v, want alice", rows[0]["username"])
	}
}
