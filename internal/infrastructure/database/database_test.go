package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// openTestDB opens a throwaway database under t.TempDir.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "dali-bridge.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	return db
}

func TestOpenCreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "bridge", "dali-bridge.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if got := db.Path(); got != dbPath {
		t.Errorf("Path() = %q, want %q", got, dbPath)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() after nil error = %v", err)
	}
}

func TestExecContext(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE fixtures (id INTEGER PRIMARY KEY, name TEXT NOT NULL)",
	); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	result, err := db.ExecContext(ctx, "INSERT INTO fixtures (name) VALUES (?)", "hall downlight")
	if err != nil {
		t.Fatalf("INSERT error = %v", err)
	}
	if id, _ := result.LastInsertId(); id != 1 {
		t.Errorf("LastInsertId() = %d, want 1", id)
	}
}

func TestTransactions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx,
		"CREATE TABLE fixtures (id INTEGER PRIMARY KEY, name TEXT)",
	); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	countNamed := func(name string) int {
		t.Helper()
		var n int
		if err := db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM fixtures WHERE name = ?", name,
		).Scan(&n); err != nil {
			t.Fatalf("SELECT error = %v", err)
		}
		return n
	}

	t.Run("commit persists", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO fixtures (name) VALUES (?)", "kept"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if n := countNamed("kept"); n != 1 {
			t.Errorf("committed rows = %d, want 1", n)
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatalf("BeginTx() error = %v", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO fixtures (name) VALUES (?)", "discarded"); err != nil {
			t.Fatalf("INSERT error = %v", err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatalf("Rollback() error = %v", err)
		}
		if n := countNamed("discarded"); n != 0 {
			t.Errorf("rolled back rows = %d, want 0", n)
		}
	})
}

func TestStatsSingleWriter(t *testing.T) {
	db := openTestDB(t)

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}
