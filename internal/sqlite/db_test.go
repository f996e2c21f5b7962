package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"runs", "run_bins", "journal"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// Reopening an existing ledger must not fail.
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")

	_, err = db.ExecContext(context.Background(),
		`INSERT INTO run_bins (run_id, bin_index, name, dir, status, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"missing", 0, "phase_0.0-0.5", "/bins/phase_0.0-0.5", "ok", time.Now())
	require.Error(t, err, "should fail without a parent run")
}

// TestRunsTable verifies the status constraint
func TestRunsTable(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.Exec(`INSERT INTO runs (id, root, status, started_at) VALUES (?, ?, ?, ?)`,
		"r1", "/bins", "running", time.Now())
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO runs (id, root, status, started_at) VALUES (?, ?, ?, ?)`,
		"r2", "/bins", "exploded", time.Now())
	require.Error(t, err, "should fail with invalid status")
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}
