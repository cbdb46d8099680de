package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/universidad/storage/database"
)

// PrepareDB opens the postgres database of TEST_DATABASE_URL, migrates it & empties every table.
// The test is skipped when TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err, "opening database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Ping(context.Background(), db))
	require.NoError(t, database.Migrate(db))
	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	_, err := db.Exec(`TRUNCATE users, university, department, professor, student, subject, subject_professor,
    enrollment, grade, enrollment_sequence RESTART IDENTITY CASCADE`)
	require.NoError(t, err, "resetting database")
}
