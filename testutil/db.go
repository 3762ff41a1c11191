package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/practicas-ubb/practicas/storage/database"
)

const truncateQuery = `TRUNCATE evaluations, documents, practices, evaluators, practice_requests,
	applications, offers, students, users RESTART IDENTITY CASCADE`

// PrepareDB opens the Postgres database named by TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed to open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()

	if _, err := db.Exec(truncateQuery); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
