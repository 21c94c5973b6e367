package testutil

import (
	"os"
	"testing"

	"github.com/Staysteady/bpipe/internal/db"
)

// SetupDB opens a fresh in-memory DuckDB with the full schema for a test.
// Set TEST_DATABASE_PATH to run against a file instead.
func SetupDB(t *testing.T) *db.DB {
	t.Helper()

	path := os.Getenv("TEST_DATABASE_PATH")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
