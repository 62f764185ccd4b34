package db

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func ptrStr(s string) *string { return &s }

// setupTestDB sets up a test database connection against a uniquely named
// shared-cache in-memory database, so that concurrently running tests do
// not see each other's tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbName := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", dbName)

	testDB, err := NewConnection(dsn, os.DirFS("sql"), nil)
	if err != nil {
		t.Fatalf("in-memory test database opening error: %v", err)
	}

	t.Cleanup(func() {
		if err := testDB.Close(); err != nil {
			t.Fatalf("unexpected db close error: %v", err)
		}
	})

	return testDB
}

func TestNewConnectionInMemoryNeedsSharedCache(t *testing.T) {
	_, err := NewConnection("file::memory:", os.DirFS("sql"), nil)
	if err == nil {
		t.Fatal("expected error for in-memory dsn without shared cache")
	}
}
