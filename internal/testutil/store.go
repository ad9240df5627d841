package testutil

import (
	"testing"

	"pav-go/internal/store"
)

// NewTestStore creates a new in-memory SQLite record store with the schema
// applied. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	if err := s.EnsureSchema(); err != nil {
		s.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}
