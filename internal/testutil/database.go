package testutil

import (
	"testing"

	"reel-go/internal/database"
	"reel-go/internal/reel"
)

// NewTestJournal creates a migrated in-memory journal that is closed when
// the test completes.
func NewTestJournal(t *testing.T, clock reel.Clock) *database.SQLiteJournal {
	t.Helper()

	j, err := database.NewSQLiteJournal(":memory:", clock)
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	if err := j.MigrateUp(); err != nil {
		t.Fatalf("failed to migrate journal: %v", err)
	}
	return j
}
