package database

import (
	"fmt"
	"os"
	"path/filepath"

	"reel-go/internal/config"
	"reel-go/internal/reel"
)

// NewJournalFromConfig opens the journal named by cfg. File-backed journals
// are returned as-is and must be migrated explicitly; in-memory journals
// are migrated on open.
func NewJournalFromConfig(cfg config.DatabaseConfig, hostID string, clock reel.Clock) (*SQLiteJournal, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteJournal(filepath.Join(cfg.DataDir, hostID+".db"), clock)
	case "memory":
		j, err := NewSQLiteJournal(":memory:", clock)
		if err != nil {
			return nil, err
		}
		if err := j.MigrateUp(); err != nil {
			j.Close()
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
