package store

import (
	"fmt"
	"os"
	"path/filepath"

	"pav-go/internal/config"
	"pav-go/internal/pav"
)

// NewStoreFromConfig creates a RecordStore implementation based on the
// database config type. The schema is brought up to date before the store
// is returned.
func NewStoreFromConfig(cfg config.DatabaseConfig, deviceID string, logger pav.Logger) (pav.RecordStore, error) {
	var path string
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(cfg.DataDir, deviceID+".db")
	case "memory":
		path = ":memory:"
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}

	s, err := NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
