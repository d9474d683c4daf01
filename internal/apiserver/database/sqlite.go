package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/halolabs/memberd/internal/common/config"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// NewSQLite creates a Store backed by SQLite
func NewSQLite(cfg *config.DatabaseConfig) (Database, error) {
	if cfg.DBName != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBName), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite database: %w", err)
		}
	}

	gormDB, err := gorm.Open(sqlite.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &Store{db: gormDB}, nil
}
