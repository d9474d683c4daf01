package database

import (
	"fmt"

	"github.com/halolabs/memberd/internal/common/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgres creates a Store backed by PostgreSQL
func NewPostgres(cfg *config.DatabaseConfig) (Database, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	return &Store{db: gormDB}, nil
}
