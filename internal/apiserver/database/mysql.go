package database

import (
	"fmt"

	"github.com/halolabs/memberd/internal/common/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL creates a Store backed by MySQL
func NewMySQL(cfg *config.DatabaseConfig) (Database, error) {
	gormDB, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql database: %w", err)
	}
	return &Store{db: gormDB}, nil
}
