package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/common/config"
	"github.com/halolabs/memberd/internal/sysconfig"
	"github.com/halolabs/memberd/pkg/utils"
)

// seed writes the default rows a fresh deployment needs: one app, the
// base member level, an admin account, and baseline system configs.
// It is idempotent; existing rows are left alone.
func seed(ctx context.Context, db database.Database, cfg *config.SeedConfig, logger *zap.Logger) error {
	if err := seedApp(ctx, db, cfg, logger); err != nil {
		return err
	}
	if err := seedLevel(ctx, db, logger); err != nil {
		return err
	}
	if err := seedAdmin(ctx, db, cfg, logger); err != nil {
		return err
	}
	return seedConfigs(ctx, db)
}

func seedApp(ctx context.Context, db database.Database, cfg *config.SeedConfig, logger *zap.Logger) error {
	appID := cfg.AppID
	if appID == "" {
		appID = "app_default"
	}
	if _, err := db.GetAppByAppID(ctx, appID); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	secret := cfg.AppSecret
	if secret == "" {
		secret = utils.AppSecret()
	}
	app := &database.App{
		AppID:      appID,
		AppName:    "Default App",
		AppSecret:  secret,
		LoginMode:  database.LoginModePassword,
		ChargeMode: database.ChargeModeFree,
		Status:     database.StatusActive,
	}
	if err := db.CreateApp(ctx, app); err != nil {
		return fmt.Errorf("seed app: %w", err)
	}
	logger.Info("seeded default app",
		zap.String("app_id", appID),
		zap.String("app_secret", secret))
	return nil
}

func seedLevel(ctx context.Context, db database.Database, logger *zap.Logger) error {
	levels, err := db.ListLevels(ctx)
	if err != nil {
		return err
	}
	if len(levels) > 0 {
		return nil
	}
	lvl := &database.MemberLevel{
		LevelName:  "普通会员",
		LevelValue: 1,
		MinPoints:  0,
		Discount:   1,
		Status:     database.StatusActive,
	}
	if err := db.CreateLevel(ctx, lvl); err != nil {
		return fmt.Errorf("seed level: %w", err)
	}
	logger.Info("seeded base member level", zap.Uint("id", lvl.ID))
	return nil
}

func seedAdmin(ctx context.Context, db database.Database, cfg *config.SeedConfig, logger *zap.Logger) error {
	username := cfg.AdminUsername
	if username == "" {
		username = "admin"
	}
	if _, err := db.GetAdminByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	password := cfg.AdminPassword
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &database.Admin{
		Username: username,
		Password: string(hash),
		Role:     "admin",
		Status:   database.StatusActive,
	}
	if err := db.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	logger.Info("seeded admin account", zap.String("username", username))
	return nil
}

func seedConfigs(ctx context.Context, db database.Database) error {
	defaults := []*database.SystemConfig{
		{ConfigKey: sysconfig.KeyStorageType, ConfigValue: "local", ConfigType: "string", Description: "avatar storage backend"},
		{ConfigKey: sysconfig.KeySMSEnabled, ConfigValue: "false", ConfigType: "boolean", Description: "enable SMS delivery"},
		{ConfigKey: sysconfig.KeyEmailEnabled, ConfigValue: "false", ConfigType: "boolean", Description: "enable email delivery"},
	}

	existing, err := db.ListSystemConfigs(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(existing))
	for _, row := range existing {
		present[row.ConfigKey] = true
	}

	for _, row := range defaults {
		if present[row.ConfigKey] {
			continue
		}
		if err := db.UpsertSystemConfig(ctx, row); err != nil {
			return fmt.Errorf("seed config %s: %w", row.ConfigKey, err)
		}
	}
	return nil
}
