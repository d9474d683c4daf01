package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as
// "24h" style strings. Bare integers are taken as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type (
	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Port int `yaml:"port"`
	}

	// DatabaseConfig represents the ledger store configuration
	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	// JWTConfig represents the token service configuration
	JWTConfig struct {
		SecretKey      string   `yaml:"secret_key"`
		AdminSecretKey string   `yaml:"admin_secret_key"`
		Duration       Duration `yaml:"duration"`
		AdminDuration  Duration `yaml:"admin_duration"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// NotifierConfig represents the runtime-config reload notifier configuration
	NotifierConfig struct {
		Role  string              `yaml:"role"` // receiver, sender, or both
		Type  string              `yaml:"type"` // signal, redis, composite
		Redis NotifierRedisConfig `yaml:"redis"`
	}

	// NotifierRedisConfig represents the Redis configuration for the notifier
	NotifierRedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
	}

	// UploadConfig bounds avatar uploads
	UploadConfig struct {
		MaxFileSize  int64    `yaml:"max_file_size"` // bytes
		AllowedTypes []string `yaml:"allowed_types"` // file extensions
		LocalDir     string   `yaml:"local_dir"`     // directory for the local provider
		PublicURL    string   `yaml:"public_url"`    // base URL files are served from
	}

	// SeedConfig holds the defaults written by the migrate command
	SeedConfig struct {
		AppID         string `yaml:"app_id"`
		AppSecret     string `yaml:"app_secret"`
		AdminUsername string `yaml:"admin_username"`
		AdminPassword string `yaml:"admin_password"`
	}

	// APIServerConfig is the top-level configuration for the memberd server
	APIServerConfig struct {
		Server   ServerConfig   `yaml:"server"`
		Database DatabaseConfig `yaml:"database"`
		JWT      JWTConfig      `yaml:"jwt"`
		Logger   LoggerConfig   `yaml:"logger"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Notifier NotifierConfig `yaml:"notifier"`
		Upload   UploadConfig   `yaml:"upload"`
		Seed     SeedConfig     `yaml:"seed"`
	}
)

// NotifierRole represents the role of a notifier
type NotifierRole string

const (
	// RoleReceiver represents a notifier that can only receive updates
	RoleReceiver NotifierRole = "receiver"
	// RoleSender represents a notifier that can only send updates
	RoleSender NotifierRole = "sender"
	// RoleBoth represents a notifier that can both send and receive updates
	RoleBoth NotifierRole = "both"
)

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*APIServerConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := resolveCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	data = resolveEnv(data)
	var cfg APIServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}
	cfg.setDefaults()

	return &cfg, cfgPath, nil
}

func (c *APIServerConfig) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.JWT.Duration <= 0 {
		c.JWT.Duration = Duration(7 * 24 * time.Hour)
	}
	if c.JWT.AdminDuration <= 0 {
		c.JWT.AdminDuration = Duration(24 * time.Hour)
	}
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = 5 * 1024 * 1024
	}
	if len(c.Upload.AllowedTypes) == 0 {
		c.Upload.AllowedTypes = []string{"jpg", "jpeg", "png", "gif", "webp"}
	}
	if c.Upload.LocalDir == "" {
		c.Upload.LocalDir = "data/uploads"
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case "postgres":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	case "sqlite":
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// resolveCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/memberd/{filename}
func resolveCfgPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}

	if cwd, err := os.Getwd(); err == nil && cwd != "" {
		for _, candidate := range []string{
			filepath.Join(cwd, filename),
			filepath.Join(cwd, "configs", filename),
		} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}

	return filepath.Join("/etc/memberd", filename)
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
