package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/halolabs/memberd/internal/apiserver/database"
	"github.com/halolabs/memberd/internal/apiserver/handler"
	"github.com/halolabs/memberd/internal/auth/jwt"
	"github.com/halolabs/memberd/internal/common/config"
	"github.com/halolabs/memberd/internal/core/level"
	"github.com/halolabs/memberd/internal/core/points"
	"github.com/halolabs/memberd/internal/core/recharge"
	"github.com/halolabs/memberd/internal/notify/email"
	"github.com/halolabs/memberd/internal/notify/sms"
	"github.com/halolabs/memberd/internal/storage"
	"github.com/halolabs/memberd/internal/sysconfig"
	"github.com/halolabs/memberd/internal/sysconfig/notifier"
	"github.com/halolabs/memberd/pkg/logger"
	"github.com/halolabs/memberd/pkg/metrics"
	"github.com/halolabs/memberd/pkg/version"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "memberd",
		Short: "Multi-tenant membership and points backend",
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Run schema migration and seed default data",
		Run: func(cmd *cobra.Command, args []string) {
			migrate()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memberd",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memberd version %s\n", version.Get())
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "memberd.yaml", "path to configuration file")
	rootCmd.AddCommand(migrateCmd, versionCmd)
}

func loadConfig() (*config.APIServerConfig, *zap.Logger) {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	zapLogger.Info("configuration loaded",
		zap.String("path", cfgPath),
		zap.String("version", version.Get()))
	return cfg, zapLogger
}

func openDatabase(cfg *config.APIServerConfig, zapLogger *zap.Logger) database.Database {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zapLogger.Fatal("failed to open database",
			zap.String("type", cfg.Database.Type),
			zap.Error(err))
	}
	if err := db.Migrate(context.Background()); err != nil {
		zapLogger.Fatal("failed to migrate database", zap.Error(err))
	}
	return db
}

func run() {
	cfg, zapLogger := loadConfig()
	defer func() { _ = zapLogger.Sync() }()

	db := openDatabase(cfg, zapLogger)
	defer db.Close()

	jwtService, err := jwt.NewService(cfg.JWT)
	if err != nil {
		zapLogger.Fatal("failed to initialize token service", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Runtime config with cross-instance reload.
	var reloadNotifier notifier.Notifier
	if cfg.Notifier.Type != "" {
		reloadNotifier, err = notifier.NewNotifier(ctx, zapLogger, &cfg.Notifier)
		if err != nil {
			zapLogger.Fatal("failed to initialize notifier", zap.Error(err))
		}
	}
	configs := sysconfig.NewLoader(db, zapLogger, reloadNotifier)
	if err := configs.Load(ctx); err != nil {
		zapLogger.Warn("failed to load system configs, using defaults", zap.Error(err))
	}
	go configs.WatchReload(ctx)

	files, err := storage.NewLocalProvider(cfg.Upload.LocalDir, cfg.Upload.PublicURL)
	if err != nil {
		zapLogger.Fatal("failed to initialize upload storage", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	levelResolver := level.NewResolver(db)
	pointsEngine := points.NewEngine(db, levelResolver, zapLogger, m)
	rechargeEngine := recharge.NewEngine(db, zapLogger, m)
	emailSender := email.NewSender(configs, zapLogger)
	smsSender := sms.NewSender(configs, zapLogger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if m != nil {
		router.Use(m.GinMiddleware())
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Get()})
	})
	router.Static("/uploads", cfg.Upload.LocalDir)

	h := handler.NewHandler(db, jwtService, pointsEngine, rechargeEngine,
		configs, files, cfg.Upload, emailSender, smsSender, zapLogger)
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		zapLogger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("forced shutdown", zap.Error(err))
	}
}

func migrate() {
	cfg, zapLogger := loadConfig()
	defer func() { _ = zapLogger.Sync() }()

	db := openDatabase(cfg, zapLogger)
	defer db.Close()

	if err := seed(context.Background(), db, &cfg.Seed, zapLogger); err != nil {
		zapLogger.Fatal("failed to seed default data", zap.Error(err))
	}
	zapLogger.Info("migration complete")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
