package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/pretriage/pretriage/internal/catalog"
	"github.com/pretriage/pretriage/internal/config"
	"github.com/pretriage/pretriage/internal/domain/facility"
	"github.com/pretriage/pretriage/internal/domain/triage"
	"github.com/pretriage/pretriage/internal/platform/auth"
	"github.com/pretriage/pretriage/internal/platform/db"
	"github.com/pretriage/pretriage/internal/platform/logging"
	"github.com/pretriage/pretriage/internal/platform/middleware"
	"github.com/pretriage/pretriage/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "triage-server",
		Short: "Pre-triage orchestrator API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(catalogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the triage API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-30s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-30s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage reference catalogs",
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and cross-check the catalog files",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cat, err := catalog.Load(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Catalog OK: %d canonicals, %d diseases, %d specialties, %d locales.\n",
				len(cat.Canonicals()), len(cat.DiseaseSymptoms), len(cat.Specialties), len(cat.QuestionBanks))
			return nil
		},
	}
	validateCmd.Flags().String("dir", "", "Catalog directory (empty uses embedded defaults)")
	cmd.AddCommand(validateCmd)

	return cmd
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Development: cfg.IsDev(),
		Level:       cfg.LogLevel,
		FilePath:    cfg.LogFile,
	})

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalogs")
	}
	logger.Info().
		Int("canonicals", len(cat.Canonicals())).
		Int("diseases", len(cat.DiseaseSymptoms)).
		Int("specialties", len(cat.Specialties)).
		Msg("catalogs loaded")

	// Session store: Postgres when configured, in-memory in development.
	ctx := context.Background()
	var repo triage.Repository
	var readyHandler echo.HandlerFunc
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
		repo = triage.NewRepoPG(pool)
		readyHandler = db.HealthHandler(pool)
	} else {
		if !cfg.IsDev() {
			logger.Fatal().Msg("DATABASE_URL is required outside development")
		}
		repo = triage.NewMemRepository()
		readyHandler = func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "healthy", "store": "memory"})
		}
	}

	counters := telemetry.NewCounters()
	facilitySvc := facility.NewService(cat)
	triageSvc := triage.NewService(cat, repo, facilitySvc, logger, counters)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-API-Key"},
	}))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.TurnTimeoutSec) * time.Second))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/readyz", readyHandler)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	adminGroup := e.Group("/admin")
	if authCfg := cfg.AuthConfig(); authCfg.Enabled() {
		adminGroup.Use(auth.Middleware(authCfg))
	} else if !cfg.IsDev() {
		logger.Fatal().Msg("admin credentials missing outside development")
	}
	adminGroup.GET("/metrics", counters.Handler())

	triage.NewHandler(triageSvc).RegisterRoutes(apiV1, adminGroup)
	facility.NewHandler(facilitySvc).RegisterRoutes(apiV1)

	// Start server with graceful shutdown.
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	return nil
}
