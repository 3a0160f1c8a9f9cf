package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayushbridge/api/internal/config"
	"github.com/ayushbridge/api/internal/domain/audit"
	"github.com/ayushbridge/api/internal/domain/mapping"
	"github.com/ayushbridge/api/internal/platform/auth"
	"github.com/ayushbridge/api/internal/platform/db"
	"github.com/ayushbridge/api/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "bridge-server",
		Short: "NAMASTE to ICD-11 terminology mapping server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(clearCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the mapping API server",
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

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default from config)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default from config)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load mapping records from a JSON file into a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			var records []mapping.MappingRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse seed file: %w", err)
			}

			var opts []mapping.HTTPStoreOption
			if token != "" {
				opts = append(opts, mapping.WithToken(token))
			}
			store := mapping.NewHTTPStore(url, opts...)

			report, err := store.InsertMany(context.Background(), records)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			fmt.Printf("Inserted %d of %d record(s).\n", report.InsertedCount, len(records))
			for _, r := range report.Rejected {
				fmt.Printf("  rejected: %s\n", r)
			}
			return nil
		},
	}
	cmd.Flags().String("file", "configs/seed_mappings.json", "Path to seed JSON file")
	cmd.Flags().String("url", "http://localhost:8000", "Base URL of the running server")
	cmd.Flags().String("token", "", "Bearer token for admin endpoints")
	return cmd
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all mapping records from a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			token, _ := cmd.Flags().GetString("token")
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("clear deletes every mapping record; re-run with --yes to confirm")
			}

			var opts []mapping.HTTPStoreOption
			if token != "" {
				opts = append(opts, mapping.WithToken(token))
			}
			store := mapping.NewHTTPStore(url, opts...)

			n, err := store.Clear(context.Background())
			if err != nil {
				return fmt.Errorf("clear failed: %w", err)
			}
			fmt.Printf("Deleted %d record(s).\n", n)
			return nil
		},
	}
	cmd.Flags().String("url", "http://localhost:8000", "Base URL of the running server")
	cmd.Flags().String("token", "", "Bearer token for admin endpoints")
	cmd.Flags().Bool("yes", false, "Confirm deletion")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Store tiers, in priority order. The database is primary when
	// configured; an unreachable database at startup is not fatal because
	// the coordinator serves from the remaining tiers.
	var tiers []mapping.Tier
	var pool *pgxpool.Pool

	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Warn().Err(err).Msg("database unavailable, starting without the postgres tier")
		} else {
			defer pool.Close()
			logger.Info().Msg("connected to database")
			tiers = append(tiers, mapping.Tier{Name: "postgres", Store: mapping.NewPGStore(pool)})
		}
	}
	if cfg.UpstreamURL != "" {
		var opts []mapping.HTTPStoreOption
		if cfg.UpstreamToken != "" {
			opts = append(opts, mapping.WithToken(cfg.UpstreamToken))
		}
		tiers = append(tiers, mapping.Tier{Name: "upstream", Store: mapping.NewHTTPStore(cfg.UpstreamURL, opts...)})
	}
	if cfg.SnapshotFile != "" {
		tiers = append(tiers, mapping.Tier{Name: "file", Store: mapping.NewFileStore(cfg.SnapshotFile)})
	}
	tiers = append(tiers, mapping.Tier{Name: "memory", Store: mapping.NewMemStore(nil)})

	fallback := mapping.NewFallback(logger, cfg.StoreTimeout(), tiers...)
	logger.Info().Str("activeStore", fallback.ActiveTier()).Int("tiers", len(tiers)).Msg("store tiers initialised")

	// Audit sink: durable when the database is up, structured log otherwise.
	var sink audit.Sink
	if pool != nil {
		sink = audit.NewPGSink(pool)
	} else {
		sink = audit.NewLogSink(logger)
	}

	svc := mapping.NewService(fallback, sink, logger, cfg.MaxPageSize)
	handler := mapping.NewHandler(svc, fallback)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// Health check
	e.GET("/health", handler.Health)

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	handler.RegisterRoutes(apiV1)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
