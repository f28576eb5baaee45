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

	"github.com/trialstats/trialstats/internal/config"
	"github.com/trialstats/trialstats/internal/domain/report"
	"github.com/trialstats/trialstats/internal/domain/study"
	"github.com/trialstats/trialstats/internal/platform/auth"
	"github.com/trialstats/trialstats/internal/platform/dataset"
	"github.com/trialstats/trialstats/internal/platform/db"
	"github.com/trialstats/trialstats/internal/platform/middleware"
	"github.com/trialstats/trialstats/internal/platform/sandbox"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trial-report",
		Short: "Clinical trial descriptive report generator",
	}

	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(loadCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// newRepository picks the snapshot source: Postgres when requested, the CSV
// data directory otherwise.
func newRepository(ctx context.Context, cfg *config.Config, source string) (study.Repository, func(), error) {
	switch source {
	case "csv", "":
		return dataset.NewLoader(cfg.DataDir), func() {}, nil
	case "pg":
		if err := cfg.RequireDatabase(); err != nil {
			return nil, nil, err
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return study.NewRepoPG(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want csv or pg)", source)
	}
}

func reportCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "report [measure-id]",
		Short: "Evaluate one measure, or the full report when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			repo, closeRepo, err := newRepository(ctx, cfg, source)
			if err != nil {
				return err
			}
			defer closeRepo()

			svc := report.NewService(repo, logger)

			var out interface{}
			if len(args) == 1 {
				out, err = svc.Evaluate(ctx, args[0])
			} else {
				out, err = svc.Full(ctx)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&source, "source", "csv", "Snapshot source: csv or pg")
	return cmd
}

func serveCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report measures over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), source)
		},
	}
	cmd.Flags().StringVar(&source, "source", "csv", "Snapshot source: csv or pg")
	return cmd
}

func runServer(ctx context.Context, source string) error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	repo, closeRepo, err := newRepository(ctx, cfg, source)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open snapshot source")
	}
	defer closeRepo()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() && cfg.AuthSecret == "" {
		logger.Warn().Msg("AUTH_SECRET not set; all requests get admin access (development only)")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware([]byte(cfg.AuthSecret)))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")
	svc := report.NewService(repo, logger)
	report.NewHandler(svc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown failed")
		}
	}()

	logger.Info().Str("port", cfg.Port).Msg("trial-report server listening")
	if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func seedCmd() *cobra.Command {
	seedCfg := sandbox.DefaultSeedConfig()
	var outDir string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a simulated trial dataset as CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := sandbox.GenerateSnapshot(seedCfg)
			if err := dataset.WriteCSV(outDir, snap); err != nil {
				return err
			}
			fmt.Printf("Wrote %d baseline, %d week-13, %d week-32 and %d adverse-event rows to %s\n",
				len(snap.Baseline), len(snap.Week13), len(snap.Week32), len(snap.AdverseEvents), outDir)
			return nil
		},
	}
	cmd.Flags().IntVar(&seedCfg.Participants, "participants", seedCfg.Participants, "Number of participants")
	cmd.Flags().Float64Var(&seedCfg.DropoutRate, "dropout-rate", seedCfg.DropoutRate, "Fraction of participants not completing")
	cmd.Flags().Int64Var(&seedCfg.Seed, "seed", seedCfg.Seed, "Random seed")
	cmd.Flags().StringVar(&outDir, "out", "./data", "Output directory")
	return cmd
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the CSV snapshot from DATA_DIR into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := cmd.Context()
			snap, err := dataset.NewLoader(cfg.DataDir).Snapshot(ctx)
			if err != nil {
				return err
			}

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			if err := study.InsertSnapshot(ctx, pool, snap); err != nil {
				return err
			}
			fmt.Printf("Loaded %d baseline, %d week-13, %d week-32 and %d adverse-event rows\n",
				len(snap.Baseline), len(snap.Week13), len(snap.Week32), len(snap.AdverseEvents))
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	newMigrator := func(ctx context.Context, cfg *config.Config) (*db.Migrator, *pgxpool.Pool, error) {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, nil, err
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		return db.NewMigrator(pool, cfg.MigrationsDir), pool, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			m, pool, err := newMigrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Applied %d migration(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			m, pool, err := newMigrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = fmt.Sprintf("applied at %s", s.AppliedAt.Format(time.RFC3339))
				}
				fmt.Printf("%03d %-30s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})

	return cmd
}
