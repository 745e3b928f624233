package main

import (
	"context"
	"fmt"
	"io"
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

	"github.com/randevu/randevu/internal/config"
	"github.com/randevu/randevu/internal/domain/booking"
	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/internal/domain/scheduling"
	"github.com/randevu/randevu/internal/platform/db"
	"github.com/randevu/randevu/internal/platform/metrics"
	"github.com/randevu/randevu/internal/platform/middleware"
	"github.com/randevu/randevu/internal/platform/openapi"
	"github.com/randevu/randevu/internal/platform/reporting"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "randevu-server",
		Short:        "Appointment booking API server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// connect loads the configuration and opens a pool scoped to its schema.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
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
			target, _ := cmd.Flags().GetInt("to")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if _, err := db.EnsureSchema(ctx, pool, cfg.DBSchema, ""); err != nil {
				return err
			}

			migrator := db.NewMigrator(pool, os.DirFS(migrationsDir(cmd, cfg)))
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", cfg.DBSchema)

			count, err := migrator.UpTo(ctx, cfg.DBSchema, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Highest version to apply (0 applies all)")
	addDirFlag(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, os.DirFS(migrationsDir(cmd, cfg)))
			statuses, err := migrator.Status(ctx, cfg.DBSchema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			printStatus(cmd.OutOrStdout(), cfg.DBSchema, statuses)
			return nil
		},
	}
	addDirFlag(statusCmd)
	cmd.AddCommand(statusCmd)

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, os.DirFS(migrationsDir(cmd, cfg)))
			mig, err := migrator.Down(ctx, cfg.DBSchema)
			if err != nil {
				return err
			}
			if mig == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No applied migrations to roll back.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %03d (%s).\n", mig.Version, mig.Name)
			return nil
		},
	}
	addDirFlag(downCmd)
	cmd.AddCommand(downCmd)

	return cmd
}

func addDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default doctor catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := newIdentityService(pool, nil).SeedDoctors(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d doctor(s).\n", n)
			return nil
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newIdentityService(pool *pgxpool.Pool, m *metrics.Collector) *identity.Service {
	return identity.NewService(
		identity.NewPatientRepo(pool),
		identity.NewDoctorRepo(pool),
		db.NewTxRunner(pool),
		m,
	)
}

func runServer() error {
	// Logger
	logger := newLogger(nil)

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(cfg)

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("schema", cfg.DBSchema).Msg("connected to database")

	if cfg.AutoMigrate {
		applied, err := db.EnsureSchema(ctx, pool, cfg.DBSchema, cfg.MigrationsDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		logger.Info().Int("applied", applied).Msg("migrations up to date")
	}

	var m *metrics.Collector
	if cfg.MetricsEnabled {
		m = metrics.NewCollector(cfg.MetricsNamespace)
		m.ObservePool(cfg.MetricsNamespace, pool)
	}

	if cfg.SeedOnStart {
		n, err := newIdentityService(pool, m).SeedDoctors(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to seed doctors")
		}
		if n > 0 {
			logger.Info().Int("doctors", n).Msg("seeded doctor catalogue")
		}
	}

	e := buildServer(cfg, logger, pool, m)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// buildServer wires middleware, domain services and routes. m may be nil
// when metrics are disabled.
func buildServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, m *metrics.Collector) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID", booking.CSRFHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.Metrics(m))

	// Audit middleware
	e.Use(middleware.Audit(logger, middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		m.RecordAccess(entry.Resource, entry.Action)
		return nil
	})))

	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	if cfg.CSRFEnabled {
		apiV1.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
			TokenLookup:    "header:" + booking.CSRFHeader + ",form:_csrf",
			ContextKey:     booking.CSRFContextKey,
			CookieName:     "_csrf",
			CookiePath:     "/",
			CookieHTTPOnly: true,
			CookieSecure:   cfg.CSRFCookieSecure,
			CookieSameSite: http.SameSiteStrictMode,
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, cfg.DBSchema))

	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	// Domain services
	tx := db.NewTxRunner(pool)
	patients := identity.NewPatientRepo(pool)
	appts := scheduling.NewAppointmentRepo(pool)

	identitySvc := identity.NewService(patients, identity.NewDoctorRepo(pool), tx, m)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)

	schedulingSvc := scheduling.NewService(appts, identitySvc, m)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1)

	bookingSvc := booking.NewService(identitySvc, schedulingSvc, patients, appts, tx, m)
	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1.Group("/booking"))

	reporting.NewHandler(reporting.NewPGStore(pool)).RegisterRoutes(apiV1)

	openapi.NewGenerator(e, "/api/v1", version, "").RegisterRoutes(apiV1)

	return e
}
