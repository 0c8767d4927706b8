package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/nuken/m3u-epg-checker/internal/config"
	"github.com/nuken/m3u-epg-checker/internal/database"
	internalhttp "github.com/nuken/m3u-epg-checker/internal/http"
	"github.com/nuken/m3u-epg-checker/internal/http/handlers"
	"github.com/nuken/m3u-epg-checker/internal/metrics"
	"github.com/nuken/m3u-epg-checker/internal/observability"
	"github.com/nuken/m3u-epg-checker/internal/scheduler"
	"github.com/nuken/m3u-epg-checker/internal/storage"
	"github.com/nuken/m3u-epg-checker/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	Long: `Start the m3u-epg-checker HTTP server.

The server provides:
- POST /api/v1/analyze   run an analysis
- GET  /api/v1/fixes/{id} download a fixed playlist
- GET  /healthz, /readyz, /api/v1/health
- GET  /metrics          Prometheus metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("storage", config.BackendMemory, "Fixed playlist storage backend (memory, file, database)")
	serveCmd.Flags().String("data-dir", "./data", "Directory for the file storage backend")
	serveCmd.Flags().String("database-dsn", "m3u-epg-checker.db", "Database DSN for the database storage backend")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("storage.backend", serveCmd.Flags().Lookup("storage"))
	mustBindPFlag("storage.base_dir", serveCmd.Flags().Lookup("data-dir"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database-dsn"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	var db *database.DB
	if cfg.Storage.Backend == config.BackendDatabase {
		db, err = database.New(cfg.Database, observability.WithComponent(logger, "database"), nil)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	var gdb *gorm.DB
	if db != nil {
		gdb = db.DB
	}
	store, err := storage.New(cfg.Storage, gdb, observability.WithComponent(logger, "storage"))
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	m := metrics.New()
	a := newAnalyzer(cfg, store, logger).WithMetrics(m)

	if retention := cfg.Storage.Retention.Duration(); retention > 0 {
		janitor, err := scheduler.NewJanitor(store, retention, cfg.Storage.PurgeSchedule)
		if err != nil {
			return fmt.Errorf("initializing janitor: %w", err)
		}
		janitor = janitor.
			WithLogger(observability.WithComponent(logger, "janitor")).
			OnPurge(m.RecordPurged)
		if err := janitor.Start(ctx); err != nil {
			return fmt.Errorf("starting janitor: %w", err)
		}
		defer janitor.Stop()
	}

	health := handlers.NewHealthHandler(version.Version, cfg.Storage.Backend)
	if db != nil {
		health = health.WithDB(db)
	}

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)
	server.Register(
		handlers.NewAnalyzeHandler(a, cfg.Analysis.MaxInputSize.Bytes()),
		handlers.NewFixHandler(store),
		health,
	)
	server.MountMetrics(m.Handler())

	logger.Info("starting server",
		slog.String("address", cfg.Server.Address()),
		slog.String("storage", cfg.Storage.Backend),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// withSignals cancels the returned context on SIGINT or SIGTERM.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
