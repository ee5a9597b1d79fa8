package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/habitkeeper/core/internal/adapters/repository"
	"github.com/habitkeeper/core/internal/application/services"
	"github.com/habitkeeper/core/internal/domain/entities"
	"github.com/habitkeeper/core/internal/infrastructure/config"
	"github.com/habitkeeper/core/internal/infrastructure/logger"
	"github.com/habitkeeper/core/internal/infrastructure/metrics"
	"github.com/habitkeeper/core/internal/infrastructure/server"
	"github.com/habitkeeper/core/internal/ports"
)

// Build information, set with -ldflags
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
	GitCommit = "development"
)

// NewServeCommand creates the serve command
func NewServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HabitKeeper API server",
		Long:  "Start the HabitKeeper API server with all configured routes and middleware",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configFile)
		},
	}
}

// NewInitCommand creates the init command
func NewInitCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the habit document with example habits",
		Long:  "Create the habit document with example habits unless it already exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.service.EnsureInitialized(cmd.Context()); err != nil {
				return fmt.Errorf("failed to initialize habit document: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Habit document ready at %s\n", rt.cfg.Storage.DataFile)
			return nil
		},
	}
}

// NewStatsCommand creates the stats command
func NewStatsCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print habit statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			stats, err := rt.service.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load statistics: %w", err)
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(stats)
		},
	}
}

// NewBackupCommand creates the backup command
func NewBackupCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a timestamped backup of the habit document",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			name, err := rt.service.BackupDocument(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to create backup: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", name)
			return nil
		},
	}
}

// NewExportCommand creates the export command
func NewExportCommand(configFile *string) *cobra.Command {
	var (
		output string
		format string
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the habit document",
		Long:  "Export the habit document as JSON or YAML to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			export, err := rt.service.ExportDocument(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to export data: %w", err)
			}

			data, err := encodeExport(export.Document, format)
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d habits to %s\n", len(export.Document.Habits), output)
			return nil
		},
	}

	exportCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringVarP(&format, "format", "f", formatJSON, "Output format (json, yaml)")

	return exportCmd
}

// NewImportCommand creates the import command
func NewImportCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all habits with the contents of a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(*configFile)
			if err != nil {
				return err
			}
			defer rt.close()

			total, err := importFile(cmd.Context(), rt.service, args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d habits\n", total)
			return nil
		},
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print HabitKeeper version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "HabitKeeper v%s\n", Version)
			fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
			fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
		},
	}
}

// app bundles what every command needs
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry
	store    ports.DocumentStore
	service  *services.HabitService
}

func (rt *app) close() {
	_ = rt.logger.Close()
}

func bootstrap(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	store := newStore(cfg, registry, appLogger)

	return &app{
		cfg:      cfg,
		logger:   appLogger,
		registry: registry,
		store:    store,
		service:  services.NewHabitService(store, appLogger),
	}, nil
}

// newStore builds the configured document store, instrumented when metrics are on
func newStore(cfg *config.Config, registry prometheus.Registerer, appLogger *logger.Logger) ports.DocumentStore {
	var store ports.DocumentStore

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store = repository.NewMemoryDocumentRepository(nil)
	default:
		store = repository.NewFileDocumentRepository(
			cfg.Storage.DataFile,
			appLogger,
			repository.WithBackupDir(cfg.Storage.GetBackupDir()),
			repository.WithQuarantine(cfg.Storage.QuarantineCorrupt),
		)
	}

	if !cfg.Metrics.Enabled {
		return store
	}
	return metrics.InstrumentStore(store, metrics.NewStoreMetrics(registry))
}

func runServer(parent context.Context, configFile string) error {
	rt, err := bootstrap(configFile)
	if err != nil {
		return err
	}
	defer rt.close()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(rt.cfg, rt.store, rt.registry, rt.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	if err := srv.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize habit document: %w", err)
	}

	rt.logger.Infow("Starting HabitKeeper API server",
		"address", rt.cfg.Server.GetAddr(),
		"environment", rt.cfg.App.Environment,
		"storage", rt.cfg.Storage.Driver,
		"data_file", rt.cfg.Storage.DataFile,
	)

	var metricsServer *http.Server
	if rt.cfg.Metrics.SeparateListener(rt.cfg.Server.Port) {
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Metrics.Port),
			Handler:           srv.MetricsHandler(),
			ReadHeaderTimeout: rt.cfg.Server.ReadTimeout,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(rt.cfg.Server.GetAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		g.Go(func() error {
			rt.logger.Infow("Starting metrics server", "address", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownGrace)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		rt.logger.Errorw("Server stopped with error", "error", err)
		return err
	}

	rt.logger.Infow("Server stopped")
	return nil
}

func importFile(ctx context.Context, service ports.HabitService, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	payload, err := io.ReadAll(f)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	total, err := service.ImportDocument(ctx, payload)
	if err != nil {
		if errors.Is(err, entities.ErrValidation) {
			return 0, fmt.Errorf(`invalid data in %s: must contain a "habits" array`, path)
		}
		return 0, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return total, nil
}
