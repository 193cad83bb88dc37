package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/alfredjeanlab/lngraph/internal/config"
	"github.com/alfredjeanlab/lngraph/internal/events"
	"github.com/alfredjeanlab/lngraph/internal/ingest"
	"github.com/alfredjeanlab/lngraph/internal/metrics"
	"github.com/alfredjeanlab/lngraph/internal/server"
	"github.com/alfredjeanlab/lngraph/internal/source"
	"github.com/alfredjeanlab/lngraph/internal/store"
	"github.com/alfredjeanlab/lngraph/internal/store/memory"
	"github.com/alfredjeanlab/lngraph/internal/store/postgres"
)

// memoryStoreURL selects the in-process store instead of Postgres.
const memoryStoreURL = "memory://"

// openStore returns the store named by databaseURL, or nil when it is empty.
func openStore(databaseURL string) (store.Store, error) {
	switch databaseURL {
	case "":
		return nil, nil
	case memoryStoreURL:
		return memory.New(), nil
	}
	return postgres.New(databaseURL)
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the lngraph HTTP and gRPC servers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		allowFiles, _ := cmd.Flags().GetBool("allow-file-sources")
		allowRemote, _ := cmd.Flags().GetBool("allow-remote-sources")

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := openStore(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if st == nil {
			logger.Info("snapshots disabled (LNGRAPH_DATABASE_URL not set)")
		}
		closeStore := func() {
			if st == nil {
				return
			}
			if err := st.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}

		// Create event publisher.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				closeStore()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (LNGRAPH_NATS_URL not set)")
		}

		reg := metrics.New()
		sourceOpts := source.Options{
			S3: source.S3Options{Region: cfg.S3Region, Endpoint: cfg.S3Endpoint},
		}
		srv := server.New(st, publisher, server.Options{
			MaxBodyBytes:       cfg.MaxBodyBytes,
			Sources:            sourceOpts,
			AllowFileSources:   allowFiles,
			AllowRemoteSources: allowRemote,
			Metrics:            reg,
			Logger:             logger,
		})
		grpcServer, healthServer := server.NewGRPCServer(srv, cfg.AuthToken)

		// Start gRPC listener.
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			closeStore()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start background imports when a source is configured.
		var scheduler *ingest.Scheduler
		var watcher *ingest.FileWatcher
		if cfg.ImportInterval > 0 || cfg.ImportWatch {
			if st == nil {
				logger.Warn("background import disabled: no snapshot store configured")
			} else {
				scheduler, watcher = startImports(cfg, st, srv, sourceOpts, reg, logger)
			}
		}

		logger.Info("lngraph server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("import scheduler stopped")
		}
		if watcher != nil {
			watcher.Stop()
			logger.Info("import watcher stopped")
		}

		stopGRPC(grpcServer, healthServer)
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		closeStore()

		logger.Info("shutdown complete")
		return nil
	},
}

// stopGRPC reports NOT_SERVING to health clients, then waits for in-flight
// calls to finish.
func stopGRPC(gs *grpc.Server, hs *health.Server) {
	hs.Shutdown()
	gs.GracefulStop()
}

// startImports runs the import scheduler and the file watcher that cfg asks
// for. Either return value may be nil.
func startImports(cfg *config.Config, st store.Store, srv *server.Server, opts source.Options, reg *metrics.Metrics, logger *slog.Logger) (*ingest.Scheduler, *ingest.FileWatcher) {
	src, err := source.Open(context.Background(), cfg.ImportSource, opts)
	if err != nil {
		logger.Error("failed to open import source", "source", cfg.ImportSource, "err", err)
		return nil, nil
	}
	importer := ingest.NewImporter(src, st, srv.Publisher(), logger)
	importer.SetMetrics(reg)

	var scheduler *ingest.Scheduler
	if cfg.ImportInterval > 0 {
		scheduler = ingest.NewScheduler(importer, cfg.ImportInterval, logger)
		scheduler.Start()
		logger.Info("import scheduler started", "source", src.String(), "interval", cfg.ImportInterval)
	}

	var watcher *ingest.FileWatcher
	if cfg.ImportWatch {
		fs, ok := src.(*source.FileSource)
		if !ok || fs.Path == "-" {
			logger.Warn("import watch needs a file source", "source", src.String())
			return scheduler, nil
		}
		w, err := ingest.NewFileWatcher(importer, fs.Path, 0, logger)
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			logger.Error("failed to start import watcher", "path", fs.Path, "err", err)
			return scheduler, nil
		}
		watcher = w
		logger.Info("import watcher started", "path", fs.Path)
	}
	return scheduler, watcher
}

func init() {
	serveCmd.Flags().Bool("allow-file-sources", false, "let POST /v1/snapshots?source= read server-local files")
	serveCmd.Flags().Bool("allow-remote-sources", false, "let POST /v1/snapshots?source= fetch http(s) and s3 URIs")
}
