package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/opennoisenet/noisenet/internal/blob"
	"github.com/opennoisenet/noisenet/internal/config"
	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/geo"
	"github.com/opennoisenet/noisenet/internal/ingest"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/ratelimit"
	"github.com/opennoisenet/noisenet/internal/registry"
	"github.com/opennoisenet/noisenet/internal/server"
	"github.com/opennoisenet/noisenet/internal/snippet"
	"github.com/opennoisenet/noisenet/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the noisenet HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (NOISENET_NATS_URL not set)")
		}

		var blobs blob.Storage
		if cfg.S3Bucket != "" {
			s3, err := blob.NewS3Storage(cmd.Context(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
			if err != nil {
				publisher.Close()
				store.Close()
				return err
			}
			blobs = s3
			logger.Info("snippet storage: S3", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
		} else {
			blobs = blob.NewMemoryStorage()
			logger.Warn("snippet storage: in-memory (NOISENET_S3_BUCKET not set); payloads are lost on restart")
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)

		limiter := ratelimit.New(cfg.EventsPerHour)
		validator := ingest.NewValidator(cfg.MaxPastSkew, cfg.MaxFutureSkew)

		registrySvc := registry.New(store, limiter, publisher)
		ingestSvc := ingest.New(store, limiter, validator, publisher, m, cfg.IngestTimeout)
		aggregator := geo.New(store, m)
		snippets := snippet.New(store, blobs, publisher, m,
			cfg.MaxSnippetBytes(), cfg.SnippetRetention, cfg.Codecs)

		var sweeper *snippet.Sweeper
		if cfg.SweepInterval > 0 {
			sweeper = snippet.NewSweeper(snippets, cfg.SweepInterval, logger)
			sweeper.Start()
			logger.Info("snippet sweeper started", "interval", cfg.SweepInterval)
		}

		srv := server.New(store, registrySvc, ingestSvc, aggregator, snippets, publisher, reg)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		logger.Info("noisenet server started",
			"http_addr", cfg.HTTPAddr,
			"events_per_hour", cfg.EventsPerHour,
			"snippet_retention", cfg.SnippetRetention,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if sweeper != nil {
			sweeper.Stop()
			logger.Info("snippet sweeper stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
