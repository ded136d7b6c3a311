package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/opennoisenet/noisenet/internal/blob"
	"github.com/opennoisenet/noisenet/internal/config"
	"github.com/opennoisenet/noisenet/internal/events"
	"github.com/opennoisenet/noisenet/internal/metrics"
	"github.com/opennoisenet/noisenet/internal/snippet"
	"github.com/opennoisenet/noisenet/internal/store/postgres"
)

// sweepCmd runs one retention sweep and exits. Useful as a cron job when
// the long-running sweeper is disabled.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired audio snippets and exit",
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
		defer store.Close()

		var blobs blob.Storage
		if cfg.S3Bucket != "" {
			s3, err := blob.NewS3Storage(cmd.Context(), cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
			if err != nil {
				return err
			}
			blobs = s3
		} else {
			blobs = blob.NewMemoryStorage()
		}

		var publisher events.Publisher = &events.NoopPublisher{}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = pub
		}
		defer publisher.Close()

		m := metrics.New(prometheus.NewRegistry())
		manager := snippet.New(store, blobs, publisher, m,
			cfg.MaxSnippetBytes(), cfg.SnippetRetention, cfg.Codecs)

		swept, err := manager.SweepExpired(cmd.Context(), time.Now().UTC())
		if err != nil {
			return err
		}
		logger.Info("sweep complete", "swept", swept)
		return nil
	},
}
