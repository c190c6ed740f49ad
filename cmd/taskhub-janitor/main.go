package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskhub/pkg/archive"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/store"
)

var runOnce = flag.Bool("run-once", false, "Run one archival pass and exit")

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ValidateArchive(); err != nil {
		logger.WithError(err).Fatal("Invalid archive configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	objects, err := archive.NewS3Store(ctx, cfg.Archive)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create S3 client")
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to prepare archive bucket")
	}

	archiver := archive.NewArchiver(db, objects, cfg.Archive.BatchSize, nil)

	if *runOnce {
		if err := runPass(ctx, logger, archiver, cfg.Archive); err != nil {
			logger.WithError(err).Fatal("Archival pass failed")
		}
		return
	}

	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(cfg.Archive.Schedule, func() {
		if err := runPass(ctx, logger, archiver, cfg.Archive); err != nil {
			logger.WithError(err).Error("Archival pass failed")
		}
	})
	if err != nil {
		logger.WithError(err).WithField("schedule", cfg.Archive.Schedule).Fatal("Failed to schedule archival")
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule":               cfg.Archive.Schedule,
		"bucket":                 cfg.Archive.S3Bucket,
		"activity_retention":     cfg.Archive.ActivityRetention.String(),
		"notification_retention": cfg.Archive.NotificationRetention.String(),
	}).Info("Janitor started")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")
	<-c.Stop().Done()
	logger.Info("Janitor stopped")
}

func runPass(ctx context.Context, logger *logrus.Logger, archiver *archive.Archiver, cfg config.ArchiveConfig) error {
	now := time.Now().UTC()

	result, err := archiver.ArchiveActivities(ctx, now.Add(-cfg.ActivityRetention))
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"batches":  result.Batches,
		"archived": result.Archived,
	}).Info("Activities archived")

	purged, err := archiver.PurgeNotifications(ctx, now.Add(-cfg.NotificationRetention))
	if err != nil {
		return err
	}
	logger.WithField("purged", purged).Info("Read notifications purged")
	return nil
}
