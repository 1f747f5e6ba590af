package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/text/language"

	"github.com/MikeSquared-Agency/reel/internal/api"
	"github.com/MikeSquared-Agency/reel/internal/blob"
	"github.com/MikeSquared-Agency/reel/internal/capture"
	"github.com/MikeSquared-Agency/reel/internal/catalog"
	"github.com/MikeSquared-Agency/reel/internal/config"
	"github.com/MikeSquared-Agency/reel/internal/events"
	"github.com/MikeSquared-Agency/reel/internal/pipeline"
	"github.com/MikeSquared-Agency/reel/internal/query"
	"github.com/MikeSquared-Agency/reel/internal/recorder"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("reel starting", "port", cfg.Port, "cadence", cfg.Cadence)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog — Postgres when configured, in-memory otherwise.
	var cat catalog.Catalog
	if cfg.DatabaseURL != "" {
		pg, err := catalog.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		cat = pg
		slog.Info("catalog ready", "backend", "postgres")
	} else {
		cat = catalog.NewMemory(cfg.CatalogLimit)
		slog.Warn("DATABASE_URL not set — catalog is in-memory and will not survive restarts")
	}

	// Artifact content store — MinIO when configured, in-memory otherwise.
	var blobs blob.Store
	if cfg.MinioEndpoint != "" {
		m, err := blob.NewMinIO(ctx, blob.MinIOConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSecure,
		})
		if err != nil {
			slog.Error("failed to connect to minio", "error", err)
			os.Exit(1)
		}
		blobs = m
		slog.Info("artifact store ready", "backend", "minio", "bucket", cfg.MinioBucket)
	} else {
		blobs = blob.NewMemory()
		slog.Warn("MINIO_ENDPOINT not set — artifact content is in-memory")
	}

	// Event bus (optional — reel works without NATS, just no lifecycle events)
	var bus pipeline.Bus
	if cfg.NatsURL != "" {
		pub, err := events.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		bus = pub
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without lifecycle events")
	}

	device := capture.NewFFmpegDevice(cfg.CaptureFormat, cfg.CaptureInput)
	sched := recorder.NewIntervalScheduler(cfg.Cadence)
	engine := query.New(language.English)

	pipe := pipeline.New(device, sched, blobs, cat, engine, bus, slog.Default())

	srv := api.NewServer(cfg.Port, pipe)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("reel ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("reel stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
