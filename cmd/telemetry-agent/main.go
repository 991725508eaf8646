package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/anonymize"
	"github.com/mrumy-dev/stylesync-telemetry/internal/client"
	"github.com/mrumy-dev/stylesync-telemetry/internal/config"
	"github.com/mrumy-dev/stylesync-telemetry/internal/database"
	"github.com/mrumy-dev/stylesync-telemetry/internal/device"
	"github.com/mrumy-dev/stylesync-telemetry/internal/diskstore"
	"github.com/mrumy-dev/stylesync-telemetry/internal/logger"
	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
	"github.com/mrumy-dev/stylesync-telemetry/internal/queue"
	"github.com/mrumy-dev/stylesync-telemetry/internal/retry"
	"github.com/mrumy-dev/stylesync-telemetry/internal/server"
	"github.com/mrumy-dev/stylesync-telemetry/internal/service"
	"github.com/mrumy-dev/stylesync-telemetry/internal/session"
	"github.com/mrumy-dev/stylesync-telemetry/internal/store"

	"go.uber.org/zap"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/local.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting telemetry agent",
		zap.String("env", cfg.Env),
		zap.String("config_path", *configPath),
	)

	// Initialize journal database
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.JournalPath), 0o755); err != nil {
		log.Fatal("Failed to create storage directory", zap.Error(err))
	}
	db, err := database.New(cfg.Storage.JournalPath, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Get or generate device ID
	deviceManager := device.NewManager()
	deviceID, err := deviceManager.GetOrGenerateDeviceID(cfg.Device.ID)
	if err != nil {
		log.Fatal("Failed to get device ID", zap.Error(err))
	}
	log.Info("Using device ID", zap.String("device_id", deviceID))

	// Initialize submission client
	submissionClient := client.NewSubmissionClient(
		cfg.Backend.BaseURL,
		cfg.Backend.APIKey,
		time.Duration(cfg.Backend.Timeout)*time.Second,
		log.Logger,
	)

	if err := submissionClient.HealthCheck(context.Background()); err != nil {
		log.Warn("Backend unreachable at startup, records will queue locally", zap.Error(err))
	}

	// Per-kind stores and persistence
	analyticsStore := store.NewEventStore(models.KindAnalytics, cfg.Telemetry.AnalyticsCapacity, log.Logger)
	feedbackStore := store.NewEventStore(models.KindFeedback, cfg.Telemetry.ReportCapacity, log.Logger)
	crashStore := store.NewEventStore(models.KindCrash, cfg.Telemetry.ReportCapacity, log.Logger)

	journal := queue.NewJournal(db.DB, log.Logger)

	feedbackSpool, err := diskstore.NewStore(
		filepath.Join(cfg.Storage.SpoolDir, "feedback"),
		models.KindFeedback,
		cfg.Telemetry.FeedbackRetained,
		log.Logger,
	)
	if err != nil {
		log.Fatal("Failed to initialize feedback spool", zap.Error(err))
	}

	crashSpool, err := diskstore.NewStore(
		filepath.Join(cfg.Storage.SpoolDir, "crashes"),
		models.KindCrash,
		cfg.Telemetry.CrashRetained,
		log.Logger,
	)
	if err != nil {
		log.Fatal("Failed to initialize crash spool", zap.Error(err))
	}

	// Retry coordinators per kind
	analyticsCoord := retry.NewCoordinator(
		models.KindAnalytics, analyticsStore, journal, nil,
		submissionClient, cfg.Telemetry.BatchSize, log.Logger,
	)
	feedbackCoord := retry.NewCoordinator(
		models.KindFeedback, feedbackStore, nil, feedbackSpool,
		submissionClient, cfg.Telemetry.BatchSize, log.Logger,
	)
	crashCoord := retry.NewCoordinator(
		models.KindCrash, crashStore, nil, crashSpool,
		submissionClient, cfg.Telemetry.BatchSize, log.Logger,
	)

	// Session tracker and telemetry service
	sessionTracker := session.NewTracker(
		time.Duration(cfg.Telemetry.SessionGap)*time.Second,
		log.Logger,
	)

	telemetry := service.NewTelemetry(
		service.AppInfo{
			Version:     cfg.App.Version,
			BuildNumber: cfg.App.BuildNumber,
			Platform:    cfg.App.Platform,
		},
		service.Pipelines{
			AnalyticsStore: analyticsStore,
			FeedbackStore:  feedbackStore,
			CrashStore:     crashStore,
			Journal:        journal,
			FeedbackSpool:  feedbackSpool,
			CrashSpool:     crashSpool,
			Analytics:      analyticsCoord,
			Feedback:       feedbackCoord,
			Crash:          crashCoord,
		},
		sessionTracker,
		deviceManager,
		anonymize.NewAnonymizer(),
		cfg.Telemetry.ActionTrailSize,
		log.Logger,
	)

	if err := telemetry.Start(time.Duration(cfg.Telemetry.FlushInterval) * time.Second); err != nil {
		log.Fatal("Failed to start telemetry service", zap.Error(err))
	}

	// Local ingest server for the app process
	var ingestHTTPServer *http.Server
	if cfg.Server.Enabled {
		ingestServer := server.NewIngestServer(telemetry, log.Logger)
		addr := fmt.Sprintf("localhost:%d", cfg.Server.Port)
		ingestHTTPServer = &http.Server{
			Addr:         addr,
			Handler:      ingestServer,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("Starting ingest server", zap.String("address", addr))
			if err := ingestHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Ingest server error", zap.Error(err))
			}
		}()
	} else {
		log.Info("Ingest server disabled in configuration")
	}

	log.Info("Telemetry agent started successfully",
		zap.String("device_id", deviceID),
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.String("session_id", sessionTracker.SessionID()),
	)

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	log.Info("Shutting down telemetry agent...")

	// Stop ingest server first so no new records arrive mid-shutdown
	if ingestHTTPServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := ingestHTTPServer.Shutdown(ctx); err != nil {
			log.Warn("Ingest server shutdown error", zap.Error(err))
		} else {
			log.Info("Ingest server stopped")
		}
	}

	// Stop the telemetry service (runs a final flush) with a timeout
	done := make(chan struct{})
	go func() {
		telemetry.Stop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Telemetry service stopped successfully")
	case <-time.After(5 * time.Second):
		log.Warn("Shutdown timeout reached, forcing exit")
		os.Exit(1)
	}

	// Drop ancient journal rows that exhausted their retries
	if err := journal.CleanupOld(7 * 24 * time.Hour); err != nil {
		log.Error("Failed to cleanup old journal records", zap.Error(err))
	}

	log.Info("Telemetry agent stopped")
}
