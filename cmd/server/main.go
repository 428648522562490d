package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grumpy-generator/signal-intel/internal/api"
	"github.com/grumpy-generator/signal-intel/internal/classifier"
	"github.com/grumpy-generator/signal-intel/internal/config"
	"github.com/grumpy-generator/signal-intel/internal/ingest"
	"github.com/grumpy-generator/signal-intel/internal/notifications"
	"github.com/grumpy-generator/signal-intel/internal/relay"
	"github.com/grumpy-generator/signal-intel/internal/scheduler"
	"github.com/grumpy-generator/signal-intel/internal/storage"
	"github.com/grumpy-generator/signal-intel/internal/store"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting signal review service")

	// Signal store and classifier
	signalStore := store.New()

	var textClassifier classifier.Classifier
	if cfg.ClassifierMode == config.ClassifierAI {
		textClassifier = classifier.NewRemote(cfg.AnthropicAPIKey, cfg.ClassifierModel, cfg.ClassifierTimeout)
		logrus.Infof("Using AI classifier (%s)", cfg.ClassifierModel)
	} else {
		textClassifier = classifier.NewKeyword()
		logrus.Info("Using keyword classifier")
	}

	gateway := ingest.New(signalStore, textClassifier)

	// Digest archive
	var archive storage.ArchiveInterface
	if cfg.StorageAccount != "" {
		archive, err = storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize digest archive: %v", err)
		}
	} else {
		archive = storage.NewNoopArchive()
	}

	// Digest scheduler
	notificationService := notifications.NewService(cfg)
	schedulerService := scheduler.NewService(cfg, signalStore, notificationService, archive)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Message relays
	relayCtx, stopRelays := context.WithCancel(context.Background())
	defer stopRelays()

	relays := []relay.Relay{
		relay.NewTwitterRelay(cfg.TwitterBearerToken, cfg.TwitterKeywords, cfg.TwitterPollInterval, gateway),
	}
	if cfg.TelegramPolling {
		relays = append(relays, relay.NewTelegramRelay(cfg.TelegramBotToken, gateway))
	}
	for _, r := range relays {
		if !r.IsEnabled() {
			logrus.Debugf("Relay %s disabled - missing credentials", r.GetName())
			continue
		}
		logrus.Infof("Starting %s relay", r.GetName())
		go r.Run(relayCtx)
	}

	// HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewServer(cfg, signalStore, gateway).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	stopRelays()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
