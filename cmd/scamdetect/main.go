package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/analysis"
	"scamdetect-server/pkg/callcontext"
	"scamdetect-server/pkg/config"
	http_server "scamdetect-server/pkg/http"
	"scamdetect-server/pkg/messaging"
	"scamdetect-server/pkg/metrics"
	"scamdetect-server/pkg/pipeline"
	"scamdetect-server/pkg/reasoning"
	"scamdetect-server/pkg/version"
)

var (
	logger    = logrus.New()
	appConfig *config.Config

	amqpClient   *messaging.AMQPClient
	orchestrator *pipeline.Orchestrator
	httpServer   *http_server.Server
	wsHub        *http_server.VerdictHub
	transcriber  analysis.Transcriber

	// Context for graceful shutdown
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

func main() {
	// Basic logger setup; level and format are reapplied once config loads.
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	rootCtx, rootCancel = context.WithCancel(context.Background())
	defer rootCancel()

	if err := initialize(); err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	httpServer.Start()
	logger.WithFields(logrus.Fields{
		"version": version.Version,
		"port":    appConfig.HTTP.Port,
	}).Info("Scam detection server started")

	// Graceful shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	rootCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down HTTP server")
		} else {
			logger.Info("HTTP server shut down successfully")
		}
	}

	if amqpClient != nil {
		amqpClient.Disconnect()
	}

	if closer, ok := transcriber.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.WithError(err).Warn("Error closing transcription client")
		}
	}

	logger.Info("Shutdown complete")
}

func initialize() error {
	var err error
	appConfig, err = config.Load(logger)
	if err != nil {
		return err
	}
	applyLoggingConfig()

	metrics.Init(logger)

	docs, err := callcontext.NewFileDocumentStore(appConfig.Store.Directory, logger)
	if err != nil {
		return err
	}
	store := callcontext.NewStore(docs, appConfig.Store.ChunkSeconds, logger)

	transcriber, err = buildTranscriber()
	if err != nil {
		return err
	}

	engine := reasoning.NewOllamaEngine(
		appConfig.Reasoning.BaseURL,
		appConfig.Reasoning.Model,
		appConfig.Reasoning.Timeout,
		logger,
	)

	orchestrator = pipeline.NewOrchestrator(
		transcriber,
		&analysis.MockVoiceDetector{},
		&analysis.MockNoiseDetector{},
		&analysis.MockDiarizer{Speakers: 2},
		&analysis.MockEmotionDetector{},
		engine,
		store,
		appConfig.Analysis.StageTimeout,
		logger,
	)

	wsHub = http_server.NewVerdictHub(logger)
	go wsHub.Run(rootCtx)
	orchestrator.AddPublisher(wsHub)

	amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:       appConfig.Messaging.AMQPUrl,
		QueueName: appConfig.Messaging.AMQPQueueName,
	})
	if amqpClient.Enabled() {
		if err := amqpClient.Connect(); err != nil {
			// Verdict publishing is best-effort; the monitor reconnects.
			logger.WithError(err).Warn("AMQP connection failed, continuing without broker")
		}
		orchestrator.AddPublisher(amqpClient)
	}

	handler := http_server.NewHandler(orchestrator, store, appConfig.HTTP.MaxUploadBytes, logger)
	httpServer = http_server.NewServer(logger, &appConfig.HTTP, handler, wsHub)
	httpServer.SetAMQPStatus(amqpClient.IsConnected)

	return nil
}

func buildTranscriber() (analysis.Transcriber, error) {
	switch appConfig.Analysis.Provider {
	case "google":
		t := analysis.NewGoogleTranscriber(logger, &appConfig.GoogleSTT)
		if err := t.Initialize(rootCtx); err != nil {
			return nil, err
		}
		return t, nil
	default:
		return analysis.NewMockTranscriber(logger), nil
	}
}

func applyLoggingConfig() {
	level, err := logrus.ParseLevel(appConfig.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("level", appConfig.Logging.Level).Warn("Unknown log level, defaulting to info")
	}
	logger.SetLevel(level)

	if appConfig.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}
}
