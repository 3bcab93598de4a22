package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"scamdetect-server/pkg/config"
	"scamdetect-server/pkg/metrics"
	"scamdetect-server/pkg/version"
)

// Server is the HTTP front of the analysis service: the chunk API, call
// summaries, health checks, metrics, and the verdict WebSocket.
type Server struct {
	config     *config.HTTPConfig
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	startTime  time.Time
	wsHub      *VerdictHub
	amqpStatus func() bool
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg *config.HTTPConfig, handler *Handler, wsHub *VerdictHub) *Server {
	server := &Server{
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
		wsHub:     wsHub,
	}

	mux := http.NewServeMux()
	server.mux = mux

	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux.HandleFunc("POST /analyze-audio", addServerHeader(handler.AnalyzeHandler))
	mux.HandleFunc("GET /call-summary/{call_id}", addServerHeader(handler.SummaryHandler))
	mux.HandleFunc("DELETE /call-data/{call_id}", addServerHeader(handler.ClearHandler))

	mux.HandleFunc("/health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("/health/live", addServerHeader(server.LivenessHandler))
	mux.HandleFunc("/health/ready", addServerHeader(server.ReadinessHandler))

	if cfg.MetricsEnabled {
		if registry := metrics.GetRegistry(); registry != nil {
			promHandler := promhttp.HandlerFor(
				registry,
				promhttp.HandlerOpts{
					EnableOpenMetrics: true,
					Registry:          registry,
				},
			)
			mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Server", version.ServerHeader())
				promHandler.ServeHTTP(w, r)
			})
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		}
	} else {
		logger.Info("Metrics endpoint disabled")
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws/verdicts", wsHub.ServeWs)
		logger.Info("Verdict WebSocket endpoint registered at /ws/verdicts")
	}

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// SetAMQPStatus registers a probe used by the readiness check
func (s *Server) SetAMQPStatus(probe func() bool) {
	s.amqpStatus = probe
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
