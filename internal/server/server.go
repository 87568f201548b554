// Package server exposes the provider webhook and the operational
// endpoints. The webhook always acknowledges with 200 so the provider
// never retries on processing failures; the real work happens on the
// worker pool after the acknowledgment.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"screening-engine/internal/common/config"
	"screening-engine/internal/common/logger"
	"screening-engine/internal/common/metrics"
	"screening-engine/internal/common/observability"
	"screening-engine/internal/orchestrator"
	"screening-engine/internal/worker"
)

const webhookAck = "Message reçu"

// Processor handles one inbound event after acknowledgment.
type Processor interface {
	Process(ctx context.Context, in orchestrator.Inbound) error
}

// Submitter enqueues background work without blocking the request.
type Submitter interface {
	TrySubmit(task worker.Task) bool
}

// Pinger is a dependency health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	httpServer    *http.Server
	processor     Processor
	pool          Submitter
	postgres      Pinger
	redis         Pinger
	observability *observability.Observability
	logger        logger.Logger

	processingTimeout time.Duration
}

type Config struct {
	Server        config.ServerConfig
	Processor     Processor
	Pool          Submitter
	Postgres      Pinger
	Redis         Pinger
	Observability *observability.Observability
	Logger        logger.Logger
}

func New(cfg Config) *Server {
	s := &Server{
		processor:     cfg.Processor,
		pool:          cfg.Pool,
		postgres:      cfg.Postgres,
		redis:         cfg.Redis,
		observability: cfg.Observability,
		logger:        cfg.Logger,

		processingTimeout: time.Duration(cfg.Server.ProcessingTimeout) * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/webhooks/whatsapp", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}
	return s
}

// Handler exposes the routing table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook parses the provider form payload, enqueues processing,
// and acknowledges. Malformed payloads are acknowledged too; there is
// nobody upstream who could fix them on retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.WithError(err).Warn("webhook form parse failed", nil)
		s.ack(w)
		return
	}

	in := orchestrator.Inbound{
		From:             r.PostFormValue("From"),
		Body:             r.PostFormValue("Body"),
		MediaURL:         r.PostFormValue("MediaUrl0"),
		MediaContentType: r.PostFormValue("MediaContentType0"),
		MessageSID:       r.PostFormValue("MessageSid"),
	}

	kind := "text"
	if in.MediaURL != "" {
		kind = "media"
	}
	metrics.InboundMessagesTotal.WithLabelValues(kind).Inc()

	if in.From == "" {
		s.logger.Warn("webhook payload missing sender", map[string]interface{}{
			"message_sid": in.MessageSID,
		})
		s.ack(w)
		return
	}

	accepted := s.pool.TrySubmit(func(ctx context.Context) {
		if s.processingTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.processingTimeout)
			defer cancel()
		}
		start := time.Now()
		err := s.processor.Process(ctx, in)
		elapsed := time.Since(start)

		metrics.ProcessingDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
		if s.observability != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			s.observability.RecordMessageProcessed(ctx, status)
			s.observability.RecordMessageDuration(ctx, elapsed, status)
		}
		if err != nil {
			s.logger.WithError(err).Error("inbound processing failed", map[string]interface{}{
				"message_sid": in.MessageSID,
			})
		}
	})
	if !accepted {
		s.logger.Warn("worker queue full, message dropped", map[string]interface{}{
			"message_sid": in.MessageSID,
		})
	}

	s.ack(w)
}

func (s *Server) ack(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(webhookAck))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.postgres.Ping(ctx); err != nil {
		s.logger.WithError(err).Error("health check failed on postgres", nil)
		http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := s.redis.Ping(ctx); err != nil {
		s.logger.WithError(err).Error("health check failed on redis", nil)
		http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
