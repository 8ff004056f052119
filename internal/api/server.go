package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/whisper-stt/internal/config"
	"github.com/snarg/whisper-stt/internal/engine"
	"github.com/snarg/whisper-stt/internal/metrics"
)

type Server struct {
	http           *http.Server
	transcriptions *TranscriptionHandler
	log            zerolog.Logger
}

// NewServer wires the routes around an already loaded engine.
func NewServer(cfg *config.Config, eng engine.Engine, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOrigins))

	// Unauthenticated
	r.Get("/health", NewHealthHandler(eng.Model()).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	transcriptions := NewTranscriptionHandler(eng, cfg.TempDir, log)

	// OpenAI-compatible surface
	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		r.Get("/models", ModelsHandler(eng.Model()))
		transcriptions.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           r,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
		transcriptions: transcriptions,
		log:            log,
	}
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Stats exposes live request counters for the metrics collector.
func (s *Server) Stats() metrics.ServiceStats { return s.transcriptions }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
