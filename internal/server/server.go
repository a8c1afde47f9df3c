// Package server provides the thin HTTP query surface over the risk
// store: alert listing/acknowledgement, supplier lookup, and a severity
// summary, plus a websocket relay of newly fired alerts. The pipeline
// itself runs independently of this package; nothing here is on the
// extraction/scoring/alerting path.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/chainwatch/internal/store"
	"github.com/aristath/chainwatch/internal/streams"
)

// Config holds everything New needs to wire the query surface.
type Config struct {
	Log     zerolog.Logger
	Store   *store.Store
	Stream  *streams.Client
	Port    int
	DevMode bool
}

// Server is the HTTP query surface: a chi router plus the alert websocket relay.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger
	store  *store.Store
	relay  *AlertsRelay
}

// New builds the router and wraps it in an http.Server, ready for Run.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		store:  cfg.Store,
		relay:  NewAlertsRelay(cfg.Stream, cfg.Store, cfg.Log),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the websocket route holds connections open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Run starts the alert relay and blocks serving HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.relay.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/alerts", func(r chi.Router) {
		r.Get("/", s.handleListAlerts)
		r.Get("/{id}", s.handleGetAlert)
		r.Post("/{id}/ack", s.handleAckAlert)
	})

	s.router.Route("/suppliers", func(r chi.Router) {
		r.Get("/", s.handleListSuppliers)
		r.Get("/{id}", s.handleGetSupplier)
	})

	s.router.Get("/summary", s.handleSummary)
	s.router.Get("/ws/alerts", s.relay.ServeHTTP)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
