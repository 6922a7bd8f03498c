// Package server exposes the matching engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/cloutcash-matcher/internal/interactions"
	"github.com/spigell/cloutcash-matcher/internal/matching"
)

const (
	defaultListen     = ":8080"
	shutdownTimeout   = 10 * time.Second
	maxRequestBytes   = 1 << 20
	rateLimitWindow   = time.Minute
	readHeaderTimeout = 5 * time.Second
)

// Config holds the listener and middleware settings.
type Config struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors-origins"`
	// RateLimit is the number of requests per minute allowed per client IP.
	// Zero disables limiting.
	RateLimit int `mapstructure:"rate-limit"`
}

// Matcher serves paginated match requests.
type Matcher interface {
	Match(ctx context.Context, req matching.Request) (*matching.Response, error)
}

// Recorder appends interactions to the log.
type Recorder interface {
	Record(ctx context.Context, item interactions.Interaction) (bool, error)
}

// Resetter clears a user's exclusion set.
type Resetter interface {
	Reset(ctx context.Context, userID string) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Matcher  Matcher
	Recorder Recorder
	Resetter Resetter
	Logger   *zap.Logger
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg     Config
	deps    Deps
	logger  *zap.Logger
	handler http.Handler
}

// New builds the router. All deps except Logger are required.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Matcher == nil || deps.Recorder == nil || deps.Resetter == nil {
		return nil, errors.New("matcher, recorder and resetter are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.RateLimit < 0 {
		return nil, errors.New("rate limit must not be negative")
	}

	s := &Server{cfg: cfg, deps: deps, logger: deps.Logger.Named("http")}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.accessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         86400,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, rateLimitWindow))
		}
		r.Post("/matches", s.handleMatch)
		r.Post("/interactions", s.handleInteraction)
		r.Delete("/exclusions/{userID}", s.handleResetExclusions)
	})

	return r
}

// Handler returns the root handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("listen", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("http_request_id", chimiddleware.GetReqID(r.Context())),
			zap.Duration("took", time.Since(started)),
		)
	})
}
