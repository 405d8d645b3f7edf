package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"deplostatus/internal/ghauth"
	"deplostatus/internal/history"
	"deplostatus/internal/preview"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts. Deliveries are processed inside the request, so
	// the write timeout must outlast RequestTimeout.
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = RequestTimeout + 5*time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// RequestTimeout bounds a single delivery
	RequestTimeout = 60 * time.Second

	// readTimeout bounds the read-only endpoints
	readTimeout = 10 * time.Second

	ShutdownTimeout = 30 * time.Second
)

// Options configures the webhook server
type Options struct {
	WebhookSecret string
	BotLogin      string
	WorkflowFile  string
	IssueGreeting string
	// RatePerMinute is the per-IP request budget; 0 disables limiting
	RatePerMinute int
	TestMode      bool
	// RequestTimeout bounds webhook processing; zero means RequestTimeout
	RequestTimeout time.Duration
}

// Server receives GitHub webhooks and maintains deployment status comments
type Server struct {
	Options   Options
	Provider  ghauth.Provider
	Processor *preview.Processor
	Greeter   preview.Greeter
	History   *history.History // nil disables the audit log
	Metrics   *Metrics
	Logger    *slog.Logger
}

// NewServer creates a new server instance. hist may be nil.
func NewServer(opts Options, provider ghauth.Provider, hist *history.History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	processor := preview.NewProcessor(preview.Options{
		BotLogin:     opts.BotLogin,
		WorkflowFile: opts.WorkflowFile,
	}, logger)

	return &Server{
		Options:   opts,
		Provider:  provider,
		Processor: processor,
		Greeter:   preview.Greeter{Message: opts.IssueGreeting},
		History:   hist,
		Metrics:   NewMetrics(),
		Logger:    logger,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	if !s.Options.TestMode && s.Options.RatePerMinute > 0 {
		r.Use(NewRateLimitMiddleware(s.Options.RatePerMinute, s.Logger))
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(readTimeout))
		r.Get("/health", s.HandleHealth)
		r.Get("/status/{owner}/{repo}/{number}", s.HandleStatus)
		r.Get("/status/{owner}/{repo}/{number}/latest", s.HandleLatestStatus)
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	})

	// The webhook handler writes its own 504 on deadline
	r.With(withDeadline(s.requestTimeout())).Post("/webhook", s.HandleWebhook)

	return r
}

func (s *Server) requestTimeout() time.Duration {
	if s.Options.RequestTimeout > 0 {
		return s.Options.RequestTimeout
	}
	return RequestTimeout
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	s.Logger.Info("Starting server", "addr", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
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

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
