// Package web serves the clinote JSON API over HTTP.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hpungsan/clinote/internal/config"
	"github.com/hpungsan/clinote/internal/logging"
	"github.com/hpungsan/clinote/internal/metrics"
	"github.com/hpungsan/clinote/internal/ops"
	"github.com/hpungsan/clinote/internal/workbench"
)

// Deps are the session objects the API operates on.
type Deps struct {
	Workbench *workbench.Workbench
	Config    *config.Config
	Metrics   *metrics.Metrics    // optional; /metrics is not mounted without it
	Breaker   ops.BreakerReporter // optional
	Logger    *zap.Logger
}

// NewRouter builds the API routes.
func NewRouter(deps Deps, version string) http.Handler {
	logger := logging.OrNop(deps.Logger)
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	h := &Handlers{
		wb:      deps.Workbench,
		cfg:     cfg,
		metrics: deps.Metrics,
		breaker: deps.Breaker,
		logger:  logger,
		version: version,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(requestID)
	r.Use(recoverer(logger))
	r.Use(requestLogger(logger))
	r.Use(securityHeaders)

	r.Get("/health", h.HandleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/status", h.HandleStatus)
	r.Get("/catalog", h.HandleCatalog)
	r.Put("/signature", h.HandleSignature)

	r.Route("/notes/{kind}", func(r chi.Router) {
		r.Get("/", h.HandleDraftGet)
		r.Put("/", h.HandleDraftUpdate)
		r.Delete("/", h.HandleDraftClear)
		r.Post("/activate", h.HandleActivate)
		r.Post("/lists/{field}", h.HandleListEdit)
		r.Post("/exam", h.HandleExamTemplate)
		r.Put("/birth-date", h.HandleBirthDate)
		r.Post("/parse", h.HandleParse)
		r.Post("/analyze", h.HandleAnalyze)
		r.Post("/apply", h.HandleApplyAnalysis)
		r.Get("/export/{format}", h.HandleExport)
		r.Post("/ingest", h.HandleIngest)
	})

	r.Get("/history", h.HandleHistoryList)
	r.Delete("/history", h.HandleHistoryClear)
	r.Get("/history.xlsx", h.HandleHistoryWorkbook)
	r.Get("/history/{id}", h.HandleHistoryGet)
	r.Post("/history/{id}/load", h.HandleHistoryLoad)
	r.Delete("/history/{id}", h.HandleHistoryDelete)

	return r
}

// NewServer creates the HTTP server for the API.
func NewServer(deps Deps, version string) *http.Server {
	bind, port := "127.0.0.1", 8741
	if deps.Config != nil {
		bind, port = deps.Config.HTTPBind, deps.Config.HTTPPort
	}
	return &http.Server{
		Addr:        fmt.Sprintf("%s:%d", bind, port),
		Handler:     NewRouter(deps, version),
		ReadTimeout: 15 * time.Second,
		// Assistant calls can take a while; WriteTimeout must cover them.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data:; style-src 'self' 'unsafe-inline'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and shuts it down gracefully on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("clinote API listening", zap.String("addr", "http://"+srv.Addr))
	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces; patient data may be reachable from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
