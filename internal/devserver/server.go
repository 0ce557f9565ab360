// Package devserver serves built assets during development.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/countries-bundler/internal/buildconfig"
	httpmiddleware "github.com/wolfeidau/countries-bundler/internal/http"
	"github.com/wolfeidau/countries-bundler/internal/logger"
	"github.com/wolfeidau/countries-bundler/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	shutdownTimeout = 5 * time.Second
	indexPage       = "index.html"
)

// Handler serves the content base with the configured headers, answers CORS
// preflight requests and compresses responses when enabled.
func Handler(cfg buildconfig.DevServer, log zerolog.Logger) http.Handler {
	var h http.Handler = directIndex(http.FileServer(http.Dir(cfg.ContentBase)))

	h = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler(h)

	h = httpmiddleware.StaticHeaders(cfg.Headers)(h)

	if cfg.Compress {
		h = gzhttp.GzipHandler(h)
	}

	return logger.AccessLog(log)(countRequests(telemetry.GetMetrics(), h))
}

// directIndex serves ".../index.html" in place instead of letting
// http.FileServer redirect it to the directory.
func directIndex(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dir, ok := strings.CutSuffix(r.URL.Path, "/"+indexPage); ok {
			r2 := r.Clone(r.Context())
			r2.URL.Path = dir + "/"
			r2.URL.RawPath = ""
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func countRequests(m *telemetry.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.DevServerRequestsTotal.Add(r.Context(), 1, metric.WithAttributes(attribute.String("method", r.Method)))
		next.ServeHTTP(w, r)
	})
}

type Server struct {
	cfg     buildconfig.DevServer
	log     zerolog.Logger
	handler http.Handler
}

func New(cfg buildconfig.DevServer, log zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		handler: Handler(cfg, log),
	}
}

// ListenAndServe binds the configured address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := configureHTTPServer(ln.Addr().String(), s.handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("content_base", s.cfg.ContentBase).
		Bool("compress", s.cfg.Compress).
		Msg("Starting dev server")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown dev server: %w", err)
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	s.log.Info().Msg("Dev server stopped")
	return nil
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
