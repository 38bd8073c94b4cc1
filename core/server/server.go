// Package server hosts the inbound HTTP listener for platform webhooks.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/lingobot/core/logger"
)

// HealthPath answers liveness checks.
const HealthPath = "/healthz"

const shutdownTimeout = 10 * time.Second

// Options configures the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Routes maps exact paths to handlers; HealthPath is added automatically.
	Routes map[string]http.Handler
}

// NewHandler builds the routed handler with the middleware chain applied.
func NewHandler(routes map[string]http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	for path, h := range routes {
		mux.Handle(path, h)
	}
	return Recover(AccessLog(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, opts Options) error {
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           NewHandler(opts.Routes),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("listening",
			slog.String("event", "http.listen"),
			slog.String("listen", opts.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	logger.HTTP.Info("stopped", slog.String("event", "http.shutdown"), slog.String("status", logger.Status(err)))
	return err
}
