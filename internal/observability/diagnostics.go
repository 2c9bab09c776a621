package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const readHeaderTimeout = 5 * time.Second

// DiagnosticsServer serves /healthz, /readyz, and, when a scrape handler is
// given, /metrics while a batch runs.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener
}

// NewDiagnosticsServer listens on addr and serves in the background.
// metrics may be nil.
func NewDiagnosticsServer(
	ctx context.Context, addr string, metrics http.Handler, logger *slog.Logger, checks ...ReadyCheck,
) (*DiagnosticsServer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(checks...))

	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	logger.Debug("diagnostics server listening", "addr", listener.Addr().String())

	return &DiagnosticsServer{server: srv, listener: listener}, nil
}

// Addr returns the bound address. Useful when addr used port 0.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close shuts the server down, waiting for in-flight scrapes until ctx ends.
func (d *DiagnosticsServer) Close(ctx context.Context) error {
	if err := d.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
