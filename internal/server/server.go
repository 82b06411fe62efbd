package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shashiranjanraj/webstart/pkg/logger"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish once
// the context is cancelled.
const ShutdownTimeout = 10 * time.Second

// Start serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Start(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("http server shutting down", "addr", addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
