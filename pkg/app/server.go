package app

// pkg/app/server.go bridges Application to internal/server, which owns the
// listen and graceful-shutdown lifecycle.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shashiranjanraj/webstart/internal/server"
)

// Listen serves the application on addr until ctx is cancelled.
func (a *Application) Listen(ctx context.Context, addr string) error {
	return server.Start(ctx, addr, a)
}

// Run serves on the configured port until SIGINT or SIGTERM. It exits the
// process on failure.
func (a *Application) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Listen(ctx, ":"+a.cfg.Port); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
