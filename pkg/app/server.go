package app

import (
	"context"

	"github.com/carepath-academy/carepath/internal/server"
)

// Serve runs the HTTP API with its background workers until ctx is
// cancelled. Workers drain after the listener has stopped.
func (a *Application) Serve(ctx context.Context) error {
	bgCtx, stop := context.WithCancel(ctx)
	wait := a.Background(bgCtx)
	defer func() {
		stop()
		wait()
	}()
	return server.Run(ctx, a.Handler(), server.Options{Probe: a.Ping})
}
