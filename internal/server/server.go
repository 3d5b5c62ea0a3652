// Package server owns the listen/serve/shutdown lifecycle of the HTTP API
// and the optional gRPC health side-car.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carepath-academy/carepath/config"
	"github.com/carepath-academy/carepath/pkg/grpc"
	"github.com/carepath-academy/carepath/pkg/logger"
)

// Options configure Run. Empty fields fall back to config.
type Options struct {
	Addr            string
	GRPCPort        string
	ShutdownTimeout time.Duration
	// Probe backs the gRPC health status.
	Probe grpc.Probe
}

// Run serves handler until ctx is cancelled, then drains in-flight requests
// for up to ShutdownTimeout.
func Run(ctx context.Context, handler http.Handler, opts Options) error {
	if opts.Addr == "" {
		opts.Addr = ":" + config.AppPort()
	}
	if opts.GRPCPort == "" {
		opts.GRPCPort = config.GRPCPort()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = config.ShutdownTimeout()
	}

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var health *grpc.Server
	if opts.GRPCPort != "" {
		var err error
		health, err = grpc.Start(ctx, opts.GRPCPort, grpc.WithProbe(opts.Probe))
		if err != nil {
			return err
		}
		defer health.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening", "addr", opts.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("http: shutting down", "timeout", opts.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http: shutdown: %w", err)
	}
	logger.Info("http: stopped")
	return nil
}
