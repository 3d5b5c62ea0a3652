// Package logger provides the process-wide structured logger built on log/slog.
//
// Request handlers should log through WithCtx so every line carries the
// request_id injected by the Logger middleware:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("checkout session created", "session_id", id)
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/carepath-academy/carepath/config"
)

var L *slog.Logger

func init() {
	L = slog.New(consoleHandler(os.Stdout))
	slog.SetDefault(L)
}

func consoleHandler(w io.Writer) slog.Handler {
	if config.IsProduction() {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// Setup attaches the optional MongoDB sink when LOG_MONGO_URI is configured.
// The returned func flushes and disconnects it; it is never nil.
func Setup() (closeFn func()) {
	uri := config.LogMongoURI()
	if uri == "" {
		return func() {}
	}

	mh, err := NewMongoHandler(uri, config.Get("LOG_MONGO_DB", "carepath"), config.Get("LOG_MONGO_COLLECTION", "logs"))
	if err != nil {
		L.Warn("logger: mongo sink disabled", "error", err)
		return func() {}
	}

	L = slog.New(NewMultiHandler(consoleHandler(os.Stdout), mh))
	slog.SetDefault(L)
	return mh.Close
}

// SetOutput replaces the base logger's destination. Tests use it to silence
// or capture output.
func SetOutput(w io.Writer) {
	L = slog.New(consoleHandler(w))
	slog.SetDefault(L)
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored by InjectLogger, or the
// base logger when ctx carries none.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx. Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }
