// Package grpc runs the side-car gRPC server that exposes the standard
// grpc.health.v1.Health service for load balancers and orchestrators.
//
// The serving status tracks a probe (normally a database ping) that is
// re-evaluated on an interval:
//
//	srv, err := grpc.Start(ctx, config.GRPCPort(), grpc.WithProbe(pingDB))
//	defer srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/carepath-academy/carepath/pkg/logger"
	"github.com/carepath-academy/carepath/pkg/metrics"
)

// ServiceName is the health service name reported alongside "" (overall).
const ServiceName = "carepath.api"

var (
	handledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "carepath",
		Subsystem: "grpc",
		Name:      "server_handled_total",
		Help:      "Total number of gRPC calls completed by method and code.",
	}, []string{"grpc_method", "grpc_code"})

	handlingSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "carepath",
		Subsystem: "grpc",
		Name:      "server_handling_seconds",
		Help:      "Histogram of gRPC response latency in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"grpc_method"})
)

func init() {
	metrics.MustRegister(handledTotal, handlingSeconds)
}

// ─── Interceptors ─────────────────────────────────────────────────────────────

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered",
				"method", info.FullMethod,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// observeInterceptor logs each unary call and records its metrics.
func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	dur := time.Since(start)

	code := status.Code(err)
	handledTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
	handlingSeconds.WithLabelValues(info.FullMethod).Observe(dur.Seconds())

	logger.Debug("grpc: request",
		"method", info.FullMethod,
		"duration_ms", dur.Milliseconds(),
		"code", code.String(),
	)
	return resp, err
}

// ─── Server ───────────────────────────────────────────────────────────────────

// Probe reports whether the process can serve traffic.
type Probe func(ctx context.Context) error

type Option func(*Server)

// WithProbe sets the readiness probe. Without one the server always reports
// SERVING.
func WithProbe(p Probe) Option { return func(s *Server) { s.probe = p } }

// WithInterval sets how often the probe runs.
func WithInterval(d time.Duration) Option { return func(s *Server) { s.interval = d } }

// Server is a running gRPC health endpoint.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	lis      net.Listener
	probe    Probe
	interval time.Duration
	stop     context.CancelFunc
	done     chan struct{}
}

// Start listens on port ("0" picks a free one) and serves in the background.
func Start(ctx context.Context, port string, opts ...Option) (*Server, error) {
	addr := ":" + port
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc: listen on %s: %w", addr, err)
	}

	s := &Server{
		srv: grpc.NewServer(
			grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
			grpc.MaxRecvMsgSize(4*1024*1024),
			grpc.MaxSendMsgSize(4*1024*1024),
		),
		health:   health.NewServer(),
		lis:      lis,
		interval: 10 * time.Second,
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	grpc_health_v1.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)

	probeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stop = cancel
	s.check(probeCtx)
	go s.watch(probeCtx)

	logger.Info("grpc: health server starting", "addr", lis.Addr().String())
	go func() {
		if err := s.srv.Serve(lis); err != nil {
			logger.Error("grpc: serve error", "error", err)
		}
	}()
	return s, nil
}

// Addr is the bound listener address.
func (s *Server) Addr() string { return s.lis.Addr().String() }

func (s *Server) watch(ctx context.Context) {
	defer close(s.done)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.check(ctx)
		}
	}
}

func (s *Server) check(ctx context.Context) {
	st := grpc_health_v1.HealthCheckResponse_SERVING
	if s.probe != nil {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := s.probe(pctx)
		cancel()
		if err != nil {
			logger.Warn("grpc: readiness probe failed", "error", err)
			st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	s.stop()
	<-s.done
	s.health.Shutdown()
	logger.Info("grpc: health server shutting down")
	s.srv.GracefulStop()
}
