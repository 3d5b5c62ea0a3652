package grpc

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func dial(t *testing.T, s *Server) grpc_health_v1.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return grpc_health_v1.NewHealthClient(conn)
}

func TestHealthServing(t *testing.T) {
	s, err := Start(context.Background(), "0")
	require.NoError(t, err)
	defer s.Stop()

	resp, err := dial(t, s).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestHealthFollowsProbe(t *testing.T) {
	var failing atomic.Bool
	probe := func(context.Context) error {
		if failing.Load() {
			return errors.New("database unreachable")
		}
		return nil
	}

	s, err := Start(context.Background(), "0", WithProbe(probe), WithInterval(20*time.Millisecond))
	require.NoError(t, err)
	defer s.Stop()

	client := dial(t, s)
	failing.Store(true)

	assert.Eventually(t, func() bool {
		resp, err := client.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
		return err == nil && resp.Status == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 20*time.Millisecond)
}
