package grpcx

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/md-rashed-zaman/staffslots/libs/httpx"
	"github.com/md-rashed-zaman/staffslots/libs/runtime"
)

func startBufServer(t *testing.T, checks ...runtime.ReadyCheck) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewServer(runtime.DiscardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Serve(ctx, srv, lis, runtime.DiscardLogger(), time.Second)
	}()
	go WatchReadiness(ctx, hs, "booking", 20*time.Millisecond, checks...)
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := Dial("passthrough:///bufnet", DialOptions{},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthFollowsReadiness(t *testing.T) {
	var failing atomic.Bool
	client := startBufServer(t, runtime.ReadyCheck{Name: "db", Check: func(context.Context) error {
		if failing.Load() {
			return errors.New("db down")
		}
		return nil
	}})

	status := func(service string) healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	require.Eventually(t, func() bool {
		return status("") == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, status("booking"))

	failing.Store(true)
	require.Eventually(t, func() bool {
		return status("booking") == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRequestIDEchoedInHeader(t *testing.T) {
	client := startBufServer(t)

	ctx, cancel := context.WithTimeout(httpx.ContextWithRequestID(context.Background(), "req-grpc-1"), time.Second)
	defer cancel()
	var header metadata.MD
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	require.Equal(t, []string{"req-grpc-1"}, header.Get(RequestIDMetadataKey))
}

func TestServerGeneratesRequestID(t *testing.T) {
	client := startBufServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var header metadata.MD
	_, err := client.Check(ctx, &healthpb.HealthCheckRequest{}, grpc.Header(&header))
	require.NoError(t, err)
	require.Len(t, header.Get(RequestIDMetadataKey), 1)
	require.NotEmpty(t, header.Get(RequestIDMetadataKey)[0])
}
