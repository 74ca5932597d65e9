package grpcclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/cattle-id/internal/logging"
)

// HealthClient probes a running identification service over gRPC.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	logger *zap.Logger
}

// DialHealth returns a ready-to-use health client for addr. Extra dial options
// are appended after the defaults.
func DialHealth(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*HealthClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	}, opts...)

	conn, err := grpc.DialContext(dialCtx, addr, dialOpts...)
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.dial_health", "", err)
		logger.Error("failed to dial health service", zap.Error(wrapped), zap.String("addr", addr))
		return nil, wrapped
	}
	return &HealthClient{conn: conn, client: healthpb.NewHealthClient(conn), logger: logger}, nil
}

// Check returns nil when service reports SERVING.
func (h *HealthClient) Check(ctx context.Context, service string) error {
	resp, err := h.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		wrapped := logging.NewOperationError("grpcclient.check", "", err)
		h.logger.Error("health check failed", zap.Error(wrapped), zap.String("service", service))
		return wrapped
	}
	if status := resp.GetStatus(); status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("service %q is %s", service, status)
	}
	return nil
}

func (h *HealthClient) Close() error {
	return h.conn.Close()
}
