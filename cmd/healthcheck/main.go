// Command healthcheck exits non-zero unless the identification service
// reports SERVING over gRPC. It is meant for container health probes.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/example/cattle-id/internal/grpcclient"
	"github.com/example/cattle-id/internal/health"
	"github.com/example/cattle-id/internal/logging"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "gRPC health address")
	service := flag.String("service", health.ServiceName, "service name to check")
	timeout := flag.Duration("timeout", 3*time.Second, "overall deadline")
	flag.Parse()

	logger, err := logging.NewLogger("warn")
	if err != nil {
		panic(err)
	}

	if err := run(*addr, *service, *timeout, logger); err != nil {
		logger.Warn("service not healthy", zap.Error(err), zap.String("addr", *addr))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(addr, service string, timeout time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := grpcclient.DialHealth(ctx, addr, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Check(ctx, service)
}
