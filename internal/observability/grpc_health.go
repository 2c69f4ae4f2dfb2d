package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthService is the service name reported by the gRPC health server
const GRPCHealthService = "voice-capture"

// GRPCHealth serves the standard gRPC health protocol, driven by the readiness checks.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	checks   []DependencyCheck
	interval time.Duration
}

// NewGRPCHealth creates a gRPC server exposing grpc.health.v1.Health.
func NewGRPCHealth(interval time.Duration, checks ...DependencyCheck) *GRPCHealth {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	hs := health.NewServer()
	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &GRPCHealth{
		server:   server,
		health:   hs,
		checks:   checks,
		interval: interval,
	}
}

// Refresh runs the checks once and publishes the serving status
func (g *GRPCHealth) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	_, ok := RunChecks(ctx, g.checks)

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(GRPCHealthService, status)
	return status
}

// Check answers a health request directly, without a network round trip
func (g *GRPCHealth) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve listens on addr and serves until ctx is cancelled.
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logger := GetLogger()
	g.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				g.Refresh(checkCtx)
				cancel()
			}
		}
	}()

	logger.Info().Str("addr", addr).Msg("gRPC health server listening")
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}
