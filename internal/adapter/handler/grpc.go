package handler

import (
	"sort"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName prefixes the per-component services reported over gRPC,
// e.g. "socia.classifier".
const HealthServiceName = "socia"

// GrpcServer serves grpc.health.v1 with one entry per component plus the
// overall "" service.
type GrpcServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewGrpcServer reports every enabled component as SERVING and disabled ones
// as NOT_SERVING. The server itself is always SERVING until Stop.
func NewGrpcServer(components map[string]bool, logger *zap.Logger) *GrpcServer {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_SERVING)

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if components[name] {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus(HealthServiceName+"."+name, status)
		logger.Debug("grpc health status", zap.String("component", name), zap.String("status", status.String()))
	}

	return &GrpcServer{server: s, health: hs, logger: logger}
}

// Server exposes the underlying grpc.Server for Serve.
func (g *GrpcServer) Server() *grpc.Server {
	return g.server
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (g *GrpcServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}
