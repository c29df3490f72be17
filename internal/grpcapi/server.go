// Package grpcapi exposes the standard gRPC health service so orchestrators
// can probe approvald alongside the HTTP API.
package grpcapi

import (
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// LifecycleService is the health service name reported for the request
// lifecycle engine.
const LifecycleService = "approvals.Lifecycle"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewServer registers the health service. Everything starts NOT_SERVING
// until MarkServing is called.
func NewServer(logger *slog.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(LifecycleService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{grpc: gs, health: hs, logger: logger}
}

// MarkServing is called once storage is open.
func (s *Server) MarkServing() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(LifecycleService, healthpb.HealthCheckResponse_SERVING)
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
