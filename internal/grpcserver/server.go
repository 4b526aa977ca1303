// Package grpcserver exposes the standard gRPC health service for a process.
package grpcserver

import (
	"errors"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves grpc.health.v1.Health for one named service
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	service    string
	logger     *log.Logger
}

// New listens on addr and registers the health service. The named service
// and the overall server start out SERVING.
func New(addr, service string, logger *log.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to listen on gRPC port %s: %w", addr, err)
	}

	hs := health.NewServer()
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpcServer: gs,
		health:     hs,
		listener:   lis,
		service:    service,
		logger:     logger,
	}, nil
}

// Addr is the bound listen address
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve blocks until Stop is called
func (s *Server) Serve() error {
	s.logger.Printf("gRPC health server listening on %s (service %s)", s.Addr(), s.service)
	if err := s.grpcServer.Serve(s.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC server failed: %w", err)
	}
	s.logger.Println("gRPC server stopped listening.")
	return nil
}

// SetServing flips the status reported for the named service
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(s.service, status)
}

// Stop reports NOT_SERVING to watchers and drains open RPCs
func (s *Server) Stop() {
	s.logger.Println("Shutting down gRPC server...")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
