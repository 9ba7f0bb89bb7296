package server

import (
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/isobench/isobench/internal/observability"
)

// ServiceName is the health service name reported while an experiment runs.
const ServiceName = "isobench.Experiment"

// StatusServer exposes the standard gRPC health service. The experiment
// service reports SERVING while repetitions run and NOT_SERVING otherwise.
type StatusServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     observability.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}
}

// NewStatusServer creates a stopped status server.
func NewStatusServer(logger observability.Logger) *StatusServer {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &StatusServer{grpcServer: gs, health: hs, logger: observability.OrNop(logger)}
}

// Start listens on addr and serves in the background.
func (s *StatusServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on status address: %w", err)
	}

	s.mu.Lock()
	s.listener = lis
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.logger.Info(logMsgStatusListening, logAttrAddr, lis.Addr().String())
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error(logMsgStatusFailed, logAttrError, err.Error())
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *StatusServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// SetServing reports whether an experiment is running.
func (s *StatusServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and stops gracefully.
func (s *StatusServer) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Close implements io.Closer so the server can be registered with a StopSignal.
func (s *StatusServer) Close() error {
	s.Stop()
	return nil
}
