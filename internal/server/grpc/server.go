// Package grpc runs the operations listener: the standard health service,
// server reflection and channelz. Channelz is restricted to admins.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/metrics"
	"google.golang.org/grpc"
	channelzsvc "google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Authenticator is satisfied by *auth.Resolver.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) auth.Result
}

type GRPCServer struct {
	address string
	auth    Authenticator
	metrics *metrics.Metrics
	logger  logging.Logger
	health  *health.Server
}

func NewGRPCServer(a string, l logging.Logger, authn Authenticator, m *metrics.Metrics) *GRPCServer {
	if m == nil {
		m = metrics.New()
	}
	return &GRPCServer{
		address: a,
		auth:    authn,
		metrics: m,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}
}

// SetServing flips the overall health status reported to health checks.
func (s *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.authUnaryInterceptor),
		grpc.ChainStreamInterceptor(s.authStreamInterceptor),
	)
	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
	channelzsvc.RegisterChannelzServiceToServer(srv)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
