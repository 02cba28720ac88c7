package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicServices need no credentials.
var publicServices = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.v1.ServerReflection/",
	"/grpc.reflection.v1alpha.ServerReflection/",
}

func isPublic(fullMethod string) bool {
	for _, p := range publicServices {
		if strings.HasPrefix(fullMethod, p) {
			return true
		}
	}
	return false
}

// authorize runs the session resolver on the "authorization" metadata and
// requires the admin role.
func (s *GRPCServer) authorize(ctx context.Context, method string) (context.Context, error) {
	var authorization string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			authorization = values[0]
		}
	}

	res := s.auth.Authenticate(ctx, authorization)
	s.metrics.AuthAttempt(res.Reason.String())
	if !res.Authenticated() {
		s.logger.Info(ctx, "session rejected", "method", method, "reason", res.Reason.String())
		return nil, status.Error(codes.Unauthenticated, common.ErrUnauthenticated.Error())
	}
	if res.Identity.Role != models.RoleAdmin {
		return nil, status.Error(codes.PermissionDenied, "admin access required")
	}

	return auth.WithIdentity(ctx, res.Identity), nil
}

func (s *GRPCServer) authUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}
	ctx, err := s.authorize(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s identityStream) Context() context.Context { return s.ctx }

func (s *GRPCServer) authStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if isPublic(info.FullMethod) {
		return handler(srv, ss)
	}
	ctx, err := s.authorize(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, identityStream{ServerStream: ss, ctx: ctx})
}
