package health

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Service is the name reported alongside the overall ("") status.
const Service = "basel.v1.Series"

// Server wraps grpc's health implementation.
type Server struct {
	hs *health.Server
}

// New returns a Server with every service NOT_SERVING.
func New() *Server {
	s := &Server{hs: health.NewServer()}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to g.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.hs)
}

// MarkServing reports SERVING for all services.
func (s *Server) MarkServing() {
	s.set(healthpb.HealthCheckResponse_SERVING)
	slog.Info("health: serving", "service", Service)
}

// MarkNotServing reports NOT_SERVING for all services.
func (s *Server) MarkNotServing() {
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	slog.Info("health: not serving", "service", Service)
}

// Shutdown sets every service NOT_SERVING permanently; later Mark calls are
// ignored by the underlying implementation.
func (s *Server) Shutdown() {
	s.hs.Shutdown()
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", st)
	s.hs.SetServingStatus(Service, st)
}

// NewGRPCServer returns a grpc.Server with the health service registered and
// a unary interceptor that logs every call at debug level.
func NewGRPCServer(s *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.UnaryInterceptor(logUnary))
	g := grpc.NewServer(opts...)
	s.Register(g)
	return g
}

func logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("grpc: unary call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"elapsed", time.Since(start),
	)
	return resp, err
}
