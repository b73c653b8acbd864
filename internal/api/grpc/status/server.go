package status

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/acm-simulator/internal/domain/alert"
	"github.com/oshokin/acm-simulator/internal/version"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "acm.v1.StatusService"
	// GetStatusMethod is the full method name of GetStatus.
	GetStatusMethod = "/" + ServiceName + "/GetStatus"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Stats(ctx context.Context) *alert.Stats
}

// StatusServiceServer is the server API of the status service.
type StatusServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the status service for grpc.ServiceRegistrar.
//
//nolint:gochecknoglobals // Service descriptors are package level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    getStatusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "acm/v1/status.proto",
}

// Register adds srv to registrar.
func Register(registrar grpc.ServiceRegistrar, srv StatusServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// Server implements StatusServiceServer.
type Server struct {
	// service provides the manager statistics.
	service Service
	// now is the clock used for uptime.
	now func() time.Time
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
		now:     time.Now,
	}
}

// GetStatus returns the current manager statistics.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	stats := s.service.Stats(ctx)
	if stats == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "manager is not running")
	}

	result, err := toStruct(stats, s.now())
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, "unable to encode status")
	}

	return result, nil
}

// toStruct converts alert.Stats to a protobuf Struct.
func toStruct(stats *alert.Stats, now time.Time) (*structpb.Struct, error) {
	classified := make(map[string]any, len(stats.Classified))
	for kind, count := range stats.Classified {
		classified[kind.String()] = count
	}

	dropped := make(map[string]any, len(stats.Dropped))
	for reason, count := range stats.Dropped {
		dropped[reason] = count
	}

	fields := map[string]any{
		"started_at":     stats.StartedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": now.Sub(stats.StartedAt).Seconds(),
		"classified":     classified,
		"dropped":        dropped,
		"last_heartbeat": eventFields(stats.LastHeartbeat),
		"last_alarm":     eventFields(stats.LastAlarm),
		"version":        version.Short(),
	}

	return structpb.NewStruct(fields)
}

func eventFields(event *alert.Event) any {
	if event == nil {
		return nil
	}

	fields := map[string]any{
		"control_id":  event.ControlID,
		"peer":        event.Peer,
		"received_at": event.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}

	if event.Identifier != "" {
		fields["identifier"] = event.Identifier
	}

	return fields
}

//nolint:revive // Signature is fixed by grpc.MethodHandler.
func getStatusHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(StatusServiceServer).GetStatus(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetStatusMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}

	return interceptor(ctx, in, info, handler)
}
