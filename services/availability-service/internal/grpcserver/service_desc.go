package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service. Requests and responses are
// google.protobuf.Struct, so callers need no generated stubs.
const ServiceName = "tablekeeper.availability.v1.AvailabilityService"

const (
	methodCheckAvailability  = "/" + ServiceName + "/CheckAvailability"
	methodListAvailableSlots = "/" + ServiceName + "/ListAvailableSlots"
)

type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListAvailableSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler(methodCheckAvailability, AvailabilityServer.CheckAvailability)},
		{MethodName: "ListAvailableSlots", Handler: unaryHandler(methodListAvailableSlots, AvailabilityServer.ListAvailableSlots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tablekeeper/availability/v1/availability.proto",
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client calls the service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CheckAvailability(ctx context.Context, localDate, localTime string, partySize int) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"date": localDate, "time": localTime, "party_size": partySize})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCheckAvailability, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAvailableSlots(ctx context.Context, localDate string, partySize int) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"date": localDate, "party_size": partySize})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListAvailableSlots, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
