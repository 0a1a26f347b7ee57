package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cleanser.v1.CleanserService"

const (
	processDocumentMethod = "/" + ServiceName + "/ProcessDocument"
	getRunMethod          = "/" + ServiceName + "/GetRun"
)

// CleanserServer is the server API. Messages are google.protobuf.Struct so that no generated
// code is needed; field names follow the report's JSON names.
type CleanserServer interface {
	ProcessDocument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetRun(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes CleanserService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CleanserServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessDocument", Handler: unaryHandler(processDocumentMethod, CleanserServer.ProcessDocument)},
		{MethodName: "GetRun", Handler: unaryHandler(getRunMethod, CleanserServer.GetRun)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cleanser/v1/cleanser.proto",
}

// RegisterCleanserServer registers srv on s.
func RegisterCleanserServer(s grpc.ServiceRegistrar, srv CleanserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(CleanserServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CleanserServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CleanserServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CleanserClient is the client API for CleanserService.
type CleanserClient struct {
	cc grpc.ClientConnInterface
}

func NewCleanserClient(cc grpc.ClientConnInterface) *CleanserClient {
	return &CleanserClient{cc: cc}
}

func (c *CleanserClient) ProcessDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, processDocumentMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CleanserClient) GetRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getRunMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
