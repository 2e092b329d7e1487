// Package rpc exposes a participant controller to its host over gRPC.
// Messages are google.protobuf.Struct values so no generated code is needed.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cellcontroller.v1.Participant"

// ParticipantServer is the server API for the Participant service.
type ParticipantServer interface {
	Deliver(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Threat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Produce(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AvailableCells(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SupportedResources(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SupportedCombinations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Combine(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InternalState(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ParticipantServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes the Participant service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ParticipantServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: unaryHandler("Deliver", ParticipantServer.Deliver)},
		{MethodName: "Threat", Handler: unaryHandler("Threat", ParticipantServer.Threat)},
		{MethodName: "Produce", Handler: unaryHandler("Produce", ParticipantServer.Produce)},
		{MethodName: "AvailableCells", Handler: unaryHandler("AvailableCells", ParticipantServer.AvailableCells)},
		{MethodName: "SupportedResources", Handler: unaryHandler("SupportedResources", ParticipantServer.SupportedResources)},
		{MethodName: "SupportedCombinations", Handler: unaryHandler("SupportedCombinations", ParticipantServer.SupportedCombinations)},
		{MethodName: "Combine", Handler: unaryHandler("Combine", ParticipantServer.Combine)},
		{MethodName: "InternalState", Handler: unaryHandler("InternalState", ParticipantServer.InternalState)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cellcontroller/v1/participant.proto",
}

// RegisterParticipantServer registers srv on s.
func RegisterParticipantServer(s grpc.ServiceRegistrar, srv ParticipantServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ParticipantServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ParticipantServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc
