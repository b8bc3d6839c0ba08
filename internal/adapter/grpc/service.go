package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified operator service name
const ServiceName = "sileme.v1.WillService"

// WillServiceServer is the operator API. Messages are generic structs so the
// service needs no generated code.
type WillServiceServer interface {
	EstablishIdentity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LinkWallet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InterpretManifesto(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetBeneficiaries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SealWill(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelWill(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcknowledgeCompletion(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Heartbeat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckInactivity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ForceTrigger(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PreparePlan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ConfirmExecution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelPlan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ScanSentinel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(WillServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unary adapts one interface method to a grpc.MethodDesc
func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(WillServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(WillServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// WillServiceDesc describes the operator service for grpc.Server.RegisterService
var WillServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WillServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("EstablishIdentity", WillServiceServer.EstablishIdentity),
		unary("LinkWallet", WillServiceServer.LinkWallet),
		unary("InterpretManifesto", WillServiceServer.InterpretManifesto),
		unary("SetBeneficiaries", WillServiceServer.SetBeneficiaries),
		unary("SealWill", WillServiceServer.SealWill),
		unary("CancelWill", WillServiceServer.CancelWill),
		unary("AcknowledgeCompletion", WillServiceServer.AcknowledgeCompletion),
		unary("Heartbeat", WillServiceServer.Heartbeat),
		unary("CheckInactivity", WillServiceServer.CheckInactivity),
		unary("ForceTrigger", WillServiceServer.ForceTrigger),
		unary("PreparePlan", WillServiceServer.PreparePlan),
		unary("ConfirmExecution", WillServiceServer.ConfirmExecution),
		unary("CancelPlan", WillServiceServer.CancelPlan),
		unary("ScanSentinel", WillServiceServer.ScanSentinel),
		unary("GetStatus", WillServiceServer.GetStatus),
		unary("ListHistory", WillServiceServer.ListHistory),
		unary("ListEvents", WillServiceServer.ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sileme/v1/will.proto",
}

// RegisterWillServiceServer registers srv on s
func RegisterWillServiceServer(s grpc.ServiceRegistrar, srv WillServiceServer) {
	s.RegisterService(&WillServiceDesc, srv)
}

// Client calls the operator service over an existing connection
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with a request built from fields
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
