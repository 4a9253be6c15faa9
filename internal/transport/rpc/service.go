package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// Server is the single dispatch table spec §4.4 describes: every
// operation — overlay control-plane and data-plane alike — arrives as one
// RPC method on one gRPC service, since the spec models requests as one
// tagged envelope routed by an `operation` field rather than many
// independently versioned services.
type Server interface {
	// Chord control plane
	FindSuccessor(context.Context, *FindSuccessorRequest) (*FindSuccessorResponse, error)
	SetSuccessor(context.Context, *SetSuccessorRequest) (*Ack, error)
	SetPredecessor(context.Context, *SetPredecessorRequest) (*Ack, error)
	GetSuccessor(context.Context, *Ack) (*GetSuccessorResponse, error)
	GetSuccessorList(context.Context, *Ack) (*GetSuccessorListResponse, error)
	GetStatus(context.Context, *Ack) (*GetStatusResponse, error)
	DeleteSuccessorKeys(context.Context, *DeleteSuccessorKeysRequest) (*Ack, error)
	Restoration(context.Context, *RestorationRequest) (*Ack, error)
	SetBackup(context.Context, *SetBackupRequest) (*Ack, error)

	// Pastry control plane
	FindOwner(context.Context, *FindOwnerRequest) (*FindOwnerResponse, error)
	NodeJoin(context.Context, *NodeJoinRequest) (*NodeJoinResponse, error)
	NodeLeave(context.Context, *NodeLeaveRequest) (*Ack, error)
	Distance(context.Context, *DistanceRequest) (*DistanceResponse, error)
	UpdatePresence(context.Context, *UpdatePresenceRequest) (*Ack, error)
	GetKeys(context.Context, *GetKeysRequest) (*GetKeysResponse, error)

	// Data plane, shared by both overlays
	InsertKey(context.Context, *InsertKeyRequest) (*MutationResponse, error)
	DeleteKey(context.Context, *DeleteKeyRequest) (*MutationResponse, error)
	UpdateKey(context.Context, *UpdateKeyRequest) (*MutationResponse, error)
	Lookup(context.Context, *LookupRequest) (*LookupResponse, error)

	Ping(context.Context, *Ack) (*PingResponse, error)
}

// Ack is the empty envelope used by requests/responses carrying no payload.
type Ack struct{}

// RegisterServer attaches srv's handlers to a *grpc.Server under the
// hand-written ServiceDesc below, playing the role the teacher's
// generated RegisterDHTServer/RegisterClientAPIServer play.
func RegisterServer(s *grpc.Server, srv Server) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req any, Resp any](handler func(Server, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return handler(srv.(Server), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		wrapper := func(ctx context.Context, req any) (any, error) {
			return handler(srv.(Server), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, wrapper)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "dhtresearch.rpc.DHT",
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FindSuccessor", Handler: unary(Server.FindSuccessor)},
		{MethodName: "SetSuccessor", Handler: unary(Server.SetSuccessor)},
		{MethodName: "SetPredecessor", Handler: unary(Server.SetPredecessor)},
		{MethodName: "GetSuccessor", Handler: unary(Server.GetSuccessor)},
		{MethodName: "GetSuccessorList", Handler: unary(Server.GetSuccessorList)},
		{MethodName: "GetStatus", Handler: unary(Server.GetStatus)},
		{MethodName: "DeleteSuccessorKeys", Handler: unary(Server.DeleteSuccessorKeys)},
		{MethodName: "Restoration", Handler: unary(Server.Restoration)},
		{MethodName: "SetBackup", Handler: unary(Server.SetBackup)},
		{MethodName: "FindOwner", Handler: unary(Server.FindOwner)},
		{MethodName: "NodeJoin", Handler: unary(Server.NodeJoin)},
		{MethodName: "NodeLeave", Handler: unary(Server.NodeLeave)},
		{MethodName: "Distance", Handler: unary(Server.Distance)},
		{MethodName: "UpdatePresence", Handler: unary(Server.UpdatePresence)},
		{MethodName: "GetKeys", Handler: unary(Server.GetKeys)},
		{MethodName: "InsertKey", Handler: unary(Server.InsertKey)},
		{MethodName: "DeleteKey", Handler: unary(Server.DeleteKey)},
		{MethodName: "UpdateKey", Handler: unary(Server.UpdateKey)},
		{MethodName: "Lookup", Handler: unary(Server.Lookup)},
		{MethodName: "Ping", Handler: unary(Server.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dhtresearch/transport/rpc/dht.proto",
}
