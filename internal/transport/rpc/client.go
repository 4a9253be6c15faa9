package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const servicePath = "/dhtresearch.rpc.DHT/"

// Client is a thin stub over a grpc.ClientConnInterface, playing the role
// the teacher's generated *_client.go stubs play for internal/api/dht/v1.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func call[Req any, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	if err := c.cc.Invoke(ctx, servicePath+method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) FindSuccessor(ctx context.Context, req *FindSuccessorRequest) (*FindSuccessorResponse, error) {
	return call[FindSuccessorRequest, FindSuccessorResponse](ctx, c, "FindSuccessor", req)
}
func (c *Client) SetSuccessor(ctx context.Context, req *SetSuccessorRequest) (*Ack, error) {
	return call[SetSuccessorRequest, Ack](ctx, c, "SetSuccessor", req)
}
func (c *Client) SetPredecessor(ctx context.Context, req *SetPredecessorRequest) (*Ack, error) {
	return call[SetPredecessorRequest, Ack](ctx, c, "SetPredecessor", req)
}
func (c *Client) GetSuccessor(ctx context.Context, req *Ack) (*GetSuccessorResponse, error) {
	return call[Ack, GetSuccessorResponse](ctx, c, "GetSuccessor", req)
}
func (c *Client) GetSuccessorList(ctx context.Context, req *Ack) (*GetSuccessorListResponse, error) {
	return call[Ack, GetSuccessorListResponse](ctx, c, "GetSuccessorList", req)
}
func (c *Client) GetStatus(ctx context.Context, req *Ack) (*GetStatusResponse, error) {
	return call[Ack, GetStatusResponse](ctx, c, "GetStatus", req)
}
func (c *Client) DeleteSuccessorKeys(ctx context.Context, req *DeleteSuccessorKeysRequest) (*Ack, error) {
	return call[DeleteSuccessorKeysRequest, Ack](ctx, c, "DeleteSuccessorKeys", req)
}
func (c *Client) Restoration(ctx context.Context, req *RestorationRequest) (*Ack, error) {
	return call[RestorationRequest, Ack](ctx, c, "Restoration", req)
}
func (c *Client) SetBackup(ctx context.Context, req *SetBackupRequest) (*Ack, error) {
	return call[SetBackupRequest, Ack](ctx, c, "SetBackup", req)
}
func (c *Client) FindOwner(ctx context.Context, req *FindOwnerRequest) (*FindOwnerResponse, error) {
	return call[FindOwnerRequest, FindOwnerResponse](ctx, c, "FindOwner", req)
}
func (c *Client) NodeJoin(ctx context.Context, req *NodeJoinRequest) (*NodeJoinResponse, error) {
	return call[NodeJoinRequest, NodeJoinResponse](ctx, c, "NodeJoin", req)
}
func (c *Client) NodeLeave(ctx context.Context, req *NodeLeaveRequest) (*Ack, error) {
	return call[NodeLeaveRequest, Ack](ctx, c, "NodeLeave", req)
}
func (c *Client) Distance(ctx context.Context, req *DistanceRequest) (*DistanceResponse, error) {
	return call[DistanceRequest, DistanceResponse](ctx, c, "Distance", req)
}
func (c *Client) UpdatePresence(ctx context.Context, req *UpdatePresenceRequest) (*Ack, error) {
	return call[UpdatePresenceRequest, Ack](ctx, c, "UpdatePresence", req)
}
func (c *Client) GetKeys(ctx context.Context, req *GetKeysRequest) (*GetKeysResponse, error) {
	return call[GetKeysRequest, GetKeysResponse](ctx, c, "GetKeys", req)
}
func (c *Client) InsertKey(ctx context.Context, req *InsertKeyRequest) (*MutationResponse, error) {
	return call[InsertKeyRequest, MutationResponse](ctx, c, "InsertKey", req)
}
func (c *Client) DeleteKey(ctx context.Context, req *DeleteKeyRequest) (*MutationResponse, error) {
	return call[DeleteKeyRequest, MutationResponse](ctx, c, "DeleteKey", req)
}
func (c *Client) UpdateKey(ctx context.Context, req *UpdateKeyRequest) (*MutationResponse, error) {
	return call[UpdateKeyRequest, MutationResponse](ctx, c, "UpdateKey", req)
}
func (c *Client) Lookup(ctx context.Context, req *LookupRequest) (*LookupResponse, error) {
	return call[LookupRequest, LookupResponse](ctx, c, "Lookup", req)
}
func (c *Client) Ping(ctx context.Context, req *Ack) (*PingResponse, error) {
	return call[Ack, PingResponse](ctx, c, "Ping", req)
}
