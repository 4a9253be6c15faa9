package node

import (
	"context"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Overlay is the routing strategy a Node delegates to. It covers every
// overlay-specific RPC of spec §6 (Chord's and Pastry's control planes
// both satisfy it, each stubbing out the other's methods via the
// Unimplemented*Ops helpers below) plus the two primitives the shared
// data-plane handlers need: Owner (route to the responsible node) and
// ReplicationTarget (Chord's successor backup link; Pastry has none).
type Overlay interface {
	// Chord control plane
	FindSuccessor(context.Context, *rpc.FindSuccessorRequest) (*rpc.FindSuccessorResponse, error)
	SetSuccessor(context.Context, *rpc.SetSuccessorRequest) (*rpc.Ack, error)
	SetPredecessor(context.Context, *rpc.SetPredecessorRequest) (*rpc.Ack, error)
	GetSuccessor(context.Context, *rpc.Ack) (*rpc.GetSuccessorResponse, error)
	GetSuccessorList(context.Context, *rpc.Ack) (*rpc.GetSuccessorListResponse, error)
	GetStatus(context.Context, *rpc.Ack) (*rpc.GetStatusResponse, error)
	DeleteSuccessorKeys(context.Context, *rpc.DeleteSuccessorKeysRequest) (*rpc.Ack, error)
	Restoration(context.Context, *rpc.RestorationRequest) (*rpc.Ack, error)
	SetBackup(context.Context, *rpc.SetBackupRequest) (*rpc.Ack, error)

	// Pastry control plane
	FindOwner(context.Context, *rpc.FindOwnerRequest) (*rpc.FindOwnerResponse, error)
	NodeJoin(context.Context, *rpc.NodeJoinRequest) (*rpc.NodeJoinResponse, error)
	NodeLeave(context.Context, *rpc.NodeLeaveRequest) (*rpc.Ack, error)
	Distance(context.Context, *rpc.DistanceRequest) (*rpc.DistanceResponse, error)
	UpdatePresence(context.Context, *rpc.UpdatePresenceRequest) (*rpc.Ack, error)
	GetKeys(context.Context, *rpc.GetKeysRequest) (*rpc.GetKeysResponse, error)

	// Owner resolves the live node responsible for key, appending every
	// node visited to hops. It never forwards on its own — callers
	// forward the outer RPC to the returned owner when it isn't self.
	Owner(ctx context.Context, key domain.ID, hops []string) (owner domain.NodeRef, newHops []string, err error)

	// ReplicationTarget returns the node a primary mutation should be
	// mirrored to (Chord's successors[0]) and whether one exists. Pastry
	// overlays report ok=false: it keeps no backup tree (spec §3).
	ReplicationTarget() (target domain.NodeRef, ok bool)

	Self() domain.NodeRef
}

// UnimplementedPastryOps lets a Chord overlay satisfy the Pastry-specific
// slice of the rpc.Server interface without implementing it, mirroring the
// teacher's UnimplementedDHTServer embedding convention.
type UnimplementedPastryOps struct{}

func (UnimplementedPastryOps) FindOwner(context.Context, *rpc.FindOwnerRequest) (*rpc.FindOwnerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "find_owner is a Pastry-only operation")
}
func (UnimplementedPastryOps) NodeJoin(context.Context, *rpc.NodeJoinRequest) (*rpc.NodeJoinResponse, error) {
	return nil, status.Error(codes.Unimplemented, "node_join is a Pastry-only operation")
}
func (UnimplementedPastryOps) NodeLeave(context.Context, *rpc.NodeLeaveRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "node_leave is a Pastry-only operation")
}
func (UnimplementedPastryOps) Distance(context.Context, *rpc.DistanceRequest) (*rpc.DistanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "distance is a Pastry-only operation")
}
func (UnimplementedPastryOps) UpdatePresence(context.Context, *rpc.UpdatePresenceRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "update_presence is a Pastry-only operation")
}
func (UnimplementedPastryOps) GetKeys(context.Context, *rpc.GetKeysRequest) (*rpc.GetKeysResponse, error) {
	return nil, status.Error(codes.Unimplemented, "get_keys is a Pastry-only operation")
}

// UnimplementedChordOps is the mirror image for a Pastry overlay.
type UnimplementedChordOps struct{}

func (UnimplementedChordOps) FindSuccessor(context.Context, *rpc.FindSuccessorRequest) (*rpc.FindSuccessorResponse, error) {
	return nil, status.Error(codes.Unimplemented, "find_successor is a Chord-only operation")
}
func (UnimplementedChordOps) SetSuccessor(context.Context, *rpc.SetSuccessorRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "set_successor is a Chord-only operation")
}
func (UnimplementedChordOps) SetPredecessor(context.Context, *rpc.SetPredecessorRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "set_predecessor is a Chord-only operation")
}
func (UnimplementedChordOps) GetSuccessor(context.Context, *rpc.Ack) (*rpc.GetSuccessorResponse, error) {
	return nil, status.Error(codes.Unimplemented, "get_successor is a Chord-only operation")
}
func (UnimplementedChordOps) GetSuccessorList(context.Context, *rpc.Ack) (*rpc.GetSuccessorListResponse, error) {
	return nil, status.Error(codes.Unimplemented, "get_successor_list is a Chord-only operation")
}
func (UnimplementedChordOps) GetStatus(context.Context, *rpc.Ack) (*rpc.GetStatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "get_status is a Chord-only operation")
}
func (UnimplementedChordOps) DeleteSuccessorKeys(context.Context, *rpc.DeleteSuccessorKeysRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "delete_successor_keys is a Chord-only operation")
}
func (UnimplementedChordOps) Restoration(context.Context, *rpc.RestorationRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "restoration is a Chord-only operation")
}
func (UnimplementedChordOps) SetBackup(context.Context, *rpc.SetBackupRequest) (*rpc.Ack, error) {
	return nil, status.Error(codes.Unimplemented, "set_backup is a Chord-only operation")
}
