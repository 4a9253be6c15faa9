package chord

import (
	"context"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FindSuccessor is the Chord control-plane RPC handler (spec §6): it
// resolves the owner of key using this node's own routing state, recursing
// over the network via Owner when the key doesn't belong to this node's
// successor yet.
func (o *Overlay) FindSuccessor(ctx context.Context, req *rpc.FindSuccessorRequest) (*rpc.FindSuccessorResponse, error) {
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}
	owner, hops, err := o.Owner(ctx, key, req.Hops)
	if err != nil {
		return &rpc.FindSuccessorResponse{Status: rpc.StatusFailure, Message: err.Error(), Hops: hops}, err
	}
	return &rpc.FindSuccessorResponse{Status: rpc.StatusSuccess, Owner: rpc.NodeFromDomain(owner), Hops: hops}, nil
}

// SetSuccessor is invoked by a predecessor (or the stabilizer) to assert
// who this node's successor should be. When the successor actually
// changes, it also pushes a fresh snapshot of this node's primary tree
// into the new successor's backup (spec §4.6 step 5: "new.backup =
// predecessor.kd_tree (snapshot)") — the new successor is the node whose
// backup now has to mirror us.
func (o *Overlay) SetSuccessor(ctx context.Context, req *rpc.SetSuccessorRequest) (*rpc.Ack, error) {
	succ, err := req.Successor.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid successor")
	}
	prev, hadPrev := o.Successor(0)
	o.setSuccessor(0, succ)
	if succ.ID != o.self.ID && (!hadPrev || prev.ID != succ.ID) {
		o.pushBackupSnapshot(ctx, succ)
	}
	return &rpc.Ack{}, nil
}

// pushBackupSnapshot mirrors this node's current primary tree into succ's
// backup tree via the SetBackup RPC, called whenever succ is newly
// assigned as our successor.
func (o *Overlay) pushBackupSnapshot(ctx context.Context, succ domain.NodeRef) {
	c, err := o.client(succ.Addr)
	if err != nil {
		o.lgr.Warn("chord: backup seed: dial successor failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
		return
	}
	snap := o.n.Tree().Snapshot()
	wire := make([]rpc.Record, len(snap))
	for i, r := range snap {
		wire[i] = rpc.RecordFromDomain(r)
	}
	if _, err := c.SetBackup(ctx, &rpc.SetBackupRequest{Records: wire}); err != nil {
		o.lgr.Warn("chord: backup seed failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
		return
	}
	o.lgr.Debug("chord: backup seed pushed", logger.F("successor", succ.Addr), logger.F("records", len(wire)))
}

// SetPredecessor is invoked by a candidate asserting it is this node's new
// predecessor (join, or stabilize's notify step).
func (o *Overlay) SetPredecessor(_ context.Context, req *rpc.SetPredecessorRequest) (*rpc.Ack, error) {
	cand, err := req.Predecessor.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid predecessor")
	}
	cur, ok := o.Predecessor()
	if !ok || cur.ID == o.self.ID || cand.ID.Between(cur.ID, o.self.ID) {
		o.predecessor.set(cand)
	}
	return &rpc.Ack{}, nil
}

// GetSuccessor reports this node's first live successor.
func (o *Overlay) GetSuccessor(_ context.Context, _ *rpc.Ack) (*rpc.GetSuccessorResponse, error) {
	succ, ok := o.Successor(0)
	if !ok {
		return &rpc.GetSuccessorResponse{Status: rpc.StatusFailure, Message: "no successor"}, nil
	}
	return &rpc.GetSuccessorResponse{Status: rpc.StatusSuccess, Successor: rpc.NodeFromDomain(succ)}, nil
}

// GetSuccessorList reports every live entry of this node's successor list,
// used by a predecessor's fix_successor_list stabilizer step.
func (o *Overlay) GetSuccessorList(_ context.Context, _ *rpc.Ack) (*rpc.GetSuccessorListResponse, error) {
	list := o.SuccessorList()
	wire := make([]rpc.Node, len(list))
	for i, ref := range list {
		wire[i] = rpc.NodeFromDomain(ref)
	}
	return &rpc.GetSuccessorListResponse{Status: rpc.StatusSuccess, Successors: wire}, nil
}

// GetStatus reports this node's identity, predecessor, and liveness, used
// by the stabilizer's check_predecessor step and by diagnostics.
func (o *Overlay) GetStatus(_ context.Context, _ *rpc.Ack) (*rpc.GetStatusResponse, error) {
	resp := &rpc.GetStatusResponse{
		Status:  rpc.StatusSuccess,
		Self:    rpc.NodeFromDomain(o.self),
		Running: o.n.IsRunning(),
	}
	if pred, ok := o.Predecessor(); ok {
		w := rpc.NodeFromDomain(pred)
		resp.Predecessor = &w
	}
	return resp, nil
}

// DeleteSuccessorKeys drops the listed keys from this node's backup tree.
// No overlay code path in this repository sends this RPC.
func (o *Overlay) DeleteSuccessorKeys(_ context.Context, req *rpc.DeleteSuccessorKeysRequest) (*rpc.Ack, error) {
	for _, k := range req.Keys {
		id, err := domain.ParseID(k)
		if err != nil {
			continue
		}
		o.n.Backup().Delete(id)
	}
	return &rpc.Ack{}, nil
}

// Restoration merges the records carried by req into this node's primary
// tree — the handoff that keeps a leaving node's keys alive on its
// successor. Only a gracefully leaving predecessor sends it, with its own
// primary tree (see Leave); the stabilizer's dead-successor handling sends
// no Restoration, so a node that fails without leaving has its records
// only in its successor's backup tree.
func (o *Overlay) Restoration(_ context.Context, req *rpc.RestorationRequest) (*rpc.Ack, error) {
	recs := make([]domain.Record, 0, len(req.Records))
	for _, w := range req.Records {
		r, err := w.ToDomain()
		if err != nil {
			continue
		}
		recs = append(recs, r)
	}
	tree := o.n.Tree()
	for _, r := range recs {
		tree.Add(r.Point, r.Review, r.Country)
	}
	o.lgr.Debug("restoration merged", logger.F("sender", req.SenderID), logger.F("records", len(recs)))
	return &rpc.Ack{}, nil
}

// SetBackup replaces this node's backup tree wholesale — sent by a
// predecessor with its primary tree when SetSuccessor makes this node its
// new successor.
func (o *Overlay) SetBackup(_ context.Context, req *rpc.SetBackupRequest) (*rpc.Ack, error) {
	recs := make([]domain.Record, 0, len(req.Records))
	for _, w := range req.Records {
		r, err := w.ToDomain()
		if err != nil {
			continue
		}
		recs = append(recs, r)
	}
	o.n.Backup().Load(recs)
	return &rpc.Ack{}, nil
}
