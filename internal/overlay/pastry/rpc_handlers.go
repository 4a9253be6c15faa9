package pastry

import (
	"context"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FindOwner is the Pastry control-plane RPC handler (spec §6): resolves
// key with this node's own tables, recursing over the network via Owner.
func (o *Overlay) FindOwner(ctx context.Context, req *rpc.FindOwnerRequest) (*rpc.FindOwnerResponse, error) {
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}
	owner, hops, err := o.Owner(ctx, key, req.Hops)
	if err != nil {
		return &rpc.FindOwnerResponse{Status: rpc.StatusFailure, Message: err.Error(), Hops: hops}, err
	}
	return &rpc.FindOwnerResponse{Status: rpc.StatusSuccess, Owner: rpc.NodeFromDomain(owner), Hops: hops}, nil
}

// NodeJoin is invoked hop-by-hop along the path a joiner's bootstrap
// request traces toward the joiner's own id (spec §4.7 join): each
// responder contributes its routing-table row at its own common-prefix
// length with the joiner, and the terminal responder (the node whose
// prefix-hop would land back on itself) also donates its leaf set.
func (o *Overlay) NodeJoin(ctx context.Context, req *rpc.NodeJoinRequest) (*rpc.NodeJoinResponse, error) {
	joiner, err := req.JoiningNode.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid joining node")
	}
	hops := append(append([]string{}, req.Hops...), o.self.ID.String())

	row := o.self.ID.CommonPrefixLen(joiner.ID)
	var entry rpc.RoutingRowEntry
	if row < domain.HexDigits {
		entry.RowIndex = row
		for _, ref := range o.RoutingRow(row) {
			entry.Row = append(entry.Row, rpc.NodeFromDomain(ref))
		}
	}

	next, ok := o.routeTableNextHop(joiner.ID)
	if !ok {
		next, ok = o.bestKnownNode(joiner.ID)
	}
	o.insertRouting(joiner)
	if !ok || next.ID == o.self.ID {
		var leafWire []rpc.Node
		for _, ref := range o.LeafSet() {
			leafWire = append(leafWire, rpc.NodeFromDomain(ref))
		}
		o.insertLeaf(joiner)
		return &rpc.NodeJoinResponse{
			Status: rpc.StatusSuccess, Rows: []rpc.RoutingRowEntry{entry},
			LeafSet: leafWire, IsTerminal: true, Hops: hops,
		}, nil
	}

	resp, err := o.nodeJoinHop(ctx, next, req.JoiningNode, hops)
	if err != nil {
		// Same reactive repair as Owner's lookup path (spec §2): the next
		// hop is dead, so drop it from our tables and retry once against
		// the next-best candidate instead of failing the whole join.
		o.evict(next.ID)
		alt, ok := o.bestKnownNode(joiner.ID)
		if !ok || alt.ID == next.ID || alt.ID == o.self.ID {
			return nil, err
		}
		o.lgr.Warn("pastry: node_join hop failed, retrying via next-best candidate", logger.F("failed", next.Addr), logger.F("retry", alt.Addr), logger.F("error", err.Error()))
		resp, err = o.nodeJoinHop(ctx, alt, req.JoiningNode, hops)
		if err != nil {
			return nil, err
		}
	}
	resp.Rows = append([]rpc.RoutingRowEntry{entry}, resp.Rows...)
	return resp, nil
}

// nodeJoinHop makes a single NodeJoin RPC to next.
func (o *Overlay) nodeJoinHop(ctx context.Context, next domain.NodeRef, joiningNode rpc.Node, hops []string) (*rpc.NodeJoinResponse, error) {
	c, err := o.client(next.Addr)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "pastry: dial %s: %v", next.Addr, err)
	}
	return c.NodeJoin(ctx, &rpc.NodeJoinRequest{JoiningNode: joiningNode, Hops: hops})
}

// NodeLeave removes leaving from this node's tables, grounded on the same
// leaf-set/routing-table repair the teacher's Chord handoff performs,
// generalized to Pastry's several independent tables.
func (o *Overlay) NodeLeave(_ context.Context, req *rpc.NodeLeaveRequest) (*rpc.Ack, error) {
	leaving, err := req.LeavingNode.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid leaving node")
	}
	o.evict(leaving.ID)
	for _, ref := range req.AvailableNodes {
		nref, err := ref.ToDomain()
		if err != nil {
			continue
		}
		o.insertLeaf(nref)
		o.insertRouting(nref)
		o.insertNeighborhood(nref)
	}
	return &rpc.Ack{}, nil
}

// Distance reports a proximity estimate between the caller (given as a
// numeric position, spec §4.7's network-proximity metric) and this node,
// along with this node's neighborhood set so the caller can seed its own.
// No real latency probe is available in this environment, so AbsDistance
// of the node ids stands in for the proximity metric (noted in the design
// ledger).
func (o *Overlay) Distance(_ context.Context, req *rpc.DistanceRequest) (*rpc.DistanceResponse, error) {
	dist := float64(o.self.ID) - req.NodePosition
	if dist < 0 {
		dist = -dist
	}
	var nbrs []rpc.Node
	for _, ref := range o.NeighborhoodSet() {
		nbrs = append(nbrs, rpc.NodeFromDomain(ref))
	}
	return &rpc.DistanceResponse{Status: rpc.StatusSuccess, Distance: dist, NeighborhoodSet: nbrs}, nil
}

// UpdatePresence lets a newly joined (or newly discovered) node broadcast
// itself so recipients fill any table slot it qualifies for (spec §4.7
// step 4).
func (o *Overlay) UpdatePresence(_ context.Context, req *rpc.UpdatePresenceRequest) (*rpc.Ack, error) {
	ref, err := req.Node.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid node")
	}
	o.insertLeaf(ref)
	o.insertRouting(ref)
	o.insertNeighborhood(ref)
	return &rpc.Ack{}, nil
}

// GetKeys hands over primary-tree records whose key is numerically closer
// to NewOwner than to this node, rather than Chord's successor interval —
// shares the wire shape chord.Overlay.GetKeys uses,
// since both are "give me what you hold that I now own".
func (o *Overlay) GetKeys(_ context.Context, req *rpc.GetKeysRequest) (*rpc.GetKeysResponse, error) {
	newOwner, err := req.NewOwner.ToDomain()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid new owner")
	}
	tree := o.n.Tree()
	var handed []rpc.Record
	for _, rec := range tree.Snapshot() {
		if rec.CountryKey.AbsDistance(newOwner.ID) < rec.CountryKey.AbsDistance(o.self.ID) {
			handed = append(handed, rpc.RecordFromDomain(rec))
			tree.Delete(rec.CountryKey)
		}
	}
	return &rpc.GetKeysResponse{Status: rpc.StatusSuccess, Records: handed}, nil
}
