package pastry

import (
	"context"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"
)

// Join attaches this node to an existing Pastry ring through bootstrapAddr
// (spec §4.7 join): the bootstrap node's own find_owner routing carries a
// NODE_JOIN message toward our own id, and every hop on that path
// contributes its routing-table row; the terminal hop also donates its
// leaf set. We then broadcast our presence so any node that should know
// about us but didn't see the join path learns of us too, and pull the
// records we now own.
func (o *Overlay) Join(ctx context.Context, bootstrapAddr string) error {
	if bootstrapAddr == "" {
		o.InitSingleNode()
		return nil
	}

	bc, err := o.client(bootstrapAddr)
	if err != nil {
		return err
	}

	if dist, err := bc.Distance(ctx, &rpc.DistanceRequest{NodePosition: float64(o.self.ID)}); err == nil {
		for _, w := range dist.NeighborhoodSet {
			if ref, err := w.ToDomain(); err == nil {
				o.insertNeighborhood(ref)
			}
		}
	}

	resp, err := bc.NodeJoin(ctx, &rpc.NodeJoinRequest{JoiningNode: rpc.NodeFromDomain(o.self)})
	if err != nil {
		return err
	}

	for _, entry := range resp.Rows {
		for _, w := range entry.Row {
			if ref, err := w.ToDomain(); err == nil {
				o.insertRouting(ref)
			}
		}
	}
	for _, w := range resp.LeafSet {
		if ref, err := w.ToDomain(); err == nil {
			o.insertLeaf(ref)
		}
	}

	o.broadcastPresence(ctx)
	o.pullKeys(ctx)
	return nil
}

// broadcastPresence tells every node we now know about that we exist, so
// a node on one side of the join path learns of us even if we never
// learned it in return (spec §4.7 step 4, UPDATE_PRESENCE).
func (o *Overlay) broadcastPresence(ctx context.Context) {
	seen := map[string]bool{}
	for _, ref := range o.LeafSet() {
		seen[ref.Addr] = true
	}
	for i := 0; i < len(o.routing); i++ {
		for _, ref := range o.RoutingRow(i) {
			seen[ref.Addr] = true
		}
	}
	for _, ref := range o.NeighborhoodSet() {
		seen[ref.Addr] = true
	}
	for addr := range seen {
		c, err := o.client(addr)
		if err != nil {
			continue
		}
		if _, err := c.UpdatePresence(ctx, &rpc.UpdatePresenceRequest{Node: rpc.NodeFromDomain(o.self)}); err != nil {
			o.lgr.Debug("update_presence failed", logger.F("peer", addr), logger.F("error", err.Error()))
		}
	}
}

// pullKeys asks every leaf-set neighbor to hand over records whose key is
// numerically closer to us than to that neighbor.
func (o *Overlay) pullKeys(ctx context.Context) {
	for _, ref := range o.LeafSet() {
		c, err := o.client(ref.Addr)
		if err != nil {
			continue
		}
		resp, err := c.GetKeys(ctx, &rpc.GetKeysRequest{NewOwner: rpc.NodeFromDomain(o.self)})
		if err != nil {
			o.lgr.Debug("get_keys failed", logger.F("peer", ref.Addr), logger.F("error", err.Error()))
			continue
		}
		tree := o.n.Tree()
		for _, w := range resp.Records {
			r, err := w.ToDomain()
			if err != nil {
				continue
			}
			tree.Add(r.Point, r.Review, r.Country)
		}
	}
}
