package pastry

import (
	"context"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"
)

// Leave tells every node that has us in some table to repair around our
// departure (spec §4.7 graceful leave): our leaf set and neighborhood set
// are the nodes most likely to reference us, so each is notified directly
// with the rest of our leaf set offered as replacement candidates; our
// primary tree is handed to the leaf-set member now closest to each key
// before we stop serving.
func (o *Overlay) Leave(ctx context.Context) error {
	leafWire := make([]rpc.Node, 0, len(o.LeafSet()))
	for _, ref := range o.LeafSet() {
		leafWire = append(leafWire, rpc.NodeFromDomain(ref))
	}

	notify := map[string]bool{}
	for _, ref := range o.LeafSet() {
		notify[ref.Addr] = true
	}
	for _, ref := range o.NeighborhoodSet() {
		notify[ref.Addr] = true
	}
	for addr := range notify {
		c, err := o.client(addr)
		if err != nil {
			continue
		}
		req := &rpc.NodeLeaveRequest{LeavingNode: rpc.NodeFromDomain(o.self), AvailableNodes: leafWire}
		if _, err := c.NodeLeave(ctx, req); err != nil {
			o.lgr.Debug("node_leave notify failed", logger.F("peer", addr), logger.F("error", err.Error()))
		}
	}

	o.handOffRecords(ctx)
	o.n.Stop()
	return nil
}

// handOffRecords pushes every record we hold to whichever leaf-set member
// is numerically closest to its key, so a graceful leave loses no data
// even though Pastry keeps no dedicated backup tree.
func (o *Overlay) handOffRecords(ctx context.Context) {
	leaves := o.LeafSet()
	if len(leaves) == 0 {
		return
	}
	tree := o.n.Tree()
	for _, rec := range tree.Snapshot() {
		best := leaves[0]
		bestDist := best.ID.AbsDistance(rec.CountryKey)
		for _, ref := range leaves[1:] {
			if d := ref.ID.AbsDistance(rec.CountryKey); d < bestDist {
				best, bestDist = ref, d
			}
		}
		c, err := o.client(best.Addr)
		if err != nil {
			continue
		}
		req := &rpc.InsertKeyRequest{
			Key: rec.CountryKey.String(), Country: rec.Country,
			Year: rec.Point.Year, Rating: rec.Point.Rating, Price: rec.Point.Price,
			Review: rec.Review, ApplyToBackup: true,
		}
		if _, err := c.InsertKey(ctx, req); err != nil {
			o.lgr.Debug("leave hand-off failed", logger.F("peer", best.Addr), logger.F("error", err.Error()))
		}
	}
}
