package pastry

import (
	"context"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Owner implements the shared node.Overlay primitive via find_owner
// (spec §4.7): resolve locally when the leaf set covers key, otherwise hop
// to the best next node and let its own Owner call continue the search.
// When that hop fails outright (dial error, or the remote call errors),
// it's the reactive repair spec §2 names as Pastry's health mechanism:
// evict the dead entry from whichever table produced it and retry once
// against the next-best known candidate before giving up.
func (o *Overlay) Owner(ctx context.Context, key domain.ID, hops []string) (domain.NodeRef, []string, error) {
	hops = append(append([]string{}, hops...), o.self.ID.String())

	if owner, ok := o.ownerFromLeafSet(key); ok {
		return owner, hops, nil
	}

	next, ok := o.routeTableNextHop(key)
	if !ok {
		next, ok = o.bestKnownNode(key)
	}
	if !ok || next.ID == o.self.ID {
		return o.self, hops, nil
	}

	owner, retHops, err := o.findOwnerHop(ctx, next, key, hops)
	if err == nil {
		return owner, retHops, nil
	}

	o.evict(next.ID)
	alt, ok := o.bestKnownNode(key)
	if !ok || alt.ID == next.ID || alt.ID == o.self.ID {
		return domain.NodeRef{}, hops, err
	}
	o.lgr.Warn("pastry: hop failed, retrying via next-best candidate", logger.F("failed", next.Addr), logger.F("retry", alt.Addr), logger.F("error", err.Error()))
	return o.findOwnerHop(ctx, alt, key, hops)
}

// findOwnerHop makes a single FindOwner RPC to next.
func (o *Overlay) findOwnerHop(ctx context.Context, next domain.NodeRef, key domain.ID, hops []string) (domain.NodeRef, []string, error) {
	c, err := o.client(next.Addr)
	if err != nil {
		return domain.NodeRef{}, hops, status.Errorf(codes.Unavailable, "pastry: dial %s: %v", next.Addr, err)
	}
	resp, err := c.FindOwner(ctx, &rpc.FindOwnerRequest{Key: key.String(), Hops: hops})
	if err != nil {
		return domain.NodeRef{}, hops, err
	}
	if resp.Status != rpc.StatusSuccess {
		return domain.NodeRef{}, resp.Hops, status.Error(codes.Internal, resp.Message)
	}
	owner, err := resp.Owner.ToDomain()
	if err != nil {
		return domain.NodeRef{}, resp.Hops, status.Error(codes.Internal, "pastry: malformed owner")
	}
	return owner, resp.Hops, nil
}

// ownerFromLeafSet resolves key directly when it falls within the leaf
// set's numeric span: the closest id among self and the leaf set owns it,
// ties broken toward the higher id (spec §3).
func (o *Overlay) ownerFromLeafSet(key domain.ID) (domain.NodeRef, bool) {
	low, high, ok := o.leafRange()
	if !ok {
		if key == o.self.ID {
			return o.self, true
		}
		return domain.NodeRef{}, false
	}
	if key != low && key != high && !key.Between(low, high) {
		return domain.NodeRef{}, false
	}

	best := o.self
	bestDist := o.self.ID.AbsDistance(key)
	consider := func(ref domain.NodeRef) {
		d := ref.ID.AbsDistance(key)
		if d < bestDist || (d == bestDist && ref.ID.Cmp(best.ID) > 0) {
			best, bestDist = ref, d
		}
	}
	for _, ref := range o.LeafSet() {
		consider(ref)
	}
	return best, true
}

// routeTableNextHop finds the routing-table cell matching key's shared
// prefix with self, returning the live entry one level deeper.
func (o *Overlay) routeTableNextHop(key domain.ID) (domain.NodeRef, bool) {
	row := o.self.ID.CommonPrefixLen(key)
	if row >= domain.HexDigits {
		return domain.NodeRef{}, false
	}
	digit := key.Digit(row)
	return o.routingEntry(row, digit).get()
}

// bestKnownNode is the fallback scan (spec §4.7): among the leaf set,
// routing table, and neighborhood set, find any node whose shared prefix
// with key is at least as long as self's and strictly closer numerically.
func (o *Overlay) bestKnownNode(key domain.ID) (domain.NodeRef, bool) {
	selfPrefix := o.self.ID.CommonPrefixLen(key)
	selfDist := o.self.ID.AbsDistance(key)

	var best domain.NodeRef
	found := false
	consider := func(ref domain.NodeRef) {
		prefix := ref.ID.CommonPrefixLen(key)
		dist := ref.ID.AbsDistance(key)
		if prefix < selfPrefix || dist >= selfDist {
			return
		}
		if !found || dist < best.ID.AbsDistance(key) {
			best, found = ref, true
		}
	}
	for _, ref := range o.LeafSet() {
		consider(ref)
	}
	for i := 0; i < domain.HexDigits; i++ {
		for _, ref := range o.RoutingRow(i) {
			consider(ref)
		}
	}
	for _, ref := range o.NeighborhoodSet() {
		consider(ref)
	}
	return best, found
}
