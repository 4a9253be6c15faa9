package chord

import (
	"context"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Owner implements the shared node.Overlay primitive by recursing
// find_successor hop-by-hop, exactly as FindSuccessor does for remote
// callers, but resolving locally when possible instead of always issuing
// an RPC to self.
func (o *Overlay) Owner(ctx context.Context, key domain.ID, hops []string) (domain.NodeRef, []string, error) {
	hops = append(append([]string{}, hops...), o.self.ID.String())

	succ, ok := o.Successor(0)
	if !ok {
		return domain.NodeRef{}, hops, status.Error(codes.Unavailable, "chord: no successor known")
	}
	if key == o.self.ID {
		return o.self, hops, nil
	}
	if key.Between(o.self.ID, succ.ID) {
		return succ, hops, nil
	}

	p := o.closestPrecedingNode(key)
	if p.ID == o.self.ID {
		// No finger or successor strictly precedes key more closely than
		// we do; fall back to our own successor to guarantee progress.
		return succ, hops, nil
	}

	c, err := o.client(p.Addr)
	if err != nil {
		return domain.NodeRef{}, hops, status.Errorf(codes.Unavailable, "chord: dial %s: %v", p.Addr, err)
	}
	resp, err := c.FindSuccessor(ctx, &rpc.FindSuccessorRequest{Key: key.String(), Hops: hops})
	if err != nil {
		return domain.NodeRef{}, hops, err
	}
	if resp.Status != rpc.StatusSuccess {
		return domain.NodeRef{}, resp.Hops, status.Error(codes.Internal, resp.Message)
	}
	owner, err := resp.Owner.ToDomain()
	if err != nil {
		return domain.NodeRef{}, resp.Hops, status.Error(codes.Internal, "chord: malformed owner")
	}
	return owner, resp.Hops, nil
}

// closestPrecedingNode scans the finger table from the farthest reach down
// to the nearest, returning the live finger whose id most closely precedes
// key without passing it (spec §4.6). It falls back to self when no finger
// qualifies, signaling the caller to fall back to the successor instead.
func (o *Overlay) closestPrecedingNode(key domain.ID) domain.NodeRef {
	for i := len(o.fingers) - 1; i >= 0; i-- {
		f, ok := o.fingers[i].get()
		if !ok || f.ID == o.self.ID {
			continue
		}
		if f.ID.Between(o.self.ID, key) {
			return f
		}
	}
	for i := len(o.successors) - 1; i >= 0; i-- {
		s, ok := o.successors[i].get()
		if !ok || s.ID == o.self.ID {
			continue
		}
		if s.ID.Between(o.self.ID, key) {
			return s
		}
	}
	return o.self
}

// fingerStart computes finger i's ideal target id: (self + 2^i) mod 2^16.
func fingerStart(self domain.ID, i int) domain.ID {
	return domain.ID(uint16(self) + uint16(1)<<uint(i))
}

// RefreshFinger re-resolves finger i by asking the overlay to find the
// successor of its ideal start id, used both during join and by the
// periodic finger-fix stabilizer (spec §4.7).
func (o *Overlay) RefreshFinger(ctx context.Context, i int) error {
	if i < 0 || i >= len(o.fingers) {
		return nil
	}
	start := fingerStart(o.self.ID, i)
	owner, err := o.resolveSuccessor(ctx, start)
	if err != nil {
		o.lgr.Debug("finger refresh failed", logger.F("index", i), logger.F("error", err.Error()))
		return err
	}
	o.setFinger(i, owner)
	return nil
}

// resolveSuccessor finds the node responsible for id by calling Owner with
// an empty hop list, so it is usable outside an rpc hop context (e.g.
// during join). Like Owner, it answers locally without any RPC when self
// or self's immediate successor resolves id.
func (o *Overlay) resolveSuccessor(ctx context.Context, id domain.ID) (domain.NodeRef, error) {
	owner, _, err := o.Owner(ctx, id, nil)
	return owner, err
}
