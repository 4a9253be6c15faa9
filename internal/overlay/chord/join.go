package chord

import (
	"context"
	"fmt"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"
)

// Join attaches this overlay to an existing ring through bootstrapAddr
// (spec §4.6 step 3/5): look up our own successor through the bootstrap
// node, learn its current predecessor, pull the slice of keys that now
// falls between them, then wire both neighbors synchronously — successor
// adopts us as predecessor, old predecessor adopts us as successor (which
// also seeds our backup tree with its primary, see SetSuccessor) — rather
// than leaving either half to the next stabilize tick. Grounded on
// original_source/Chord/node.py's join(): request_set_successor(pre_id)
// plus request_set_predecessor(suc_id), done synchronously before join
// returns.
func (o *Overlay) Join(ctx context.Context, bootstrapAddr string) error {
	if bootstrapAddr == "" {
		o.InitSingleNode()
		return nil
	}
	c, err := o.client(bootstrapAddr)
	if err != nil {
		return fmt.Errorf("chord: join: dial bootstrap %s: %w", bootstrapAddr, err)
	}
	resp, err := c.FindSuccessor(ctx, &rpc.FindSuccessorRequest{Key: o.self.ID.String()})
	if err != nil {
		return fmt.Errorf("chord: join: find_successor via bootstrap: %w", err)
	}
	if resp.Status != rpc.StatusSuccess {
		return fmt.Errorf("chord: join: bootstrap reported failure: %s", resp.Message)
	}
	succ, err := resp.Owner.ToDomain()
	if err != nil {
		return fmt.Errorf("chord: join: malformed successor: %w", err)
	}

	if succ.ID == o.self.ID {
		o.lgr.Info("chord: join resolved to self, acting as single-node ring")
		o.InitSingleNode()
		return nil
	}

	succClient, err := o.client(succ.Addr)
	if err != nil {
		return fmt.Errorf("chord: join: dial successor %s: %w", succ.Addr, err)
	}

	// Learn the successor's current predecessor before touching its state:
	// that's our own predecessor-to-be, and the node whose primary our
	// backup must mirror. Falls back to succ itself (a single-node ring's
	// self-loop predecessor), which is exactly right when succ has no
	// other neighbor yet.
	pre := succ
	if statusResp, err := succClient.GetStatus(ctx, &rpc.Ack{}); err != nil {
		o.lgr.Warn("chord: join: get_status on successor failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
	} else if statusResp.Status == rpc.StatusSuccess && statusResp.Predecessor != nil {
		if p, perr := statusResp.Predecessor.ToDomain(); perr == nil {
			pre = p
		}
	}

	// Pull our share of the key space before announcing ourselves as the
	// new predecessor, while the successor still knows the old boundary.
	if err := o.pullKeysFromSuccessor(ctx, succClient); err != nil {
		o.lgr.Warn("chord: join: key transfer failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
	}

	o.setSuccessor(0, succ)
	o.fingerCursor = -1
	o.predecessor.set(pre)

	if _, err := succClient.SetPredecessor(ctx, &rpc.SetPredecessorRequest{Predecessor: rpc.NodeFromDomain(o.self)}); err != nil {
		o.lgr.Warn("chord: join: notify successor failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
	}

	preClient, err := o.client(pre.Addr)
	if err != nil {
		o.lgr.Warn("chord: join: dial predecessor failed", logger.F("predecessor", pre.Addr), logger.F("error", err.Error()))
	} else if _, err := preClient.SetSuccessor(ctx, &rpc.SetSuccessorRequest{Successor: rpc.NodeFromDomain(o.self)}); err != nil {
		o.lgr.Warn("chord: join: notify predecessor failed", logger.F("predecessor", pre.Addr), logger.F("error", err.Error()))
	}

	o.fixSuccessorListFrom(ctx, succ)

	for i := range o.fingers {
		if err := o.RefreshFinger(ctx, i); err != nil {
			o.lgr.Debug("chord: join: initial finger refresh failed", logger.F("index", i))
		}
	}

	o.lgr.Info("chord: joined ring via bootstrap", logger.F("bootstrap", bootstrapAddr), logger.F("successor", succ.Addr))
	return nil
}

// pullKeysFromSuccessor asks succ for the records whose key now falls in
// our ownership interval, (succ's predecessor, self.ID], and loads them
// into our primary tree. Grounded on the teacher's Notify/
// transferResourcesAsync handoff, inverted: the joiner pulls before it is
// visible as anyone's predecessor, rather than an existing node pushing
// after the fact.
func (o *Overlay) pullKeysFromSuccessor(ctx context.Context, succClient *rpc.Client) error {
	resp, err := succClient.GetKeys(ctx, &rpc.GetKeysRequest{NewOwner: rpc.NodeFromDomain(o.self)})
	if err != nil {
		return err
	}
	if resp.Status != rpc.StatusSuccess {
		return fmt.Errorf("get_keys reported failure")
	}
	tree := o.n.Tree()
	for _, w := range resp.Records {
		r, err := w.ToDomain()
		if err != nil {
			continue
		}
		tree.Add(r.Point, r.Review, r.Country)
	}
	o.lgr.Debug("chord: join: pulled keys", logger.F("count", len(resp.Records)))
	return nil
}

// GetKeys hands over every primary-tree record whose key falls in
// (predecessor, NewOwner.ID] — the slice a joining node between us and our
// old predecessor now owns. It overrides the UnimplementedPastryOps stub:
// both overlays need this handoff, so Chord implements it directly instead
// of treating it as Pastry-only (spec §6 names it once; both protocols use
// the same shape).
func (o *Overlay) GetKeys(_ context.Context, req *rpc.GetKeysRequest) (*rpc.GetKeysResponse, error) {
	newOwner, err := req.NewOwner.ToDomain()
	if err != nil {
		return &rpc.GetKeysResponse{Status: rpc.StatusFailure}, nil
	}

	pred := o.self
	if p, ok := o.Predecessor(); ok {
		pred = p
	}

	tree := o.n.Tree()
	var handed []rpc.Record
	for _, rec := range tree.Snapshot() {
		if rec.CountryKey.Between(pred.ID, newOwner.ID) {
			handed = append(handed, rpc.RecordFromDomain(rec))
			tree.Delete(rec.CountryKey)
		}
	}
	return &rpc.GetKeysResponse{Status: rpc.StatusSuccess, Records: handed}, nil
}
