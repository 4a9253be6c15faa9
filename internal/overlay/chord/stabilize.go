package chord

import (
	"context"
	"time"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"
)

// StabilizeIntervals bundles the three independent ticker periods the
// stabilizer runs at (spec §4.7 defaults: 0.5-1.5s). Each loop ticks at its
// fixed period; periods are not randomized per tick.
type StabilizeIntervals struct {
	Stabilization     time.Duration
	FingerFix         time.Duration
	PredecessorCheck  time.Duration
}

// Start runs the three Chord maintenance loops until ctx is canceled.
// Grounded in the teacher's StartStabilizers: one goroutine per concern,
// each on its own ticker, generalized from Koorde's successor+de-Bruijn
// pair to Chord's successor+finger pair plus the spec's separate
// predecessor liveness check.
func (o *Overlay) Start(ctx context.Context, iv StabilizeIntervals) {
	go o.runTicker(ctx, iv.Stabilization, o.stabilize)
	go o.runTicker(ctx, iv.FingerFix, o.fixNextFinger)
	go o.runTicker(ctx, iv.PredecessorCheck, o.checkPredecessor)
}

func (o *Overlay) runTicker(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// stabilize is the successor-repair step (spec §4.7): ask the successor
// for its predecessor, adopt it if it lies strictly between self and the
// current successor, then notify the (possibly new) successor of self.
// Falls back through the successor list, and to single-node mode, when the
// successor is unreachable.
func (o *Overlay) stabilize(ctx context.Context) {
	succ, ok := o.Successor(0)
	if !ok {
		o.lgr.Error("stabilize: no successor set (invalid state)")
		return
	}

	if succ.ID == o.self.ID {
		o.fixSuccessorListLocal()
		return
	}

	c, err := o.client(succ.Addr)
	if err != nil {
		o.promoteSuccessor(succ)
		return
	}
	statusResp, err := c.GetStatus(ctx, &rpc.Ack{})
	if err != nil || statusResp.Status != rpc.StatusSuccess {
		o.lgr.Warn("stabilize: successor unresponsive, promoting candidate", logger.F("successor", succ.Addr))
		o.promoteSuccessor(succ)
		return
	}

	if statusResp.Predecessor != nil {
		pred, err := statusResp.Predecessor.ToDomain()
		if err == nil && pred.ID != o.self.ID && pred.ID.Between(o.self.ID, succ.ID) {
			o.setSuccessor(0, pred)
			succ = pred
			c, err = o.client(succ.Addr)
			if err != nil {
				return
			}
		}
	}

	if _, err := c.SetPredecessor(ctx, &rpc.SetPredecessorRequest{Predecessor: rpc.NodeFromDomain(o.self)}); err != nil {
		o.lgr.Warn("stabilize: notify failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
	}

	o.fixSuccessorListFrom(ctx, succ)
}

// promoteSuccessor drops an unreachable successor and replaces it with the
// next live candidate in the successor list, or reverts to single-node
// mode if every candidate is also dead.
func (o *Overlay) promoteSuccessor(dead domain.NodeRef) {
	hasCandidate := false
	for i := 1; i < len(o.successors); i++ {
		if _, ok := o.successors[i].get(); ok {
			hasCandidate = true
			break
		}
	}
	if !hasCandidate {
		o.lgr.Warn("stabilize: no successor candidates left, reverting to single-node mode", logger.F("old", dead.Addr))
		o.InitSingleNode()
		return
	}
	promoted, _ := o.successors[1].get()
	for i := 0; i < len(o.successors)-1; i++ {
		if ref, ok := o.successors[i+1].get(); ok {
			o.successors[i].set(ref)
		} else {
			o.successors[i].clear()
		}
	}
	o.successors[len(o.successors)-1].clear()
	o.lgr.Warn("stabilize: promoted successor candidate", logger.F("old", dead.Addr), logger.F("new", promoted.Addr))
}

// fixSuccessorListFrom pulls succ's own successor list and shifts it one
// position to rebuild ours.
func (o *Overlay) fixSuccessorListFrom(ctx context.Context, succ domain.NodeRef) {
	c, err := o.client(succ.Addr)
	if err != nil {
		return
	}
	resp, err := c.GetSuccessorList(ctx, &rpc.Ack{})
	if err != nil || resp.Status != rpc.StatusSuccess {
		return
	}
	o.setSuccessor(0, succ)
	for i := 1; i < len(o.successors); i++ {
		if i-1 >= len(resp.Successors) {
			o.successors[i].clear()
			continue
		}
		ref, err := resp.Successors[i-1].ToDomain()
		if err != nil || ref.ID == o.self.ID {
			o.successors[i].clear()
			continue
		}
		o.successors[i].set(ref)
	}
}

// fixSuccessorListLocal handles the single-node case: every slot is self.
func (o *Overlay) fixSuccessorListLocal() {
	for _, s := range o.successors {
		s.set(o.self)
	}
}

// fixNextFinger refreshes one finger table entry per tick, cycling through
// all of them (spec §4.7's finger-fix step), rather than recomputing the
// whole table every tick.
func (o *Overlay) fixNextFinger(ctx context.Context) {
	o.fingerCursor = (o.fingerCursor + 1) % len(o.fingers)
	if err := o.RefreshFinger(ctx, o.fingerCursor); err != nil {
		o.lgr.Debug("fix_finger: refresh failed", logger.F("index", o.fingerCursor), logger.F("error", err.Error()))
	}
}

// checkPredecessor pings the current predecessor and clears it if
// unreachable, matching the teacher's checkPredecessor.
func (o *Overlay) checkPredecessor(ctx context.Context) {
	pred, ok := o.Predecessor()
	if !ok || pred.ID == o.self.ID {
		return
	}
	c, err := o.client(pred.Addr)
	if err != nil {
		o.lgr.Warn("check_predecessor: unreachable, clearing", logger.F("predecessor", pred.Addr))
		o.predecessor.clear()
		return
	}
	if _, err := c.Ping(ctx, &rpc.Ack{}); err != nil {
		o.lgr.Warn("check_predecessor: ping failed, clearing", logger.F("predecessor", pred.Addr), logger.F("error", err.Error()))
		o.predecessor.clear()
	}
}
