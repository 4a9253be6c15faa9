package chord

import (
	"context"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/rpc"
)

// Leave gracefully removes this node from the ring (spec §4.8): hand the
// primary tree to the successor via Restoration, splice predecessor and
// successor together, and let check_predecessor/stabilize on the neighbors
// converge the rest. Grounded on the teacher's HandleLeave, which is the
// receiving half of the same handoff.
func (o *Overlay) Leave(ctx context.Context) {
	succ, hasSucc := o.Successor(0)
	pred, hasPred := o.Predecessor()

	if hasSucc && succ.ID != o.self.ID {
		if c, err := o.client(succ.Addr); err == nil {
			req := &rpc.RestorationRequest{SenderID: o.self.ID.String()}
			for _, rec := range o.n.Tree().Snapshot() {
				req.Records = append(req.Records, rpc.RecordFromDomain(rec))
			}
			if _, err := c.Restoration(ctx, req); err != nil {
				o.lgr.Warn("chord: leave: restoration handoff failed", logger.F("successor", succ.Addr), logger.F("error", err.Error()))
			}
			if hasPred && pred.ID != o.self.ID {
				if _, err := c.SetPredecessor(ctx, &rpc.SetPredecessorRequest{Predecessor: rpc.NodeFromDomain(pred)}); err != nil {
					o.lgr.Warn("chord: leave: failed to splice predecessor into successor", logger.F("error", err.Error()))
				}
			}
		}
	}

	if hasPred && pred.ID != o.self.ID {
		if c, err := o.client(pred.Addr); err == nil {
			if hasSucc && succ.ID != o.self.ID {
				if _, err := c.SetSuccessor(ctx, &rpc.SetSuccessorRequest{Successor: rpc.NodeFromDomain(succ)}); err != nil {
					o.lgr.Warn("chord: leave: failed to splice successor into predecessor", logger.F("error", err.Error()))
				}
			}
		}
	}

	o.n.Stop()
	o.lgr.Info("chord: left ring gracefully")
}
