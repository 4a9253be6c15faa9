package chord

import (
	"testing"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/node"
	"dhtresearch/internal/transport/pool"
)

func newTestOverlay(t *testing.T, id domain.ID, addr string) *Overlay {
	t.Helper()
	p := pool.New(&logger.NopLogger{})
	n := node.New(id, addr, p, node.LSHConfig{Bands: 4, Rows: 5, DefaultTopN: 5}, &logger.NopLogger{})
	o := New(n, SuccessorListSize, FingerTableSize, &logger.NopLogger{})
	n.Attach(o)
	o.InitSingleNode()
	return o
}

func TestInitSingleNodeAllSlotsSelf(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")

	succ, ok := o.Successor(0)
	if !ok || succ.ID != o.self.ID {
		t.Fatalf("successor(0) = %v, %v; want self", succ, ok)
	}
	if _, ok := o.Predecessor(); !ok {
		t.Fatal("expected predecessor to be set to self")
	}
	for i := 0; i < FingerTableSize; i++ {
		f, ok := o.Finger(i)
		if !ok || f.ID != o.self.ID {
			t.Fatalf("finger(%d) = %v, %v; want self", i, f, ok)
		}
	}
}

func TestReplicationTargetNoneWhenAlone(t *testing.T) {
	o := newTestOverlay(t, 0x2000, "127.0.0.1:9002")
	if _, ok := o.ReplicationTarget(); ok {
		t.Fatal("single-node ring should report no replication target")
	}
}

func TestReplicationTargetIsFirstSuccessor(t *testing.T) {
	o := newTestOverlay(t, 0x2000, "127.0.0.1:9002")
	other := domain.NodeRef{ID: 0x3000, Addr: "127.0.0.1:9003"}
	o.setSuccessor(0, other)

	target, ok := o.ReplicationTarget()
	if !ok || target.ID != other.ID {
		t.Fatalf("ReplicationTarget() = %v, %v; want %v, true", target, ok, other)
	}
}

func TestClosestPrecedingNodeFallsBackToSelf(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	got := o.closestPrecedingNode(0x1500)
	if got.ID != o.self.ID {
		t.Fatalf("closestPrecedingNode with no other peers = %v; want self", got)
	}
}

func TestClosestPrecedingNodePrefersHighestQualifyingFinger(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	near := domain.NodeRef{ID: 0x1100, Addr: "127.0.0.1:9101"}
	far := domain.NodeRef{ID: 0x1400, Addr: "127.0.0.1:9401"}
	o.setFinger(0, near)
	o.setFinger(3, far)

	got := o.closestPrecedingNode(0x1500)
	if got.ID != far.ID {
		t.Fatalf("closestPrecedingNode(0x1500) = %v; want the farther-reaching finger %v", got, far)
	}
}

func TestFingerStartWraps(t *testing.T) {
	self := domain.ID(0xfff0)
	got := fingerStart(self, 4) // self + 16, wraps past 0xffff
	if got != domain.ID(0x0000) {
		t.Fatalf("fingerStart wrap = %v; want 0x0000", got)
	}
}

func TestSlotClearMakesGetFail(t *testing.T) {
	var s slot
	s.set(domain.NodeRef{ID: 1, Addr: "a"})
	s.clear()
	if _, ok := s.get(); ok {
		t.Fatal("expected get() to report false after clear()")
	}
}
