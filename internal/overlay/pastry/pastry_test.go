package pastry

import (
	"context"
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
	o := New(n, &logger.NopLogger{})
	n.Attach(o)
	o.InitSingleNode()
	return o
}

func TestInitSingleNodeEmptyLeafSet(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	if got := o.LeafSet(); len(got) != 0 {
		t.Fatalf("LeafSet() = %v; want empty", got)
	}
	if _, _, ok := o.leafRange(); ok {
		t.Fatal("leafRange() should report no range for a lone node")
	}
}

func TestReplicationTargetAlwaysNone(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	if _, ok := o.ReplicationTarget(); ok {
		t.Fatal("pastry overlay should never report a replication target")
	}
}

func TestInsertLeafSplitsAboveAndBelow(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	below := domain.NodeRef{ID: 0x0500, Addr: "127.0.0.1:9002"}
	above := domain.NodeRef{ID: 0x1500, Addr: "127.0.0.1:9003"}
	o.insertLeaf(below)
	o.insertLeaf(above)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.leafDown) != 1 || o.leafDown[0].ID != below.ID {
		t.Fatalf("leafDown = %v; want [%v]", o.leafDown, below)
	}
	if len(o.leafUp) != 1 || o.leafUp[0].ID != above.ID {
		t.Fatalf("leafUp = %v; want [%v]", o.leafUp, above)
	}
}

func TestInsertLeafCapsAtLeafSetSize(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	for i := 1; i <= LeafSetSize+2; i++ {
		o.insertLeaf(domain.NodeRef{ID: domain.ID(0x1000 + i*0x10), Addr: "127.0.0.1:900" + string(rune('0'+i))})
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.leafUp) != LeafSetSize {
		t.Fatalf("leafUp len = %d; want %d", len(o.leafUp), LeafSetSize)
	}
}

func TestInsertRoutingPlacesByPrefixAndDigit(t *testing.T) {
	o := newTestOverlay(t, 0x1234, "127.0.0.1:9001")
	peer := domain.NodeRef{ID: 0x1256, Addr: "127.0.0.1:9002"}
	o.insertRouting(peer)

	row := domain.ID(0x1234).CommonPrefixLen(peer.ID)
	got, ok := o.routingEntry(row, peer.ID.Digit(row)).get()
	if !ok || got.ID != peer.ID {
		t.Fatalf("routingEntry(%d, digit) = %v, %v; want %v, true", row, got, ok, peer)
	}
}

func TestInsertNeighborhoodFillsFirstEmptySlot(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	a := domain.NodeRef{ID: 0x2000, Addr: "127.0.0.1:9002"}
	b := domain.NodeRef{ID: 0x3000, Addr: "127.0.0.1:9003"}
	o.insertNeighborhood(a)
	o.insertNeighborhood(b)

	got := o.NeighborhoodSet()
	if len(got) != 2 {
		t.Fatalf("NeighborhoodSet() = %v; want 2 entries", got)
	}
}

func TestOwnerFallsBackToSelfWhenNoPeersKnown(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	owner, hops, err := o.Owner(context.Background(), 0x1500, nil)
	if err != nil {
		t.Fatalf("Owner() error = %v", err)
	}
	if owner.ID != o.self.ID {
		t.Fatalf("Owner() = %v; want self", owner)
	}
	if len(hops) != 1 || hops[0] != o.self.ID.String() {
		t.Fatalf("hops = %v; want a single self entry", hops)
	}
}

func TestOwnerFromLeafSetPrefersNumericallyCloser(t *testing.T) {
	o := newTestOverlay(t, 0x1000, "127.0.0.1:9001")
	near := domain.NodeRef{ID: 0x1010, Addr: "127.0.0.1:9002"}
	far := domain.NodeRef{ID: 0x1100, Addr: "127.0.0.1:9003"}
	o.insertLeaf(near)
	o.insertLeaf(far)

	owner, _, err := o.Owner(context.Background(), 0x1020, nil)
	if err != nil {
		t.Fatalf("Owner() error = %v", err)
	}
	if owner.ID != near.ID {
		t.Fatalf("Owner() = %v; want nearer leaf %v", owner, near)
	}
}
