// Package pastry implements the prefix-routing overlay (spec §4.7/C7): a
// leaf set of nearby ids, a HEX_DIGITS x 2^b routing table keyed by shared
// id prefix, and a small neighborhood set. Structurally grounded in the
// same slot/mutex discipline chord.Overlay uses (itself grounded in the
// teacher's internal/routingtable/routingtable.go), since Pastry's state
// is a different shape of the same problem: several fixed-size tables of
// live neighbors, each entry independently replaceable without taking a
// lock on the whole structure.
package pastry

import (
	"sync"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/node"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"
)

const (
	// RoutingBase is b in spec §3: each routing-table row has 2^b columns.
	RoutingBase = 4
	// RoutingCols is 2^b, the column count of every routing-table row.
	RoutingCols = 1 << RoutingBase
	// LeafSetSize is r per side (spec default r=2): up to 2r live leaves.
	LeafSetSize = 2
	// NeighborhoodSetSize is r+1 (spec default 3).
	NeighborhoodSetSize = LeafSetSize + 1
)

type slot struct {
	mu    sync.RWMutex
	ref   domain.NodeRef
	valid bool
}

func (s *slot) get() (domain.NodeRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ref, s.valid
}

func (s *slot) set(ref domain.NodeRef) {
	s.mu.Lock()
	s.ref, s.valid = ref, true
	s.mu.Unlock()
}

func (s *slot) clear() {
	s.mu.Lock()
	s.ref, s.valid = domain.NodeRef{}, false
	s.mu.Unlock()
}

// Overlay is the Pastry routing strategy attached to a node.Node. It keeps
// no backup tree: spec §3's Pastry node-state list omits one, so
// ReplicationTarget always reports ok=false.
type Overlay struct {
	node.UnimplementedChordOps

	self domain.NodeRef
	n    *node.Node
	pool *pool.Pool
	lgr  logger.Logger

	mu       sync.RWMutex
	leafDown []domain.NodeRef // ids numerically below self, nearest first
	leafUp   []domain.NodeRef // ids numerically above self, nearest first

	routing [domain.HexDigits][RoutingCols]*slot

	neighborhood []*slot
}

// New builds a Pastry overlay for n.
func New(n *node.Node, lgr logger.Logger) *Overlay {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	o := &Overlay{
		self: domain.NodeRef{ID: n.ID(), Addr: n.Addr()},
		n:    n,
		pool: n.Pool(),
		lgr:  lgr,
	}
	for i := range o.routing {
		for j := range o.routing[i] {
			o.routing[i][j] = &slot{}
		}
	}
	o.neighborhood = make([]*slot, NeighborhoodSetSize)
	for i := range o.neighborhood {
		o.neighborhood[i] = &slot{}
	}
	return o
}

func (o *Overlay) Self() domain.NodeRef { return o.self }

// ReplicationTarget always reports none: Pastry keeps no backup tree.
func (o *Overlay) ReplicationTarget() (domain.NodeRef, bool) { return domain.NodeRef{}, false }

// InitSingleNode configures this overlay as the sole member of a fresh
// ring: every table is empty except the routing-table cell matching our
// own prefix at every level is irrelevant (we never route to ourselves),
// so there is nothing to populate beyond the self reference.
func (o *Overlay) InitSingleNode() {
	o.mu.Lock()
	o.leafDown = nil
	o.leafUp = nil
	o.mu.Unlock()
	o.lgr.Debug("pastry overlay initialized as single-node ring")
}

func (o *Overlay) client(addr string) (*rpc.Client, error) {
	c, err := o.pool.Client(addr)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (o *Overlay) LeafSet() []domain.NodeRef {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]domain.NodeRef, 0, len(o.leafDown)+len(o.leafUp))
	out = append(out, o.leafDown...)
	out = append(out, o.leafUp...)
	return out
}

// leafRange reports the lowest and highest ids currently in the leaf set,
// along with whether the set is non-empty.
func (o *Overlay) leafRange() (low, high domain.ID, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.leafDown) == 0 && len(o.leafUp) == 0 {
		return 0, 0, false
	}
	low, high = o.self.ID, o.self.ID
	if len(o.leafDown) > 0 {
		low = o.leafDown[len(o.leafDown)-1].ID
	}
	if len(o.leafUp) > 0 {
		high = o.leafUp[len(o.leafUp)-1].ID
	}
	return low, high, true
}

// insertLeaf adds ref to whichever half of the leaf set it numerically
// belongs to, keeping each half sorted by distance from self and capped at
// LeafSetSize.
func (o *Overlay) insertLeaf(ref domain.NodeRef) {
	if ref.ID == o.self.ID {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if ref.ID.Cmp(o.self.ID) < 0 {
		o.leafDown = insertSorted(o.leafDown, ref, o.self.ID)
	} else {
		o.leafUp = insertSorted(o.leafUp, ref, o.self.ID)
	}
}

// insertSorted adds ref to list, keeping it sorted nearest-to-self first
// and capped at LeafSetSize entries.
func insertSorted(list []domain.NodeRef, ref domain.NodeRef, self domain.ID) []domain.NodeRef {
	for _, e := range list {
		if e.ID == ref.ID {
			return list
		}
	}
	list = append(list, ref)
	sortByDistance(list, self)
	if len(list) > LeafSetSize {
		list = list[:LeafSetSize]
	}
	return list
}

func sortByDistance(list []domain.NodeRef, self domain.ID) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && self.AbsDistance(list[j].ID) < self.AbsDistance(list[j-1].ID); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func (o *Overlay) removeLeaf(id domain.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.leafDown = removeID(o.leafDown, id)
	o.leafUp = removeID(o.leafUp, id)
}

func removeID(list []domain.NodeRef, id domain.ID) []domain.NodeRef {
	out := list[:0:0]
	for _, e := range list {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// routingEntry returns the routing-table cell for (row, digit).
func (o *Overlay) routingEntry(row, digit int) *slot {
	return o.routing[row][digit]
}

// RoutingRow returns the live entries of routing-table row i.
func (o *Overlay) RoutingRow(i int) []domain.NodeRef {
	if i < 0 || i >= domain.HexDigits {
		return nil
	}
	var out []domain.NodeRef
	for _, s := range o.routing[i] {
		if ref, ok := s.get(); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (o *Overlay) insertRouting(ref domain.NodeRef) {
	if ref.ID == o.self.ID {
		return
	}
	row := o.self.ID.CommonPrefixLen(ref.ID)
	if row >= domain.HexDigits {
		return
	}
	digit := ref.ID.Digit(row)
	o.routingEntry(row, digit).set(ref)
}

func (o *Overlay) insertNeighborhood(ref domain.NodeRef) {
	if ref.ID == o.self.ID {
		return
	}
	for _, s := range o.neighborhood {
		if existing, ok := s.get(); ok && existing.ID == ref.ID {
			return
		}
	}
	for _, s := range o.neighborhood {
		if _, ok := s.get(); !ok {
			s.set(ref)
			return
		}
	}
}

// evict drops id from every table it might appear in — leaf set, routing
// table, neighborhood set — after a hop to it fails, so the next lookup
// doesn't retry the same dead node (spec §2's reactive repair).
func (o *Overlay) evict(id domain.ID) {
	o.removeLeaf(id)
	for i := range o.routing {
		for _, s := range o.routing[i] {
			if ref, ok := s.get(); ok && ref.ID == id {
				s.clear()
			}
		}
	}
	for _, s := range o.neighborhood {
		if ref, ok := s.get(); ok && ref.ID == id {
			s.clear()
		}
	}
}

func (o *Overlay) NeighborhoodSet() []domain.NodeRef {
	var out []domain.NodeRef
	for _, s := range o.neighborhood {
		if ref, ok := s.get(); ok {
			out = append(out, ref)
		}
	}
	return out
}
