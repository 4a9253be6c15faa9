// Package chord implements the Chord-style consistent-hashing overlay
// (spec §4.6/C6): successor list, finger table, closest-preceding-node
// routing, join/leave, and the periodic stabilizer. Structurally grounded
// in the teacher's internal/routingtable/routingtable.go (the
// mutex-per-slot routing-entry shape) and internal/node/worker.go (the
// ticker-pair stabilizer), generalized from Koorde's de Bruijn routing to
// Chord's finger table and from *domain.Node pointers to domain.NodeRef
// values — per spec §9's design note, slots hold plain id+addr values
// rather than live references, so a dead node drops out cleanly with no
// cycle to unwind.
package chord

import (
	"fmt"
	"sync"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/node"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"
)

const (
	// SuccessorListSize is S in spec §3.
	SuccessorListSize = 4
	// FingerTableSize is M in spec §3 — one entry per bit of domain.Bits.
	FingerTableSize = domain.Bits
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

// Overlay is the Chord routing strategy attached to a node.Node.
type Overlay struct {
	node.UnimplementedPastryOps

	self domain.NodeRef
	n    *node.Node
	pool *pool.Pool
	lgr  logger.Logger

	predecessor slot
	successors  []*slot // size SuccessorListSize
	fingers     []*slot // size FingerTableSize

	succSize int
	fingSize int

	fingerCursor int // last finger index refreshed by the finger-fix stabilizer
}

// New builds a Chord overlay for n, with successor list size succSize and
// finger table size fingSize (spec defaults S=4, M=16).
func New(n *node.Node, succSize, fingSize int, lgr logger.Logger) *Overlay {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	if succSize <= 0 {
		succSize = SuccessorListSize
	}
	if fingSize <= 0 {
		fingSize = FingerTableSize
	}
	o := &Overlay{
		self:     domain.NodeRef{ID: n.ID(), Addr: n.Addr()},
		n:        n,
		pool:     n.Pool(),
		lgr:      lgr,
		succSize: succSize,
		fingSize: fingSize,
	}
	o.successors = make([]*slot, succSize)
	for i := range o.successors {
		o.successors[i] = &slot{}
	}
	o.fingers = make([]*slot, fingSize)
	for i := range o.fingers {
		o.fingers[i] = &slot{}
	}
	return o
}

func (o *Overlay) Self() domain.NodeRef { return o.self }

// InitSingleNode configures the overlay as a fresh single-node ring: every
// successor and finger points at self.
func (o *Overlay) InitSingleNode() {
	for _, s := range o.successors {
		s.set(o.self)
	}
	for _, f := range o.fingers {
		f.set(o.self)
	}
	o.predecessor.set(o.self)
	o.lgr.Debug("chord overlay initialized as single-node ring")
}

func (o *Overlay) Successor(i int) (domain.NodeRef, bool) {
	if i < 0 || i >= len(o.successors) {
		return domain.NodeRef{}, false
	}
	return o.successors[i].get()
}

func (o *Overlay) setSuccessor(i int, ref domain.NodeRef) {
	if i < 0 || i >= len(o.successors) {
		o.lgr.Warn("setSuccessor: index out of range", logger.F("index", i))
		return
	}
	o.successors[i].set(ref)
}

func (o *Overlay) SuccessorList() []domain.NodeRef {
	out := make([]domain.NodeRef, 0, len(o.successors))
	for _, s := range o.successors {
		if ref, ok := s.get(); ok {
			out = append(out, ref)
		}
	}
	return out
}

func (o *Overlay) Predecessor() (domain.NodeRef, bool) { return o.predecessor.get() }

func (o *Overlay) Finger(i int) (domain.NodeRef, bool) {
	if i < 0 || i >= len(o.fingers) {
		return domain.NodeRef{}, false
	}
	return o.fingers[i].get()
}

func (o *Overlay) setFinger(i int, ref domain.NodeRef) {
	if i < 0 || i >= len(o.fingers) {
		return
	}
	o.fingers[i].set(ref)
}

// ReplicationTarget is the node whose backup tree mirrors this node's
// primary — its first live successor (spec §4.5's chain of length 2).
func (o *Overlay) ReplicationTarget() (domain.NodeRef, bool) {
	succ, ok := o.Successor(0)
	if !ok || succ.ID == o.self.ID {
		return domain.NodeRef{}, false
	}
	return succ, true
}

func (o *Overlay) client(addr string) (*rpc.Client, error) {
	c, err := o.pool.Client(addr)
	if err != nil {
		return nil, fmt.Errorf("chord: dial %s: %w", addr, err)
	}
	return c, nil
}
