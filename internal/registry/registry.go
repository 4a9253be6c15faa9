// Package registry builds and tears down an in-process DHT for local
// experiments and tests (spec §4.8/C8), grounded in the original source's
// ChordNetwork/PastryNetwork: a map of live nodes, sequential join, then
// record ingestion through a randomly chosen member. Generalized from the
// teacher's single-process-per-node deployment model (cmd/node) to many
// nodes sharing one process, each still talking over real gRPC on
// loopback so the overlay code under test never knows it isn't
// distributed.
package registry

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"sync"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/node"
	"dhtresearch/internal/overlay/chord"
	"dhtresearch/internal/overlay/pastry"
	"dhtresearch/internal/transport"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"
)

// Kind selects which overlay a Network builds its nodes on.
type Kind string

const (
	Chord  Kind = "chord"
	Pastry Kind = "pastry"
)

// member bundles everything the registry needs to address and tear down
// one running node.
type member struct {
	node     *node.Node
	server   *transport.Server
	listener net.Listener
	stopOnce sync.Once
}

// Network owns a live cluster of in-process nodes. It is a value a caller
// constructs and holds, never a package-global (spec §9 design note): two
// Networks in the same test binary are fully independent.
type Network struct {
	mu    sync.Mutex
	nodes map[domain.ID]*member
	ports map[domain.ID]int
	opts  Options
	lgr   logger.Logger

	// positions is the evenly spaced id pool Pastry clusters draw from
	// when a member's id isn't explicitly given, mirroring the original
	// source's np.linspace(0, 1, 16) position assignment over this
	// spec's fixed 16-bit ring instead of a continuous [0,1) coordinate.
	positions []domain.ID
	nextPos   int
}

// Options configures the overlay parameters every built node shares.
type Options struct {
	Kind Kind

	ChordSuccessorListSize int
	ChordFingerTableSize   int

	LSH node.LSHConfig

	Logger logger.Logger
}

// evenlySpacedPositions returns n ids spread evenly across the ring, the
// Go-ring analogue of the original source's np.linspace(0, 1, 16).
func evenlySpacedPositions(n int) []domain.ID {
	if n <= 0 {
		return nil
	}
	span := uint32(1) << 16
	out := make([]domain.ID, n)
	for i := 0; i < n; i++ {
		out[i] = domain.ID((uint32(i) * span) / uint32(n))
	}
	return out
}

// New builds an empty Network ready for Build. poolSize bounds the
// evenly-spaced id pool handed out before falling back to uniform-random
// ids (spec §4.8: "evenly-spaced position pool with uniform-random
// fallback on exhaustion").
func New(opts Options, poolSize int) *Network {
	lgr := opts.Logger
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	if opts.ChordSuccessorListSize <= 0 {
		opts.ChordSuccessorListSize = chord.SuccessorListSize
	}
	if opts.ChordFingerTableSize <= 0 {
		opts.ChordFingerTableSize = chord.FingerTableSize
	}
	if opts.LSH == (node.LSHConfig{}) {
		opts.LSH = node.LSHConfig{Bands: 4, Rows: 5, DefaultTopN: 5}
	}
	return &Network{
		nodes:     make(map[domain.ID]*member),
		ports:     make(map[domain.ID]int),
		opts:      opts,
		lgr:       lgr,
		positions: evenlySpacedPositions(poolSize),
	}
}

// nextID returns the next pre-assigned position, falling back to a
// uniform-random id once the pool is exhausted.
func (nw *Network) nextID() domain.ID {
	nw.mu.Lock()
	defer nw.mu.Unlock()
	if nw.nextPos < len(nw.positions) {
		id := nw.positions[nw.nextPos]
		nw.nextPos++
		return id
	}
	return domain.ID(rand.Intn(1 << 16))
}

// Build sequentially creates and starts len(ids) nodes (or count random-id
// nodes when ids is nil), joins each through an already-live member, then
// ingests every record via a randomly chosen live node. Dataset ingestion
// itself stays out of scope (spec §5 non-goal): Build only ever receives
// an already-decoded []domain.Record, it never reads a CSV.
func (n *Network) Build(ctx context.Context, ids []string, count int, records []domain.Record) error {
	if len(ids) > 0 {
		for _, raw := range ids {
			id, err := domain.ParseID(raw)
			if err != nil {
				return fmt.Errorf("registry: invalid id %q: %w", raw, err)
			}
			if err := n.addNode(ctx, &id); err != nil {
				return err
			}
		}
	} else {
		for i := 0; i < count; i++ {
			if err := n.addNode(ctx, nil); err != nil {
				return err
			}
		}
	}

	for _, rec := range records {
		if err := n.insertRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// addNode starts one node bound to 127.0.0.1:0, attaches the configured
// overlay, and joins it through an already-running member (or initializes
// a fresh ring/network if this is the first node). The bootstrap member is
// whichever one map iteration yields first, not necessarily the earliest
// added.
func (n *Network) addNode(ctx context.Context, explicitID *domain.ID) error {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("registry: listen: %w", err)
	}
	addr := lis.Addr().String()

	var id domain.ID
	if explicitID != nil {
		id = *explicitID
	} else {
		id = n.nextID()
	}

	p := pool.New(n.lgr.Named("pool"))
	nd := node.New(id, addr, p, n.opts.LSH, n.lgr.Named("node"))

	var srv rpc.Server
	switch n.opts.Kind {
	case Pastry:
		o := pastry.New(nd, n.lgr.Named("pastry"))
		nd.Attach(o)
		srv = nd
	default:
		o := chord.New(nd, n.opts.ChordSuccessorListSize, n.opts.ChordFingerTableSize, n.lgr.Named("chord"))
		nd.Attach(o)
		srv = nd
	}

	s := transport.New(lis, srv, transport.Options{MaxMessageBytes: 1 << 20, MaxWorkers: 10}, n.lgr.Named("server"))
	go func() { _ = s.Start() }()

	var bootstrapAddr string
	n.mu.Lock()
	for _, m := range n.nodes {
		bootstrapAddr = m.node.Addr()
		break
	}
	first := bootstrapAddr == ""
	n.mu.Unlock()

	// The first node has no one to join: it starts the ring/network on
	// its own, mirroring ChordNetwork.node_join/PastryNetwork.node_join's
	// special case for an empty cluster.
	var joinErr error
	switch o := nd.Overlay.(type) {
	case *chord.Overlay:
		if first {
			o.InitSingleNode()
		} else {
			joinErr = o.Join(ctx, bootstrapAddr)
		}
	case *pastry.Overlay:
		if first {
			o.InitSingleNode()
		} else {
			joinErr = o.Join(ctx, bootstrapAddr)
		}
	}
	if joinErr != nil {
		s.Stop()
		_ = lis.Close()
		return fmt.Errorf("registry: join %s: %w", addr, joinErr)
	}

	n.mu.Lock()
	n.nodes[id] = &member{node: nd, server: s, listener: lis}
	n.ports[id] = lis.Addr().(*net.TCPAddr).Port
	n.mu.Unlock()

	n.lgr.Debug("node added", logger.F("id", id.String()), logger.F("addr", addr))
	return nil
}

// insertRecord picks a uniformly random live member and routes the insert
// through it, mirroring ChordNetwork.insert_key/PastryNetwork's
// random.choice dispatch.
func (n *Network) insertRecord(ctx context.Context, rec domain.Record) error {
	m, err := n.randomMember()
	if err != nil {
		return err
	}
	_, err = m.InsertKey(ctx, &rpc.InsertKeyRequest{
		Key:           rec.CountryKey.String(),
		Country:       rec.Country,
		Year:          rec.Point.Year,
		Rating:        rec.Point.Rating,
		Price:         rec.Point.Price,
		Review:        rec.Review,
		ApplyToBackup: true,
	})
	return err
}

func (n *Network) randomMember() (*node.Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.nodes) == 0 {
		return nil, fmt.Errorf("registry: network is empty")
	}
	pick := rand.Intn(len(n.nodes))
	i := 0
	for _, m := range n.nodes {
		if i == pick {
			return m.node, nil
		}
		i++
	}
	panic("unreachable")
}

// Len reports how many nodes are currently tracked.
func (n *Network) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.nodes)
}

// Node returns the node registered under id, if any.
func (n *Network) Node(id domain.ID) (*node.Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.nodes[id]
	if !ok {
		return nil, false
	}
	return m.node, true
}

// Leave gracefully removes a single node from the cluster: its overlay runs
// its normal departure handoff (Chord's restoration splice, Pastry's
// leaf-set notify + record handoff) before its server stops, so the rest of
// the network keeps whatever data it held (spec §8's graceful-leave case).
func (n *Network) Leave(ctx context.Context, id domain.ID) error {
	n.mu.Lock()
	m, ok := n.nodes[id]
	if ok {
		delete(n.nodes, id)
		delete(n.ports, id)
	}
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: leave: node %s not found", id)
	}

	switch o := m.node.Overlay.(type) {
	case *chord.Overlay:
		o.Leave(ctx)
	case *pastry.Overlay:
		_ = o.Leave(ctx)
	}
	m.stopOnce.Do(func() {
		m.server.Stop()
		_ = m.listener.Close()
	})
	n.lgr.Debug("node left", logger.F("id", id.String()))
	return nil
}

// LeaveUnexpected simulates a crash: the node's listener and server are torn
// down immediately, with no handoff RPC to its neighbors, exercising spec
// §8's unexpected-departure case (the neighbors only learn it's gone once a
// subsequent RPC to it fails, triggering the stabilizer's or Pastry's
// reactive repair rather than an orderly handoff).
func (n *Network) LeaveUnexpected(id domain.ID) error {
	n.mu.Lock()
	m, ok := n.nodes[id]
	if ok {
		delete(n.nodes, id)
		delete(n.ports, id)
	}
	n.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: leave_unexpected: node %s not found", id)
	}

	m.stopOnce.Do(func() {
		m.server.Stop()
		_ = m.listener.Close()
	})
	n.lgr.Debug("node left unexpectedly", logger.F("id", id.String()))
	return nil
}

// Shutdown gracefully leaves every member node and stops its server.
func (n *Network) Shutdown(ctx context.Context) {
	n.mu.Lock()
	members := make([]*member, 0, len(n.nodes))
	for _, m := range n.nodes {
		members = append(members, m)
	}
	n.mu.Unlock()

	for _, m := range members {
		switch o := m.node.Overlay.(type) {
		case *chord.Overlay:
			o.Leave(ctx)
		case *pastry.Overlay:
			_ = o.Leave(ctx)
		}
		m.stopOnce.Do(func() {
			m.server.Stop()
			_ = m.listener.Close()
		})
	}
}
