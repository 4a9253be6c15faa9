// Package node holds the per-node state and data-plane handlers shared by
// both overlays (spec §4.5/C5): the KD-tree pair, the mutex discipline
// that allows holding it across exactly one replication RPC, and the
// overlay-agnostic dispatch that makes Node satisfy rpc.Server once an
// Overlay is attached. Structurally grounded in the teacher's
// internal/node/node.go + internal/node/operation.go, generalized from
// Koorde's imaginary-node routing to delegate routing entirely to the
// attached Overlay.
package node

import (
	"context"
	"sync"

	"dhtresearch/internal/ctxutil"
	"dhtresearch/internal/domain"
	"dhtresearch/internal/kdtree"
	"dhtresearch/internal/lsh"
	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LSHConfig controls the similarity pass that Lookup runs over its
// range-search results (spec §4.3).
type LSHConfig struct {
	Bands, Rows, DefaultTopN int
}

// Node is the common per-node state: identity, the primary and backup
// KD-trees, and the machinery data-plane handlers need (a client pool to
// forward/replicate, a logger, and the attached overlay).
type Node struct {
	Overlay // promotes every overlay-specific rpc.Server method

	id     domain.ID
	addr   string
	tree   *kdtree.Tree
	backup *kdtree.Tree
	lsh    LSHConfig

	mu      sync.Mutex
	running bool

	pool *pool.Pool
	lgr  logger.Logger
}

// New builds a Node. The overlay is attached afterward via Attach, since
// the overlay implementations need a back-reference to the node's trees
// and client pool that would otherwise make New/New circular.
func New(id domain.ID, addr string, p *pool.Pool, lshCfg LSHConfig, lgr logger.Logger) *Node {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &Node{
		id:      id,
		addr:    addr,
		tree:    kdtree.New(lgr.Named("kdtree")),
		backup:  kdtree.New(lgr.Named("backup")),
		lsh:     lshCfg,
		running: true,
		pool:    p,
		lgr:     lgr,
	}
}

// Attach wires the overlay strategy in after both node and overlay are
// constructed.
func (n *Node) Attach(o Overlay) { n.Overlay = o }

func (n *Node) ID() domain.ID         { return n.id }
func (n *Node) Addr() string          { return n.addr }
func (n *Node) Tree() *kdtree.Tree     { return n.tree }
func (n *Node) Backup() *kdtree.Tree   { return n.backup }
func (n *Node) Logger() logger.Logger  { return n.lgr }
func (n *Node) Pool() *pool.Pool       { return n.pool }

// IsRunning reports whether the node still accepts new work (spec §5).
func (n *Node) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Stop marks the node not-running; in-flight replies may still complete,
// but the stabilizer and new RPC handling should treat it as dead.
func (n *Node) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()
}

// checkRunning rejects a handler call when the node has stopped accepting
// work or the caller's context is already canceled/expired, surfacing the
// latter as the gRPC status ctxutil.CheckContext maps it to.
func (n *Node) checkRunning(ctx context.Context) error {
	if err := ctxutil.CheckContext(ctx); err != nil {
		return err
	}
	if !n.IsRunning() {
		return status.Error(codes.Unavailable, "node is not running")
	}
	return nil
}

// ---- data-plane handlers (spec §4.5) ----

func (n *Node) InsertKey(ctx context.Context, req *rpc.InsertKeyRequest) (*rpc.MutationResponse, error) {
	if err := n.checkRunning(ctx); err != nil {
		return nil, err
	}
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}

	if !req.ApplyToBackup {
		n.mu.Lock()
		n.backup.Add(domain.Point{Year: req.Year, Rating: req.Rating, Price: req.Price}, req.Review, req.Country)
		n.mu.Unlock()
		return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: 1, Hops: req.Hops}, nil
	}

	owner, hops, err := n.Overlay.Owner(ctx, key, req.Hops)
	if err != nil {
		return nil, err
	}
	if owner.ID != n.id {
		c, err := n.pool.Client(owner.Addr)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "dial owner %s: %v", owner.Addr, err)
		}
		fwd := *req
		fwd.Hops = hops
		return c.InsertKey(ctx, &fwd)
	}

	n.mu.Lock()
	n.tree.Add(domain.Point{Year: req.Year, Rating: req.Rating, Price: req.Price}, req.Review, req.Country)
	n.replicate(ctx, hops, func(c *rpc.Client, replHops []string) {
		repl := *req
		repl.ApplyToBackup = false
		repl.Hops = replHops
		if _, err := c.InsertKey(ctx, &repl); err != nil {
			n.lgr.Warn("replication insert failed", logger.F("error", err.Error()))
		}
	})
	n.mu.Unlock()

	n.lgr.Debug("insert applied", logger.F("key", key.String()))
	return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: 1, Hops: hops}, nil
}

func (n *Node) DeleteKey(ctx context.Context, req *rpc.DeleteKeyRequest) (*rpc.MutationResponse, error) {
	if err := n.checkRunning(ctx); err != nil {
		return nil, err
	}
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}

	if !req.ApplyToBackup {
		n.mu.Lock()
		removed := n.backup.Delete(key)
		n.mu.Unlock()
		return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: removed, Hops: req.Hops}, nil
	}

	owner, hops, err := n.Overlay.Owner(ctx, key, req.Hops)
	if err != nil {
		return nil, err
	}
	if owner.ID != n.id {
		c, err := n.pool.Client(owner.Addr)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "dial owner %s: %v", owner.Addr, err)
		}
		fwd := *req
		fwd.Hops = hops
		return c.DeleteKey(ctx, &fwd)
	}

	n.mu.Lock()
	removed := n.tree.Delete(key)
	n.replicate(ctx, hops, func(c *rpc.Client, replHops []string) {
		repl := *req
		repl.ApplyToBackup = false
		repl.Hops = replHops
		if _, err := c.DeleteKey(ctx, &repl); err != nil {
			n.lgr.Warn("replication delete failed", logger.F("error", err.Error()))
		}
	})
	n.mu.Unlock()

	if removed == 0 {
		return &rpc.MutationResponse{Status: rpc.StatusFailure, Applied: 0, Hops: hops},
			status.Error(codes.NotFound, domain.ErrNotFound.Error())
	}
	return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: removed, Hops: hops}, nil
}

func (n *Node) UpdateKey(ctx context.Context, req *rpc.UpdateKeyRequest) (*rpc.MutationResponse, error) {
	if err := n.checkRunning(ctx); err != nil {
		return nil, err
	}
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}
	criteria := wireCriteria(req.Criteria)
	fields := wireFields(req.Fields)

	if !req.ApplyToBackup {
		n.mu.Lock()
		applied := n.backup.Update(key, criteria, fields)
		n.mu.Unlock()
		return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: applied, Hops: req.Hops}, nil
	}

	owner, hops, err := n.Overlay.Owner(ctx, key, req.Hops)
	if err != nil {
		return nil, err
	}
	if owner.ID != n.id {
		c, err := n.pool.Client(owner.Addr)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "dial owner %s: %v", owner.Addr, err)
		}
		fwd := *req
		fwd.Hops = hops
		return c.UpdateKey(ctx, &fwd)
	}

	n.mu.Lock()
	applied := n.tree.Update(key, criteria, fields)
	n.replicate(ctx, hops, func(c *rpc.Client, replHops []string) {
		repl := *req
		repl.ApplyToBackup = false
		repl.Hops = replHops
		if _, err := c.UpdateKey(ctx, &repl); err != nil {
			n.lgr.Warn("replication update failed", logger.F("error", err.Error()))
		}
	})
	n.mu.Unlock()

	return &rpc.MutationResponse{Status: rpc.StatusSuccess, Applied: applied, Hops: hops}, nil
}

func (n *Node) Lookup(ctx context.Context, req *rpc.LookupRequest) (*rpc.LookupResponse, error) {
	if err := n.checkRunning(ctx); err != nil {
		return nil, err
	}
	key, err := domain.ParseID(req.Key)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid key")
	}

	owner, hops, err := n.Overlay.Owner(ctx, key, req.Hops)
	if err != nil {
		return nil, err
	}
	if owner.ID != n.id {
		c, err := n.pool.Client(owner.Addr)
		if err != nil {
			return nil, status.Errorf(codes.Unavailable, "dial owner %s: %v", owner.Addr, err)
		}
		fwd := *req
		fwd.Hops = hops
		return c.Lookup(ctx, &fwd)
	}

	lower := kdtree.Bound{Year: req.LowerBounds.Year, Rating: req.LowerBounds.Rating, Price: req.LowerBounds.Price}
	upper := kdtree.Bound{Year: req.UpperBounds.Year, Rating: req.UpperBounds.Rating, Price: req.UpperBounds.Price}
	points, reviews := n.tree.RangeSearch(key, lower, upper)

	topN := req.N
	if topN <= 0 {
		topN = n.lsh.DefaultTopN
	}
	var similar []string
	if len(reviews) >= 2 {
		idx := lsh.New(reviews, n.lsh.Bands, n.lsh.Rows)
		for _, i := range idx.SimilarDocuments(topN) {
			similar = append(similar, reviews[i])
		}
	}

	wirePoints := make([]rpc.Point, len(points))
	for i, p := range points {
		wirePoints[i] = rpc.Point{Year: p.Year, Rating: p.Rating, Price: p.Price}
	}
	return &rpc.LookupResponse{
		Status:         rpc.StatusSuccess,
		Points:         wirePoints,
		Reviews:        reviews,
		SimilarReviews: similar,
		Hops:           hops,
	}, nil
}

func (n *Node) Ping(_ context.Context, _ *rpc.Ack) (*rpc.PingResponse, error) {
	if !n.IsRunning() {
		return nil, status.Error(codes.Unavailable, "node is not running")
	}
	return &rpc.PingResponse{Status: rpc.StatusSuccess}, nil
}

// replicate invokes fn with a client to the overlay's replication target,
// if one exists, appending the target's id to hops first. Callers hold n.mu while
// calling this — the one mutex-held-across-RPC exception spec §5 allows,
// so the primary write and its mirrored backup write apply in order.
func (n *Node) replicate(_ context.Context, hops []string, fn func(c *rpc.Client, hops []string)) {
	target, ok := n.Overlay.ReplicationTarget()
	if !ok {
		return
	}
	c, err := n.pool.Client(target.Addr)
	if err != nil {
		n.lgr.Warn("replication target unreachable", logger.F("addr", target.Addr), logger.F("error", err.Error()))
		return
	}
	fn(c, append(append([]string{}, hops...), target.ID.String()))
}

func wireCriteria(c *rpc.UpdateCriteria) *kdtree.Criteria {
	if c == nil {
		return nil
	}
	return &kdtree.Criteria{Year: c.Year, Rating: c.Rating, Price: c.Price}
}

func wireFields(f rpc.UpdateFields) kdtree.Fields {
	return kdtree.Fields{Year: f.Year, Rating: f.Rating, Price: f.Price, Review: f.Review}
}
