// Package kdtree implements the per-node multidimensional index (spec §4.2):
// a static, rebuild-on-mutation KD-tree over the 3-D (year, rating, price)
// coordinate, carrying the free-text review and the record's country
// identity. It is grounded in original_source's
// Multidimensional_Data_Structures/kd_tree.py, generalized from a
// sklearn-backed tree to a from-scratch Go implementation since no
// equivalent KD-tree library appears anywhere in the example corpus (see
// DESIGN.md).
package kdtree

import (
	"sort"
	"sync"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
)

type entry struct {
	rec   domain.Record
	order int
}

type node struct {
	e           entry
	axis        int
	left, right *node
}

// Tree is an in-memory, node-owned KD-tree index. Callers are expected to
// serialize access externally (the owning node's mutex, per spec §5); Tree
// additionally guards its own state with an RWMutex so it can be used
// safely if ever shared outside that discipline.
type Tree struct {
	lgr       logger.Logger
	mu        sync.RWMutex
	root      *node
	records   []entry
	nextOrder int
}

// New returns an empty index.
func New(lgr logger.Logger) *Tree {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &Tree{lgr: lgr}
}

// Bound is a single-axis constraint used by RangeSearch; a nil pointer
// means "use the minimum/maximum value observed on that axis" (spec §4.2).
type Bound struct {
	Year   *int32
	Rating *float32
	Price  *float32
}

func (b Bound) axis(i int) *float64 {
	switch i {
	case 0:
		if b.Year == nil {
			return nil
		}
		v := float64(*b.Year)
		return &v
	case 1:
		if b.Rating == nil {
			return nil
		}
		v := float64(*b.Rating)
		return &v
	default:
		if b.Price == nil {
			return nil
		}
		v := float64(*b.Price)
		return &v
	}
}

// Criteria is an optional equality filter over any subset of
// {year, rating, price}, used by Update (spec §4.2). A nil field is not
// checked; a nil Criteria matches every record.
type Criteria struct {
	Year   *int32
	Rating *float32
	Price  *float32
}

func (c *Criteria) match(p domain.Point) bool {
	if c == nil {
		return true
	}
	if c.Year != nil && *c.Year != p.Year {
		return false
	}
	if c.Rating != nil && *c.Rating != p.Rating {
		return false
	}
	if c.Price != nil && *c.Price != p.Price {
		return false
	}
	return true
}

// Fields describes an update: either a full Point replacement, or
// per-attribute overrides, and/or a new Review (spec §4.2).
type Fields struct {
	Point  *domain.Point
	Year   *int32
	Rating *float32
	Price  *float32
	Review *string
}

func (f Fields) geometryChanges() bool {
	return f.Point != nil || f.Year != nil || f.Rating != nil || f.Price != nil
}

func (f Fields) apply(rec *domain.Record) {
	if f.Point != nil {
		rec.Point = *f.Point
	} else {
		if f.Year != nil {
			rec.Point.Year = *f.Year
		}
		if f.Rating != nil {
			rec.Point.Rating = *f.Rating
		}
		if f.Price != nil {
			rec.Point.Price = *f.Price
		}
	}
	if f.Review != nil {
		rec.Review = *f.Review
	}
}

// Add appends a new record and rebalances the tree. Any subsequent
// RangeSearch whose bounds contain the new point returns it (invariant I1).
func (t *Tree) Add(p domain.Point, review, country string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, entry{
		rec: domain.Record{
			CountryKey: domain.HashKey(country),
			Country:    country,
			Point:      p,
			Review:     review,
		},
		order: t.nextOrder,
	})
	t.nextOrder++
	t.rebuildLocked()
	t.lgr.Debug("kdtree: record added", logger.F("country_key", domain.HashKey(country).String()))
}

// Delete removes all records with the given country key. It fails silently
// (returns 0) when absent.
func (t *Tree) Delete(countryKey domain.ID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.records[:0:0]
	removed := 0
	for _, e := range t.records {
		if e.rec.CountryKey == countryKey {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	t.records = kept
	if removed > 0 {
		t.rebuildLocked()
	}
	t.lgr.Debug("kdtree: delete", logger.F("country_key", countryKey.String()), logger.F("removed", removed))
	return removed
}

// Update applies fields to every record whose country key matches and which
// satisfies criteria (nil criteria matches all). Returns the number of
// matched records; a criteria that matches nothing applies zero updates
// (spec §9, resolving the source's "update-on-no-match" discrepancy).
func (t *Tree) Update(countryKey domain.ID, criteria *Criteria, fields Fields) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	applied := 0
	rebuild := false
	for i := range t.records {
		rec := &t.records[i].rec
		if rec.CountryKey != countryKey || !criteria.match(rec.Point) {
			continue
		}
		fields.apply(rec)
		applied++
		if fields.geometryChanges() {
			rebuild = true
		}
	}
	if rebuild {
		t.rebuildLocked()
	}
	t.lgr.Debug("kdtree: update", logger.F("country_key", countryKey.String()), logger.F("applied", applied))
	return applied
}

// RangeSearch returns every record whose country key matches and whose
// point lies within [lower, upper] (absent bounds default to the observed
// min/max on that axis), in stable insertion order.
func (t *Tree) RangeSearch(countryKey domain.ID, lower, upper Bound) (points []domain.Point, reviews []string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.records) == 0 {
		return nil, nil
	}

	lo, hi := t.observedBoundsLocked()
	for i := 0; i < 3; i++ {
		if v := lower.axis(i); v != nil {
			lo[i] = *v
		}
		if v := upper.axis(i); v != nil {
			hi[i] = *v
		}
	}

	var matches []entry
	t.searchLocked(t.root, lo, hi, countryKey, &matches)
	sort.Slice(matches, func(i, j int) bool { return matches[i].order < matches[j].order })

	points = make([]domain.Point, 0, len(matches))
	reviews = make([]string, 0, len(matches))
	for _, m := range matches {
		points = append(points, m.rec.Point)
		reviews = append(reviews, m.rec.Review)
	}
	return points, reviews
}

func (t *Tree) searchLocked(n *node, lo, hi [3]float64, countryKey domain.ID, out *[]entry) {
	if n == nil {
		return
	}
	within := true
	for a := 0; a < 3; a++ {
		v := n.e.rec.Point.Axis(a)
		if v < lo[a] || v > hi[a] {
			within = false
			break
		}
	}
	if within && n.e.rec.CountryKey == countryKey {
		*out = append(*out, n.e)
	}
	axisVal := n.e.rec.Point.Axis(n.axis)
	if lo[n.axis] <= axisVal {
		t.searchLocked(n.left, lo, hi, countryKey, out)
	}
	if hi[n.axis] >= axisVal {
		t.searchLocked(n.right, lo, hi, countryKey, out)
	}
}

func (t *Tree) observedBoundsLocked() (lo, hi [3]float64) {
	for a := 0; a < 3; a++ {
		lo[a] = t.records[0].rec.Point.Axis(a)
		hi[a] = lo[a]
	}
	for _, e := range t.records[1:] {
		for a := 0; a < 3; a++ {
			v := e.rec.Point.Axis(a)
			if v < lo[a] {
				lo[a] = v
			}
			if v > hi[a] {
				hi[a] = v
			}
		}
	}
	return lo, hi
}

// rebuildLocked reconstructs a balanced tree from t.records. Invariant I3:
// called after every mutation that changes membership or geometry.
func (t *Tree) rebuildLocked() {
	items := make([]entry, len(t.records))
	copy(items, t.records)
	t.root = build(items, 0)
}

func build(items []entry, depth int) *node {
	if len(items) == 0 {
		return nil
	}
	axis := depth % 3
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].rec.Point.Axis(axis) < items[j].rec.Point.Axis(axis)
	})
	mid := len(items) / 2
	n := &node{e: items[mid], axis: axis}
	n.left = build(items[:mid], depth+1)
	n.right = build(items[mid+1:], depth+1)
	return n
}

// Snapshot returns a copy of every record currently indexed, in insertion
// order. Used to replicate the primary tree to a backup (spec §4.5/§4.6).
func (t *Tree) Snapshot() []domain.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Record, len(t.records))
	for i, e := range t.records {
		out[i] = e.rec
	}
	return out
}

// Load replaces the tree's contents wholesale with recs, preserving the
// given order as the new insertion order. Used when a node adopts a
// backup snapshot (Chord's SetBackup).
func (t *Tree) Load(recs []domain.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = make([]entry, len(recs))
	for i, r := range recs {
		t.records[i] = entry{rec: r, order: i}
	}
	t.nextOrder = len(recs)
	t.rebuildLocked()
}

// CountryKeys returns the distinct country keys currently indexed.
// Used to check ownership invariant I4.
func (t *Tree) CountryKeys() []domain.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[domain.ID]struct{})
	var keys []domain.ID
	for _, e := range t.records {
		if _, ok := seen[e.rec.CountryKey]; !ok {
			seen[e.rec.CountryKey] = struct{}{}
			keys = append(keys, e.rec.CountryKey)
		}
	}
	return keys
}

// Len reports how many records are currently indexed.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
