package domain

import "errors"

// Error kinds abstracted per spec §7. NotFound/NotOwner/Unreachable/Conflict
// map directly to gRPC status codes at the transport boundary; Invariant is
// logged and left for the next maintenance tick to repair.
var (
	ErrNotFound    = errors.New("not found")
	ErrNotOwner    = errors.New("not owner")
	ErrUnreachable = errors.New("unreachable")
	ErrConflict    = errors.New("conflict")
	ErrInvariant   = errors.New("invariant violation")
)

// Point is the 3-D KD-tree coordinate of a record.
type Point struct {
	Year   int32
	Rating float32
	Price  float32
}

// Axis returns the value of the point along dimension i (0=Year, 1=Rating,
// 2=Price), used by the KD-tree's axis-cycling split.
func (p Point) Axis(i int) float64 {
	switch i % 3 {
	case 0:
		return float64(p.Year)
	case 1:
		return float64(p.Rating)
	default:
		return float64(p.Price)
	}
}

// Record is a coffee review: an immutable identity (CountryKey, Country)
// plus a mutable Point/Review payload. Many records may share a
// CountryKey (spec §3).
type Record struct {
	CountryKey ID
	Country    string
	Point      Point
	Review     string
}
