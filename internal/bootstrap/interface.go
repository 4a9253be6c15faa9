// Package bootstrap resolves and registers the peer addresses a node uses
// to join an existing ring, adapted from the teacher's internal/bootstrap:
// a static peer list for local/dev clusters, and a Route53 SRV-record
// directory for anything resembling a real deployment.
package bootstrap

import (
	"context"

	"dhtresearch/internal/domain"
)

// Bootstrap discovers peer addresses to join through, and optionally
// registers/deregisters this node's own presence (Route53 needs both;
// a static peer list needs neither).
type Bootstrap interface {
	Discover(ctx context.Context) ([]string, error)
	Register(ctx context.Context, node domain.NodeRef) error
	Deregister(ctx context.Context, node domain.NodeRef) error
}
