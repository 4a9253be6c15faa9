package domain

// NodeRef identifies a DHT participant by id and network address. Routing
// tables, leaf sets, and finger tables store NodeRef values (or bare IDs
// resolved through a registry) rather than live pointers, so that a node
// leaving the overlay never leaves a dangling reference (see DESIGN.md,
// "cyclic node graph").
type NodeRef struct {
	ID   ID
	Addr string
}
