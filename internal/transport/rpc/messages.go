package rpc

import "dhtresearch/internal/domain"

// Status mirrors spec §6's tagged response: every RPC answers success or
// failure, carrying the hop list the request accumulated along the way.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Node is the wire form of domain.NodeRef.
type Node struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

func NodeFromDomain(n domain.NodeRef) Node { return Node{ID: n.ID.String(), Addr: n.Addr} }

func (n Node) ToDomain() (domain.NodeRef, error) {
	id, err := domain.ParseID(n.ID)
	if err != nil {
		return domain.NodeRef{}, err
	}
	return domain.NodeRef{ID: id, Addr: n.Addr}, nil
}

// Record is the wire form of domain.Record.
type Record struct {
	CountryKey string  `json:"country_key"`
	Country    string  `json:"country"`
	Year       int32   `json:"year"`
	Rating     float32 `json:"rating"`
	Price      float32 `json:"price"`
	Review     string  `json:"review"`
}

func RecordFromDomain(r domain.Record) Record {
	return Record{
		CountryKey: r.CountryKey.String(),
		Country:    r.Country,
		Year:       r.Point.Year,
		Rating:     r.Point.Rating,
		Price:      r.Point.Price,
		Review:     r.Review,
	}
}

func (r Record) ToDomain() (domain.Record, error) {
	key, err := domain.ParseID(r.CountryKey)
	if err != nil {
		return domain.Record{}, err
	}
	return domain.Record{
		CountryKey: key,
		Country:    r.Country,
		Point:      domain.Point{Year: r.Year, Rating: r.Rating, Price: r.Price},
		Review:     r.Review,
	}, nil
}

// ---- Chord control plane (spec §6) ----

type FindSuccessorRequest struct {
	Key  string   `json:"key"`
	Hops []string `json:"hops"`
}

type FindSuccessorResponse struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Owner   Node     `json:"owner"`
	Hops    []string `json:"hops"`
}

type SetSuccessorRequest struct {
	Successor Node `json:"successor"`
}

type SetPredecessorRequest struct {
	Predecessor Node `json:"predecessor"`
}

type GetSuccessorResponse struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	Successor Node   `json:"successor"`
}

// GetSuccessorListResponse reports every live entry of this node's
// successor list, used by the stabilizer's fix_successor_list step.
type GetSuccessorListResponse struct {
	Status     Status `json:"status"`
	Successors []Node `json:"successors"`
}

type GetStatusResponse struct {
	Status      Status `json:"status"`
	Self        Node   `json:"self"`
	Predecessor *Node  `json:"predecessor,omitempty"`
	Running     bool   `json:"running"`
}

// DeleteSuccessorKeysRequest asks a node to drop the listed keys from its
// backup tree.
type DeleteSuccessorKeysRequest struct {
	Keys []string `json:"keys"`
}

// RestorationRequest carries a gracefully leaving node's primary-tree
// records to its successor, merging them into the receiver's primary tree.
type RestorationRequest struct {
	SenderID string   `json:"sender_id"`
	Records  []Record `json:"records"`
}

type SetBackupRequest struct {
	Records []Record `json:"records"`
}

// ---- Pastry control plane (spec §6) ----

// FindOwnerRequest/Response generalizes FIND_SUCCESSOR's shape to Pastry's
// find_owner routing primitive (both overlays need a recursive "who owns
// this key" RPC; Pastry's is not separately named in spec §6, so this is
// grounded directly on FIND_SUCCESSOR's fields).
type FindOwnerRequest struct {
	Key  string   `json:"key"`
	Hops []string `json:"hops"`
}

type FindOwnerResponse struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Owner   Node     `json:"owner"`
	Hops    []string `json:"hops"`
}

type NodeJoinRequest struct {
	JoiningNode Node     `json:"joining_node"`
	Hops        []string `json:"hops"`
}

// RoutingRowEntry is one hop's contribution to a NodeJoinResponse: its
// routing-table row at its own common-prefix-length with the joiner.
type RoutingRowEntry struct {
	RowIndex int    `json:"row_index"`
	Row      []Node `json:"row"`
}

// NodeJoinResponse returns the contribution of every node on the join path:
// one RoutingRowEntry per hop, plus (from the terminal node only) a
// leaf-set donation.
type NodeJoinResponse struct {
	Status     Status            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Rows       []RoutingRowEntry `json:"rows"`
	LeafSet    []Node            `json:"leaf_set,omitempty"`
	IsTerminal bool              `json:"is_terminal"`
	Hops       []string          `json:"hops"`
}

type NodeLeaveRequest struct {
	LeavingNode    Node     `json:"leaving_node"`
	AvailableNodes []Node   `json:"available_nodes"`
	Hops           []string `json:"hops"`
}

type DistanceRequest struct {
	NodePosition float64 `json:"node_position"`
}

type DistanceResponse struct {
	Status           Status  `json:"status"`
	Distance         float64 `json:"distance"`
	NeighborhoodSet  []Node  `json:"neighborhood_set"`
}

// UpdatePresenceRequest broadcasts a newly joined (or newly learned) node so
// recipients can fill empty routing-table cells, leaf set, or neighborhood
// set slots (spec §4.7 step 4).
type UpdatePresenceRequest struct {
	Node Node `json:"node"`
}

// GetKeysRequest/Response lets a joiner pull records it now owns from a
// neighbor whose tree predates the join (spec §6 GET_KEYS).
type GetKeysRequest struct {
	NewOwner Node `json:"new_owner"`
}

type GetKeysResponse struct {
	Status  Status   `json:"status"`
	Records []Record `json:"records"`
}

// ---- Data plane (shared by both overlays, spec §4.5/§6) ----

type InsertKeyRequest struct {
	Key           string   `json:"key"`
	Country       string   `json:"country"`
	Year          int32    `json:"year"`
	Rating        float32  `json:"rating"`
	Price         float32  `json:"price"`
	Review        string   `json:"review"`
	ApplyToBackup bool     `json:"apply_to_backup"`
	Hops          []string `json:"hops"`
}

type DeleteKeyRequest struct {
	Key           string   `json:"key"`
	ApplyToBackup bool     `json:"apply_to_backup"`
	Hops          []string `json:"hops"`
}

// UpdateCriteria mirrors kdtree.Criteria on the wire.
type UpdateCriteria struct {
	Year   *int32   `json:"year,omitempty"`
	Rating *float32 `json:"rating,omitempty"`
	Price  *float32 `json:"price,omitempty"`
}

// UpdateFields mirrors kdtree.Fields on the wire.
type UpdateFields struct {
	Year   *int32   `json:"year,omitempty"`
	Rating *float32 `json:"rating,omitempty"`
	Price  *float32 `json:"price,omitempty"`
	Review *string  `json:"review,omitempty"`
}

type UpdateKeyRequest struct {
	Key           string          `json:"key"`
	Criteria      *UpdateCriteria `json:"criteria,omitempty"`
	Fields        UpdateFields    `json:"fields"`
	ApplyToBackup bool            `json:"apply_to_backup"`
	Hops          []string        `json:"hops"`
}

// MutationResponse is the common response shape for INSERT_KEY, DELETE_KEY
// and UPDATE_KEY.
type MutationResponse struct {
	Status  Status   `json:"status"`
	Message string   `json:"message,omitempty"`
	Applied int       `json:"applied"`
	Hops    []string `json:"hops"`
}

type Bound struct {
	Year   *int32   `json:"year,omitempty"`
	Rating *float32 `json:"rating,omitempty"`
	Price  *float32 `json:"price,omitempty"`
}

type LookupRequest struct {
	Key         string   `json:"key"`
	LowerBounds Bound    `json:"lower_bounds"`
	UpperBounds Bound    `json:"upper_bounds"`
	N           int      `json:"n"`
	Hops        []string `json:"hops"`
}

type LookupResponse struct {
	Status          Status    `json:"status"`
	Message         string    `json:"message,omitempty"`
	Points          []Point   `json:"points"`
	Reviews         []string  `json:"reviews"`
	SimilarReviews  []string  `json:"similar_reviews"`
	Hops            []string  `json:"hops"`
}

type Point struct {
	Year   int32   `json:"year"`
	Rating float32 `json:"rating"`
	Price  float32 `json:"price"`
}

type PingResponse struct {
	Status Status `json:"status"`
}
