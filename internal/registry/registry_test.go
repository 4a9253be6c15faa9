package registry

import (
	"context"
	"testing"
	"time"

	"dhtresearch/internal/domain"
	"dhtresearch/internal/transport/rpc"

	"github.com/stretchr/testify/require"
)

func testRecords() []domain.Record {
	return []domain.Record{
		{CountryKey: domain.HashKey("brazil"), Country: "brazil", Point: domain.Point{Year: 2020, Rating: 4.2, Price: 12.5}, Review: "bright and fruity"},
		{CountryKey: domain.HashKey("ethiopia"), Country: "ethiopia", Point: domain.Point{Year: 2019, Rating: 4.6, Price: 15.0}, Review: "floral, winey"},
		{CountryKey: domain.HashKey("colombia"), Country: "colombia", Point: domain.Point{Year: 2021, Rating: 4.0, Price: 11.0}, Review: "balanced, nutty"},
	}
}

func TestBuildChordJoinsAndIngests(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	err := nw.Build(ctx, nil, 4, testRecords())
	require.NoError(t, err)
	require.Equal(t, 4, nw.Len())
}

func TestBuildPastryAssignsEvenlySpacedIDsThenFallsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Pastry}, 2)
	defer nw.Shutdown(context.Background())

	require.NoError(t, nw.Build(ctx, nil, 2, nil))
	require.Equal(t, 2, nw.Len())

	// Pool exhausted: a third node still joins, drawing a random id.
	require.NoError(t, nw.Build(ctx, nil, 1, nil))
	require.Equal(t, 3, nw.Len())
}

func TestBuildWithExplicitIDs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	require.NoError(t, nw.Build(ctx, []string{"1000", "2000", "3000"}, 0, testRecords()))
	require.Equal(t, 3, nw.Len())

	id, err := domain.ParseID("1000")
	require.NoError(t, err)
	_, ok := nw.Node(id)
	require.True(t, ok)
}

func TestBuildRejectsInvalidID(t *testing.T) {
	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	err := nw.Build(context.Background(), []string{"not-hex"}, 0, nil)
	require.Error(t, err)
	require.Equal(t, 0, nw.Len())
}

// TestJoinTransparencyMigratesOwnedKeys exercises spec §4.6's join-transparency
// requirement directly: a node joining an existing ring must make its share
// of the key space visible to lookups immediately, not after the next
// stabilize tick. A single node ingests records, a second node joins owning
// exactly one record's key, and both the key's physical location and a
// lookup routed through the original node must reflect the new owner right
// away.
func TestJoinTransparencyMigratesOwnedKeys(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	require.NoError(t, nw.Build(ctx, []string{"0000"}, 0, nil))
	records := testRecords()
	require.NoError(t, nw.Build(ctx, nil, 0, records))

	// The joining node's id sits one tick above the moved record's key so
	// the key falls strictly inside the joiner's inclusive (pred, id]
	// ownership interval and migrates to it.
	moved := records[0]
	newID := moved.CountryKey + 1
	require.NoError(t, nw.Build(ctx, []string{newID.String()}, 0, nil))
	require.Equal(t, 2, nw.Len())

	joiner, ok := nw.Node(newID)
	require.True(t, ok)
	var joinerHasRecord bool
	for _, rec := range joiner.Tree().Snapshot() {
		if rec.CountryKey == moved.CountryKey {
			joinerHasRecord = true
		}
	}
	require.True(t, joinerHasRecord, "joining node should own the key that now falls in its interval")

	original, ok := nw.Node(domain.ID(0))
	require.True(t, ok)
	for _, rec := range original.Tree().Snapshot() {
		require.NotEqual(t, moved.CountryKey, rec.CountryKey, "original node should have handed the key off")
	}

	resp, err := original.Lookup(ctx, &rpc.LookupRequest{Key: moved.CountryKey.String()})
	require.NoError(t, err)
	require.Contains(t, resp.Reviews, moved.Review, "lookup via the old owner must resolve through the new owner without a stale route")
}

// TestLeaveHandsOffPrimaryToSurvivor exercises spec §8's graceful-leave
// scenario: a two-node ring, one node leaves cleanly, and the survivor must
// end up holding every record the departed node held, via the restoration
// handoff rather than losing data until the next maintenance tick.
func TestLeaveHandsOffPrimaryToSurvivor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	require.NoError(t, nw.Build(ctx, []string{"0000", "8000"}, 0, nil))
	records := testRecords()
	require.NoError(t, nw.Build(ctx, nil, 0, records))

	leavingID, err := domain.ParseID("8000")
	require.NoError(t, err)
	require.NoError(t, nw.Leave(ctx, leavingID))
	require.Equal(t, 1, nw.Len())

	survivorID, err := domain.ParseID("0000")
	require.NoError(t, err)
	survivor, ok := nw.Node(survivorID)
	require.True(t, ok)

	got := make(map[domain.ID]bool)
	for _, rec := range survivor.Tree().Snapshot() {
		got[rec.CountryKey] = true
	}
	for _, rec := range records {
		require.True(t, got[rec.CountryKey], "survivor should hold every record the departed node handed off")
	}
}

// TestLeaveUnexpectedRemovesNodeWithoutBlocking exercises spec §8's
// unexpected-departure case: tearing a node down with no handoff must not
// hang or error the network, and the survivor keeps serving.
func TestLeaveUnexpectedRemovesNodeWithoutBlocking(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	nw := New(Options{Kind: Chord}, 0)
	defer nw.Shutdown(context.Background())

	require.NoError(t, nw.Build(ctx, []string{"0000", "8000"}, 0, nil))

	leavingID, err := domain.ParseID("8000")
	require.NoError(t, err)
	require.NoError(t, nw.LeaveUnexpected(leavingID))
	require.Equal(t, 1, nw.Len())

	survivorID, err := domain.ParseID("0000")
	require.NoError(t, err)
	survivor, ok := nw.Node(survivorID)
	require.True(t, ok)
	_, err = survivor.Ping(ctx, &rpc.Ack{})
	require.NoError(t, err)

	require.Error(t, nw.Leave(ctx, leavingID), "a second leave of an already-gone node should report not found")
}

func TestEvenlySpacedPositionsCoversRing(t *testing.T) {
	ids := evenlySpacedPositions(4)
	require.Len(t, ids, 4)
	require.Equal(t, domain.ID(0), ids[0])
	for i := 1; i < len(ids); i++ {
		require.Greater(t, ids[i], ids[i-1])
	}
}
