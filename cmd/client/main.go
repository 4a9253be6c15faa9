// Command client is a non-interactive CLI exercising the four
// caller-facing data-plane operations of spec §6 (insert/delete/update/
// range+similarity lookup) against any live node. Node join and graceful
// leave are node lifecycle actions driven by cmd/node itself (startup and
// shutdown), not something an external client triggers over RPC — see
// DESIGN.md. Adapted from the teacher's cmd/client/main.go: same
// flag-driven single-shot shape, minus the interactive liner REPL (the
// launcher/menu Non-goal) and the generated dhtv1 stub, talking straight
// to internal/transport/{pool,rpc} instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"dhtresearch/internal/logger"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"

	"google.golang.org/grpc/status"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address of any live DHT node")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	p := pool.New(&logger.NopLogger{})
	defer p.CloseAll()
	c, err := p.Client(*addr)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd := args[0]; cmd {
	case "insert":
		runInsert(ctx, c, args[1:])
	case "delete":
		runDelete(ctx, c, args[1:])
	case "update":
		runUpdate(ctx, c, args[1:])
	case "lookup":
		runLookup(ctx, c, args[1:])
	case "ping":
		runPing(ctx, c)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: client -addr host:port <command> [args]

commands:
  insert <key> <country> <year> <rating> <price> <review>
  delete <key>
  update <key> [--year=N] [--rating=N] [--price=N] [--review=S] [--match-year=N] [--match-rating=N] [--match-price=N]
  lookup <key> [--lower-year=N] [--upper-year=N] [--lower-rating=N] [--upper-rating=N] [--lower-price=N] [--upper-price=N] [--n=N]
  ping`)
}

func runInsert(ctx context.Context, c *rpc.Client, args []string) {
	if len(args) < 6 {
		fmt.Fprintln(os.Stderr, "usage: insert <key> <country> <year> <rating> <price> <review>")
		os.Exit(2)
	}
	year := mustInt32(args[2])
	rating := mustFloat32(args[3])
	price := mustFloat32(args[4])

	resp, err := c.InsertKey(ctx, &rpc.InsertKeyRequest{
		Key:           args[0],
		Country:       args[1],
		Year:          year,
		Rating:        rating,
		Price:         price,
		Review:        args[5],
		ApplyToBackup: true,
	})
	report("insert", resp, err)
}

func runDelete(ctx context.Context, c *rpc.Client, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: delete <key>")
		os.Exit(2)
	}
	resp, err := c.DeleteKey(ctx, &rpc.DeleteKeyRequest{Key: args[0], ApplyToBackup: true})
	report("delete", resp, err)
}

func runUpdate(ctx context.Context, c *rpc.Client, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: update <key> [--field=value ...]")
		os.Exit(2)
	}
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	year := fs.String("year", "", "new year")
	rating := fs.String("rating", "", "new rating")
	price := fs.String("price", "", "new price")
	review := fs.String("review", "", "new review")
	matchYear := fs.String("match-year", "", "only apply if current year equals this")
	matchRating := fs.String("match-rating", "", "only apply if current rating equals this")
	matchPrice := fs.String("match-price", "", "only apply if current price equals this")
	if err := fs.Parse(args[1:]); err != nil {
		log.Fatalf("parse update flags: %v", err)
	}

	req := &rpc.UpdateKeyRequest{Key: args[0], ApplyToBackup: true}
	req.Fields = rpc.UpdateFields{
		Year:   optionalInt32(*year),
		Rating: optionalFloat32(*rating),
		Price:  optionalFloat32(*price),
		Review: optionalString(*review),
	}
	if y, r, p := optionalInt32(*matchYear), optionalFloat32(*matchRating), optionalFloat32(*matchPrice); y != nil || r != nil || p != nil {
		req.Criteria = &rpc.UpdateCriteria{Year: y, Rating: r, Price: p}
	}

	resp, err := c.UpdateKey(ctx, req)
	report("update", resp, err)
}

func runLookup(ctx context.Context, c *rpc.Client, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: lookup <key> [--bound=value ...] [--n=N]")
		os.Exit(2)
	}
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	lowerYear := fs.String("lower-year", "", "lower year bound")
	upperYear := fs.String("upper-year", "", "upper year bound")
	lowerRating := fs.String("lower-rating", "", "lower rating bound")
	upperRating := fs.String("upper-rating", "", "upper rating bound")
	lowerPrice := fs.String("lower-price", "", "lower price bound")
	upperPrice := fs.String("upper-price", "", "upper price bound")
	n := fs.Int("n", 0, "similar reviews to return (0 = node default)")
	if err := fs.Parse(args[1:]); err != nil {
		log.Fatalf("parse lookup flags: %v", err)
	}

	req := &rpc.LookupRequest{
		Key: args[0],
		LowerBounds: rpc.Bound{Year: optionalInt32(*lowerYear), Rating: optionalFloat32(*lowerRating), Price: optionalFloat32(*lowerPrice)},
		UpperBounds: rpc.Bound{Year: optionalInt32(*upperYear), Rating: optionalFloat32(*upperRating), Price: optionalFloat32(*upperPrice)},
		N:           *n,
	}

	resp, err := c.Lookup(ctx, req)
	if err != nil {
		fmt.Printf("lookup failed: %v\n", err)
		os.Exit(1)
	}
	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))
}

func runPing(ctx context.Context, c *rpc.Client) {
	resp, err := c.Ping(ctx, &rpc.Ack{})
	if err != nil {
		fmt.Printf("ping failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("status=%s\n", resp.Status)
}

func report(op string, resp *rpc.MutationResponse, err error) {
	if err != nil {
		fmt.Printf("%s failed: %v (%s)\n", op, err, status.Code(err))
		os.Exit(1)
	}
	fmt.Printf("%s succeeded: status=%s applied=%d hops=%v\n", op, resp.Status, resp.Applied, resp.Hops)
}

func mustInt32(s string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		log.Fatalf("invalid integer %q: %v", s, err)
	}
	return int32(v)
}

func mustFloat32(s string) float32 {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		log.Fatalf("invalid number %q: %v", s, err)
	}
	return float32(v)
}

func optionalInt32(s string) *int32 {
	if s == "" {
		return nil
	}
	v := mustInt32(s)
	return &v
}

func optionalFloat32(s string) *float32 {
	if s == "" {
		return nil
	}
	v := mustFloat32(s)
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
