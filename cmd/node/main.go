package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dhtresearch/internal/bootstrap"
	"dhtresearch/internal/config"
	"dhtresearch/internal/domain"
	"dhtresearch/internal/logger"
	zapfactory "dhtresearch/internal/logger/zap"
	"dhtresearch/internal/node"
	"dhtresearch/internal/overlay/chord"
	"dhtresearch/internal/overlay/pastry"
	"dhtresearch/internal/telemetry"
	"dhtresearch/internal/transport"
	"dhtresearch/internal/transport/pool"
	"dhtresearch/internal/transport/rpc"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

var defaultConfigPath = "config/node/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	lis, err := cfg.Node.Listen()
	if err != nil {
		lgr.Error("failed to initialize listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()
	addr := lis.Addr().String()
	lgr.Debug("listening", logger.F("addr", addr))

	var id domain.ID
	if cfg.Node.Id == "" {
		id = domain.HashKey(addr)
	} else {
		id, err = domain.ParseID(cfg.Node.Id)
		if err != nil {
			lgr.Error("invalid node id in configuration", logger.F("err", err))
			os.Exit(1)
		}
	}
	selfRef := domain.NodeRef{ID: id, Addr: addr}
	lgr = lgr.Named("node").With(logger.FNode("self", selfRef))
	lgr.Info("node initializing", logger.F("overlay", cfg.DHT.Overlay))

	shutdownTracer := telemetry.InitTracer(cfg.Telemetry, "dhtresearch-node", id)
	defer shutdownTracer(context.Background())

	p := pool.New(lgr.Named("pool"), grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	defer p.CloseAll()

	n := node.New(id, addr, p, node.LSHConfig{
		Bands:       cfg.DHT.LSH.Bands,
		Rows:        cfg.DHT.LSH.RowsPerBand,
		DefaultTopN: cfg.DHT.LSH.DefaultTopN,
	}, lgr.Named("node"))

	var srv rpc.Server
	switch cfg.DHT.Overlay {
	case "chord":
		o := chord.New(n, cfg.DHT.Chord.SuccessorListSize, cfg.DHT.Chord.FingerTableSize, lgr.Named("chord"))
		n.Attach(o)
		srv = n
	case "pastry":
		o := pastry.New(n, lgr.Named("pastry"))
		n.Attach(o)
		srv = n
	default:
		lgr.Error("unsupported overlay", logger.F("overlay", cfg.DHT.Overlay))
		os.Exit(1)
	}

	s := transport.New(lis, srv, transport.Options{
		MaxMessageBytes: cfg.DHT.Transport.MaxMessageBytes,
		MaxWorkers:      cfg.DHT.Transport.MaxWorkers,
		Tracing:         cfg.Telemetry.Tracing.Enabled,
	}, lgr.Named("server"))

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Start() }()
	lgr.Debug("gRPC server started")

	var register bootstrap.Bootstrap
	switch cfg.DHT.Bootstrap.Mode {
	case "route53":
		register, err = bootstrap.NewRoute53Bootstrap(cfg.DHT.Bootstrap.Route53)
		if err != nil {
			lgr.Error("failed to initialize Route53 bootstrap", logger.F("err", err))
			s.Stop()
			os.Exit(1)
		}
	case "static":
		register = bootstrap.NewStaticBootstrap(cfg.DHT.Bootstrap.Peers)
	default:
		lgr.Error("unsupported bootstrap mode", logger.F("mode", cfg.DHT.Bootstrap.Mode))
		s.Stop()
		os.Exit(1)
	}

	discoverCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := register.Discover(discoverCtx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err))
		s.Stop()
		os.Exit(1)
	}
	lgr.Info("resolved bootstrap peers", logger.F("peers", peers))

	joinCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	var bootstrapAddr string
	if len(peers) != 0 {
		bootstrapAddr = peers[0]
	}
	switch o := n.Overlay.(type) {
	case *chord.Overlay:
		err = o.Join(joinCtx, bootstrapAddr)
	case *pastry.Overlay:
		err = o.Join(joinCtx, bootstrapAddr)
	}
	cancel()
	if err != nil {
		lgr.Error("failed to join overlay", logger.F("err", err))
		s.Stop()
		os.Exit(1)
	}
	lgr.Debug("overlay joined", logger.F("bootstrap", bootstrapAddr))

	registerCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := register.Register(registerCtx, selfRef); err != nil {
		lgr.Warn("failed to register node", logger.F("err", err))
	} else {
		lgr.Info("node registered")
	}
	cancel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if o, ok := n.Overlay.(*chord.Overlay); ok {
		o.Start(ctx, chord.StabilizeIntervals{
			Stabilization:    cfg.DHT.Chord.StabilizationInterval,
			FingerFix:        cfg.DHT.Chord.FingerFixInterval,
			PredecessorCheck: cfg.DHT.Chord.PredecessorCheckPeriod,
		})
		lgr.Debug("chord stabilizer started")
	}

	select {
	case <-ctx.Done():
		lgr.Info("shutdown signal received, leaving overlay")
		stop()

		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		switch o := n.Overlay.(type) {
		case *chord.Overlay:
			o.Leave(leaveCtx)
		case *pastry.Overlay:
			if err := o.Leave(leaveCtx); err != nil {
				lgr.Warn("leave failed", logger.F("err", err))
			}
		}
		cancel()

		deregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := register.Deregister(deregisterCtx, selfRef); err != nil {
			lgr.Warn("failed to deregister node", logger.F("err", err))
		}
		cancel()
		n.Stop()

		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
			lgr.Info("server stopped gracefully")
		case <-time.After(5 * time.Second):
			lgr.Warn("graceful stop timed out, forcing shutdown")
			s.Stop()
		}

	case err := <-serveErr:
		lgr.Error("gRPC server terminated unexpectedly", logger.F("err", err))
		stop()
		n.Stop()
		os.Exit(1)
	}
}
