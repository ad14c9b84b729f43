// Command coordinator wires together the catalog, shard map, aggregate
// registry, column store seam, transport, engine, and router into one
// running process, then serves client queries until interrupted.
// Flag-based entry point grounded on cloudimpl-ByteDB/backend/cmd's
// flag.String/flag.Int CLI idiom (distributed_sql_test_runner.go).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/engine"
	"github.com/cloudimpl/tsqcoord/internal/executor"
	"github.com/cloudimpl/tsqcoord/internal/logging"
	"github.com/cloudimpl/tsqcoord/internal/router"
	"github.com/cloudimpl/tsqcoord/internal/shardmap"
	"github.com/cloudimpl/tsqcoord/internal/store"
	"github.com/cloudimpl/tsqcoord/internal/transport"
	"github.com/cloudimpl/tsqcoord/internal/validate"
)

const shardAddr = "shard-0" // single in-process shard service address for the InMemoryTransport demo

func main() {
	var (
		configFile = flag.String("config", "", "Path to a config file (optional; env TSQCOORD_* always applies)")
		listenAddr = flag.String("listen", "", "Router listen address (overrides config)")
		logLevel   = flag.String("log-level", "", "DEBUG, INFO, WARN, or ERROR (default INFO)")
		shardCount = flag.Int("shards", 4, "Number of Active shards to seed for the demo dataset")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logging.Init(logging.Config{Level: *logLevel, Format: "json"})
	log := logging.Get()

	registry := aggregate.NewRegistry()
	catalog := dataset.NewMemCatalog()
	fakeStore := store.NewFake()
	sm := shardmap.New()
	tp := transport.NewInMemoryTransport()

	ref := dataset.Ref{Name: "demo"}
	seedDemoDataset(catalog, sm, ref, *shardCount)

	exec := executor.New(fakeStore, registry, log)
	if err := tp.StartShardServer(shardAddr, exec); err != nil {
		log.Error("failed to start shard service", "error", err)
		os.Exit(1)
	}

	eng := engine.New(tp, log)
	validator := validate.New(registry)
	r := router.New(ref, catalog, sm, validator, eng, fakeStore, log, cfg.QueryOptions.Parallelism)

	if err := tp.StartRouterServer(cfg.ListenAddr, r); err != nil {
		log.Error("failed to start router service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go r.Run(ctx)
	seedDemoDataset(catalog, r, ref, *shardCount)
	log.Info("coordinator ready", "listen_addr", cfg.ListenAddr, "dataset", ref.String(), "shards", *shardCount)

	<-ctx.Done()
	log.Info("coordinator shutting down")
	time.Sleep(200 * time.Millisecond) // let in-flight queries observe ctx and return
	_ = tp.Stop()
}

// seedDemoDataset registers a demo dataset and activates shardCount
// shards all owned by the single in-process shard service, so the
// freshly started coordinator can serve queries immediately without
// waiting on a real membership feed.
func seedDemoDataset(catalog dataset.Catalog, sm *shardmap.Map, ref dataset.Ref, shardCount int) {
	ds := &dataset.Dataset{
		Ref: ref,
		Columns: []dataset.Column{
			{ID: 0, Name: "value", Type: dataset.ColDouble},
			{ID: 1, Name: "t", Type: dataset.ColTimestamp},
		},
		PartitionKey: "partition",
		TimestampCol: "t",
	}
	if err := catalog.Register(ds); err != nil {
		slog.Default().Warn("demo dataset already registered", "error", err)
	}

	for i := 0; i < shardCount; i++ {
		sm.Apply(shardmap.Event{
			Shard: shardmap.ID(i),
			Owner: shardmap.NodeAddress(shardAddr),
			Type:  shardmap.EventActivated,
		})
	}
}
