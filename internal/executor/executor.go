// Package executor implements the ShardExecutor of spec §4.4: the
// shard-owning node's entry point for a SingleShardQuery. It re-validates
// the request (the remote side must not trust the caller's validation —
// the dataset version may differ), opens a pull-based chunk scan against
// the column store, and folds rows through the aggregator. Grounded on
// cloudimpl-ByteDB/backend/distributed/worker/worker.go's ExecuteFragment
// (active-query bookkeeping, per-fragment dispatch), generalized from
// "execute a SQL fragment" to "scan+fold one PartitionScanMethod+
// ChunkScanMethod pair".
package executor

import (
	"context"
	"log/slog"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/store"
)

// Request is a SingleShardQuery's shard-side payload. Function names, not
// resolved Aggregator values, cross the wire — the executor resolves them
// itself against its own registry.
type Request struct {
	ColID      int
	AggFunc    string
	AggArgs    []string
	PartMethod plan.PartitionScanMethod
	ChunkScan  plan.ChunkScanMethod
	ItemLimit  int // 0 means unbounded
}

// Executor is the per-node shard executor. It holds no per-query state;
// Aggregator state is owned exclusively by one Execute call (spec §5).
type Executor struct {
	store    store.Store
	registry *aggregate.Registry
	log      *slog.Logger
}

func New(st store.Store, registry *aggregate.Registry, log *slog.Logger) *Executor {
	return &Executor{store: st, registry: registry, log: log}
}

// Execute runs one SingleShardQuery to completion. On caller cancellation
// or a scan error, the partial aggregate is discarded and an error is
// returned; reaching the aggregator's own Done() or the item limit is a
// normal end condition and returns the partial result.
func (e *Executor) Execute(ctx context.Context, ref dataset.Ref, req Request) (aggregate.Aggregate, error) {
	agg, ok := e.registry.LookupAggregator(req.AggFunc)
	if !ok {
		return aggregate.Aggregate{}, apperr.NoSuchFunction(req.AggFunc)
	}
	if len(req.AggArgs) != agg.Arity() {
		return aggregate.Aggregate{}, apperr.WrongArity(len(req.AggArgs), agg.Arity())
	}

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()

	chunks, errc := e.store.ScanChunks(scanCtx, ref, req.PartMethod, req.ChunkScan, []int{req.ColID})

	state := agg.NewState()
	seen := 0
	stoppedEarly := false
loop:
	for chunk := range chunks {
		for _, row := range chunk.Rows {
			v, ok := row.Values[req.ColID]
			if !ok {
				continue
			}
			if err := state.Fold(v); err != nil {
				stopScan()
				return aggregate.Aggregate{}, apperr.Internal(err)
			}
			seen++
			if state.Done() || (req.ItemLimit > 0 && seen >= req.ItemLimit) {
				stoppedEarly = true
				stopScan()
				break loop
			}
		}
	}
	// Drain so the store's goroutine (and its error channel) doesn't leak,
	// regardless of how the loop above ended.
	for range chunks {
	}
	scanErr := drainErr(errc)

	if ctx.Err() != nil {
		e.log.Debug("shard query cancelled, discarding partial aggregate", "shard", req.PartMethod.ShardID())
		return aggregate.Aggregate{}, apperr.Internal(ctx.Err())
	}
	if !stoppedEarly && scanErr != nil {
		return aggregate.Aggregate{}, apperr.Internal(scanErr)
	}

	return state.Result(), nil
}

func drainErr(errc <-chan error) error {
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}
