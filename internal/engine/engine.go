// Package engine implements the Engine of spec §4.3: it drives
// scatter/gather over a physical plan with bounded parallelism, applies
// the combiner (or concatenates) shard partials, and materializes the
// final Result. Grounded on cloudimpl-ByteDB's root distributed/
// coordinator.go executePlan/aggregateResults (channel fan-out + fan-in
// with a result struct carrying shard id + payload + error), generalized
// from SQL-fragment row concatenation to typed Aggregate/Tuple/Vector
// combination.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/codec"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/shardmap"
	"github.com/cloudimpl/tsqcoord/internal/transport"
)

// maxRetries bounds the Engine's shard re-route policy (spec §7: "retry
// up to N=3 with a fresh shard-map snapshot each time").
const maxRetries = 3

var (
	errNoShards     = errors.New("engine: no shards in plan")
	errNotAggregate = errors.New("engine: shard result missing aggregate for combine")
)

// Engine drives one physical plan's scatter/gather execution. It is
// stateless across queries; ShardMap snapshots are taken fresh per
// attempt from the supplied *shardmap.Map.
type Engine struct {
	transport transport.Transport
	log       *slog.Logger
}

func New(tp transport.Transport, log *slog.Logger) *Engine {
	return &Engine{transport: tp, log: log}
}

// Execute runs phys to completion. cols is the result schema the caller
// resolved the query's column list to — the Engine needs it only to
// build VectorResult/TupleResult schemas for the non-aggregate plan paths.
func (e *Engine) Execute(ctx context.Context, ref dataset.Ref, phys plan.PhysicalPlan, cols []dataset.Column, sm *shardmap.Map, opts config.QueryOptions) (codec.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout())
	defer cancel()

	dc, ok := phys.(plan.DistributeConcat)
	if !ok {
		return nil, apperr.UnsupportedPlan("engine only executes DistributeConcat physical plans")
	}

	byShard := groupByShard(dc.PartMethods)
	shardIDs := sortedShardIDs(byShard)

	results, err := e.scatter(ctx, ref, dc, byShard, shardIDs, sm, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Timeout()
		}
		return nil, err
	}

	if dc.Combine != nil {
		return e.combine(shardIDs, results, dc.Combine.Combiner)
	}
	return e.concat(shardIDs, results, cols, dc.ItemLimit)
}

type shardOutcome struct {
	result transport.ShardResult
	err    error
}

func groupByShard(methods []plan.PartitionScanMethod) map[uint32][]plan.PartitionScanMethod {
	out := make(map[uint32][]plan.PartitionScanMethod)
	for _, m := range methods {
		out[m.ShardID()] = append(out[m.ShardID()], m)
	}
	return out
}

func sortedShardIDs(byShard map[uint32][]plan.PartitionScanMethod) []uint32 {
	ids := make([]uint32, 0, len(byShard))
	for id := range byShard {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// scatter submits up to opts.Parallelism shard requests concurrently,
// retrying a transient per-shard error with a fresh ShardMap snapshot up
// to maxRetries times, and returns the first result per shard. A single
// non-retriable error cancels the rest and is returned as the Engine's
// overall error.
func (e *Engine) scatter(ctx context.Context, ref dataset.Ref, dc plan.DistributeConcat, byShard map[uint32][]plan.PartitionScanMethod, shardIDs []uint32, sm *shardmap.Map, opts config.QueryOptions) (map[uint32]transport.ShardResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, maxInt(dc.Parallelism, 1))
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make(map[uint32]shardOutcome, len(shardIDs))
	var firstErr error

	for _, shardID := range shardIDs {
		methods := byShard[shardID]
		wg.Add(1)
		go func(shardID uint32, methods []plan.PartitionScanMethod) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			result, err := e.executeShard(ctx, ref, dc, methods, sm, opts)

			mu.Lock()
			outcomes[shardID] = shardOutcome{result: result, err: err}
			if err != nil && firstErr == nil {
				firstErr = err
				cancel()
			}
			mu.Unlock()
		}(shardID, methods)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	out := make(map[uint32]transport.ShardResult, len(outcomes))
	for id, o := range outcomes {
		out[id] = o.result
	}
	return out, nil
}

// executeShard runs one shard's (possibly several, if methods grouped
// more than one PartitionScanMethod onto it) sub-plan with the Engine's
// fresh-snapshot retry policy.
func (e *Engine) executeShard(ctx context.Context, ref dataset.Ref, dc plan.DistributeConcat, methods []plan.PartitionScanMethod, sm *shardmap.Map, opts config.QueryOptions) (transport.ShardResult, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		snap := sm.Current()
		method := methods[0]
		info, known := snap.ShardOf[shardmap.ID(method.ShardID())]
		if !known || info.Status != shardmap.Active {
			lastErr = apperr.ShardNotActive(int(method.ShardID()))
			continue
		}

		client, err := e.transport.NewShardClient(string(info.Owner))
		if err != nil {
			lastErr = apperr.NodeUnavailable(string(info.Owner))
			continue
		}

		req := transport.SingleShardQuery{Ref: ref, Sub: dc.LocalPlan(method), ItemLimit: dc.ItemLimit}
		result, err := client.ExecuteSingleShardQuery(ctx, req)
		_ = client.Close()
		if err == nil {
			return result, nil
		}

		lastErr = err
		if appErr, ok := apperr.As(err); !ok || !appErr.Kind.Retriable() {
			return transport.ShardResult{}, err
		}
		e.log.Debug("retrying shard request with fresh snapshot", "shard", method.ShardID(), "attempt", attempt+1)
	}
	return transport.ShardResult{}, lastErr
}

// combine folds shard Aggregates through comb in ascending shard-ID
// order. Per spec §4.3, an associative+commutative combiner may fold as
// partials arrive; the Engine always gathers first for simplicity, which
// is still correct and, being a deterministic fixed order, satisfies the
// order-independence property for assoc+commutative combiners too.
func (e *Engine) combine(shardIDs []uint32, results map[uint32]transport.ShardResult, comb aggregate.Combiner) (codec.Result, error) {
	if len(shardIDs) == 0 {
		return nil, apperr.Internal(errNoShards)
	}
	first := results[shardIDs[0]].Aggregate
	if first == nil {
		return nil, apperr.Internal(errNotAggregate)
	}
	acc := *first
	for _, id := range shardIDs[1:] {
		partial := results[id].Aggregate
		if partial == nil {
			return nil, apperr.Internal(errNotAggregate)
		}
		merged, err := comb.Combine(acc, *partial)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		acc = merged
	}
	acc = comb.Finalize(acc)
	return codec.EncodeAggregate(acc)
}

// concat implements the non-combine DistributeConcat paths: ReduceEach
// alone concatenates per-shard Aggregates into one N-cardinality
// Aggregate; StreamLastTuple/LocalVectorReader concatenate rows directly
// into a VectorResult, in (shard ID ascending, within-shard submission)
// order, truncated to itemLimit.
func (e *Engine) concat(shardIDs []uint32, results map[uint32]transport.ShardResult, cols []dataset.Column, itemLimit int) (codec.Result, error) {
	if len(shardIDs) > 0 && results[shardIDs[0]].Aggregate != nil {
		return e.concatAggregates(shardIDs, results, itemLimit)
	}
	rows := make([]map[int]any, 0)
	for _, id := range shardIDs {
		for _, row := range results[id].Rows {
			rows = append(rows, row.Values)
			if itemLimit > 0 && len(rows) >= itemLimit {
				return codec.BuildVectorResult(cols, rows), nil
			}
		}
	}
	return codec.BuildVectorResult(cols, rows), nil
}

func (e *Engine) concatAggregates(shardIDs []uint32, results map[uint32]transport.ShardResult, itemLimit int) (codec.Result, error) {
	class := results[shardIDs[0]].Aggregate.Class
	wide := results[shardIDs[0]].Aggregate.Wide
	acc := aggregate.Aggregate{Class: class, Wide: wide}
	for _, id := range shardIDs {
		part := results[id].Aggregate
		if part == nil {
			continue
		}
		acc.Doubles = append(acc.Doubles, part.Doubles...)
		acc.Ints = append(acc.Ints, part.Ints...)
		if itemLimit > 0 && (len(acc.Doubles) >= itemLimit || len(acc.Ints) >= itemLimit) {
			break
		}
	}
	if itemLimit > 0 {
		if len(acc.Doubles) > itemLimit {
			acc.Doubles = acc.Doubles[:itemLimit]
		}
		if len(acc.Ints) > itemLimit {
			acc.Ints = acc.Ints[:itemLimit]
		}
	}
	acc.Cardinality = len(acc.Doubles) + len(acc.Ints)
	return codec.EncodeAggregate(acc)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
