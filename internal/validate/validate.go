// Package validate implements the Validator described in spec §4.1: a
// pure, synchronous pass that resolves column names, aggregator/combiner
// names, and partition/time predicates against dataset metadata and the
// live ShardMap before a LogicalPlan is compiled. Matching of function
// names goes through internal/aggregate.Registry rather than a hardcoded
// switch, generalizing cloudimpl-ByteDB's AggregateFunction lookup table
// into a case-insensitive name->capability registry.
package validate

import (
	"fmt"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/shardmap"
)

// Validator resolves a LogicalPlan's leaves against dataset metadata and
// the aggregate registry. It holds no per-query state.
type Validator struct {
	registry *aggregate.Registry
}

func New(registry *aggregate.Registry) *Validator {
	return &Validator{registry: registry}
}

// ResolveColumns maps column names to Columns. Invariant: a name resolves
// to at most one column.
func (v *Validator) ResolveColumns(ds *dataset.Dataset, names []string) ([]dataset.Column, error) {
	cols := make([]dataset.Column, 0, len(names))
	for _, name := range names {
		col, ok := ds.ColumnByName(name)
		if !ok {
			return nil, apperr.UnknownColumn(name)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// ResolveAggregator resolves name (case-insensitive) to a registered
// Aggregator and checks the given argument count against its arity.
func (v *Validator) ResolveAggregator(name string, args []string) (aggregate.Aggregator, error) {
	agg, ok := v.registry.LookupAggregator(name)
	if !ok {
		return nil, apperr.NoSuchFunction(name)
	}
	if len(args) != agg.Arity() {
		return nil, apperr.WrongArity(len(args), agg.Arity())
	}
	return agg, nil
}

// ResolveCombiner resolves name (case-insensitive) to a registered
// Combiner and checks arity. agg is not inspected: no check is made that
// the combiner suits the aggregator's result class.
func (v *Validator) ResolveCombiner(name string, agg aggregate.Aggregator, args []string) (aggregate.Combiner, error) {
	comb, ok := v.registry.LookupCombiner(name)
	if !ok {
		return nil, apperr.NoSuchFunction(name)
	}
	if len(args) != comb.Arity() {
		return nil, apperr.WrongArity(len(args), comb.Arity())
	}
	return comb, nil
}

// ValidateDataQuery resolves a DataQuery into a ChunkScanMethod. Time-based
// scans require a timestamp column.
func (v *Validator) ValidateDataQuery(ds *dataset.Dataset, dq plan.DataQuery) (plan.ChunkScanMethod, error) {
	switch q := dq.(type) {
	case plan.AllChunksQuery:
		return plan.AllChunks{}, nil
	case plan.MostRecentQuery:
		if !ds.HasTimestamp() {
			return nil, apperr.NoTimestampColumn()
		}
		return plan.MostRecent{}, nil
	case plan.TimeRangeQuery:
		if !ds.HasTimestamp() {
			return nil, apperr.NoTimestampColumn()
		}
		return plan.TimeRange{StartMs: q.StartMs, EndMs: q.EndMs}, nil
	case plan.RowKeyRangeQuery:
		return plan.RowKeyRange{Start: q.Start, End: q.End}, nil
	default:
		return nil, apperr.BadArgument(fmt.Sprintf("unrecognized data query %T", dq))
	}
}

// ValidatePartQuery resolves a PartQuery into the list of
// PartitionScanMethods the Engine should scatter to, pinning each to its
// owning shard via the ShardMap snapshot. A partition whose owning shard
// is not Active is omitted unless options.RequireAllShards, in which case
// the call fails with ShardNotActive.
func (v *Validator) ValidatePartQuery(sm *shardmap.Snapshot, pq plan.PartQuery, opts config.QueryOptions) ([]plan.PartitionScanMethod, error) {
	switch q := pq.(type) {
	case plan.AllPartitions:
		methods := make([]plan.PartitionScanMethod, 0, len(sm.ShardOf))
		for _, id := range sortedShardIDs(sm) {
			info := sm.ShardOf[id]
			if info.Status != shardmap.Active {
				if opts.RequireAllShards {
					return nil, apperr.ShardNotActive(int(id))
				}
				continue
			}
			methods = append(methods, plan.FilteredPartition{Shard: uint32(id)})
		}
		return methods, nil

	case plan.PartitionKeys:
		shardCount := len(sm.ShardOf)
		if shardCount == 0 {
			return nil, apperr.BadArgument("no shards known for this dataset")
		}
		byShard := make(map[uint32][]string)
		order := make([]uint32, 0)
		for _, key := range q.Keys {
			id := shardmap.HashPartitionKey(key, shardCount)
			info, known := sm.ShardOf[id]
			if !known || info.Status != shardmap.Active {
				if opts.RequireAllShards {
					return nil, apperr.ShardNotActive(int(id))
				}
				continue
			}
			if _, seen := byShard[uint32(id)]; !seen {
				order = append(order, uint32(id))
			}
			byShard[uint32(id)] = append(byShard[uint32(id)], key)
		}
		methods := make([]plan.PartitionScanMethod, 0, len(order))
		for _, shard := range order {
			keys := byShard[shard]
			if len(keys) == 1 {
				methods = append(methods, plan.SinglePartition{Shard: shard, Key: keys[0]})
			} else {
				methods = append(methods, plan.MultiPartition{Shard: shard, Keys: keys})
			}
		}
		return methods, nil

	case plan.PredicateOnShard:
		info, known := sm.ShardOf[shardmap.ID(q.Shard)]
		if !known || info.Status != shardmap.Active {
			if opts.RequireAllShards {
				return nil, apperr.ShardNotActive(int(q.Shard))
			}
			return nil, nil
		}
		return []plan.PartitionScanMethod{plan.FilteredPartition{Shard: q.Shard, Predicate: q.Predicate}}, nil

	default:
		return nil, apperr.BadArgument(fmt.Sprintf("unrecognized part query %T", pq))
	}
}

func sortedShardIDs(sm *shardmap.Snapshot) []shardmap.ID {
	ids := make([]shardmap.ID, 0, len(sm.ShardOf))
	for id := range sm.ShardOf {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// Validate resolves an entire LogicalPlan into a plan.Resolved, matching
// the same shapes the Planner compiles (spec §4.2 rules 1-5). Anything
// else is rejected here, before Planner.Compile ever runs.
func (v *Validator) Validate(ds *dataset.Dataset, sm *shardmap.Snapshot, logical plan.LogicalPlan, opts config.QueryOptions) (plan.Resolved, error) {
	switch lp := logical.(type) {
	case plan.PartitionsInstant:
		return v.resolveLeaf(ds, sm, lp.PartQuery, plan.AllChunksQuery{}, lp.Columns, opts)

	case plan.PartitionsRange:
		return v.resolveLeaf(ds, sm, lp.PartQuery, lp.DataQuery, lp.Columns, opts)

	case plan.ReduceEach:
		rangeChild, ok := lp.Child.(plan.PartitionsRange)
		if !ok {
			return plan.Resolved{}, apperr.UnsupportedPlan(fmt.Sprintf("ReduceEach over %T", lp.Child))
		}
		r, err := v.resolveLeaf(ds, sm, rangeChild.PartQuery, rangeChild.DataQuery, rangeChild.Columns, opts)
		if err != nil {
			return plan.Resolved{}, err
		}
		if len(r.Columns) != 1 {
			return plan.Resolved{}, apperr.BadArgument(fmt.Sprintf("Only one column should be specified, but got %d", len(r.Columns)))
		}
		agg, err := v.ResolveAggregator(lp.AggFunc, lp.AggArgs)
		if err != nil {
			return plan.Resolved{}, err
		}
		r.Aggregator, r.AggArgs = agg, lp.AggArgs
		return r, nil

	case plan.ReducePartitions:
		reduceChild, ok := lp.Child.(plan.ReduceEach)
		if !ok {
			return plan.Resolved{}, apperr.UnsupportedPlan(fmt.Sprintf("ReducePartitions over %T", lp.Child))
		}
		r, err := v.Validate(ds, sm, reduceChild, opts)
		if err != nil {
			return plan.Resolved{}, err
		}
		comb, err := v.ResolveCombiner(lp.CombFunc, r.Aggregator, lp.CombArgs)
		if err != nil {
			return plan.Resolved{}, err
		}
		r.Combiner, r.CombArgs = comb, lp.CombArgs
		return r, nil

	default:
		return plan.Resolved{}, apperr.UnsupportedPlan(fmt.Sprintf("%T", logical))
	}
}

func (v *Validator) resolveLeaf(ds *dataset.Dataset, sm *shardmap.Snapshot, pq plan.PartQuery, dq plan.DataQuery, colNames []string, opts config.QueryOptions) (plan.Resolved, error) {
	cols, err := v.ResolveColumns(ds, colNames)
	if err != nil {
		return plan.Resolved{}, err
	}
	chunkScan, err := v.ValidateDataQuery(ds, dq)
	if err != nil {
		return plan.Resolved{}, err
	}
	methods, err := v.ValidatePartQuery(sm, pq, opts)
	if err != nil {
		return plan.Resolved{}, err
	}
	return plan.Resolved{Columns: cols, PartMethods: methods, ChunkScan: chunkScan}, nil
}
