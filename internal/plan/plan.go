// Package plan implements the coordinator's recursive plan trees and the
// rule-based compiler that turns a validated LogicalPlan into a
// PhysicalPlan. Sum types are represented as small marker interfaces with
// unexported methods, and traversal is a type switch — no cost model, no
// virtual-dispatch hierarchy, matching the teacher's distributed/planner
// stage-pipeline shape (cloudimpl-ByteDB/distributed/planner).
package plan

import (
	"fmt"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
)

// LogicalPlan is the request-scoped, immutable-after-validation plan a
// client submits or the coordinator builds on its behalf.
type LogicalPlan interface{ logicalPlan() }

// PartitionsInstant selects the most-recent sample per partition.
type PartitionsInstant struct {
	PartQuery PartQuery
	Columns   []string
}

// PartitionsRange selects a time/row range per partition.
type PartitionsRange struct {
	PartQuery PartQuery
	DataQuery DataQuery
	Columns   []string
}

// ReduceEach applies a per-partition aggregate over a child plan.
type ReduceEach struct {
	AggFunc string
	AggArgs []string
	Child   LogicalPlan
}

// ReducePartitions combines per-partition aggregates across shards.
type ReducePartitions struct {
	CombFunc string
	CombArgs []string
	Child    LogicalPlan
}

func (PartitionsInstant) logicalPlan()  {}
func (PartitionsRange) logicalPlan()    {}
func (ReduceEach) logicalPlan()         {}
func (ReducePartitions) logicalPlan()   {}

// PartQuery resolves to a set of partitions, pinned to shards by the
// Validator against a ShardMap snapshot.
type PartQuery interface{ partQuery() }

// AllPartitions selects every partition of the dataset.
type AllPartitions struct{}

// PartitionKeys selects specific partition keys.
type PartitionKeys struct{ Keys []string }

// PredicateOnShard selects partitions on a single shard matching an
// opaque predicate string evaluated by the column store.
type PredicateOnShard struct {
	Shard     uint32
	Predicate string
}

func (AllPartitions) partQuery()    {}
func (PartitionKeys) partQuery()    {}
func (PredicateOnShard) partQuery() {}

// DataQuery selects which rows of a partition to scan.
type DataQuery interface{ dataQuery() }

// AllChunksQuery scans every chunk of a partition.
type AllChunksQuery struct{}

// MostRecentQuery scans only the most recent chunk.
type MostRecentQuery struct{}

// TimeRangeQuery scans chunks whose timestamp falls in [StartMs, EndMs].
type TimeRangeQuery struct{ StartMs, EndMs int64 }

// RowKeyRangeQuery scans chunks whose row key falls in [Start, End].
type RowKeyRangeQuery struct{ Start, End string }

func (AllChunksQuery) dataQuery()    {}
func (MostRecentQuery) dataQuery()   {}
func (TimeRangeQuery) dataQuery()    {}
func (RowKeyRangeQuery) dataQuery()  {}

// PhysicalPlan is the plan Engine.Execute drives. It lives only for the
// duration of one Engine.Execute call.
type PhysicalPlan interface{ physicalPlan() }

// CombineSpec marks a DistributeConcat as a ReducePartitions: the Engine
// folds shard partials through the named combiner instead of
// concatenating them.
type CombineSpec struct {
	CombFunc string
	CombArgs []string
	Combiner aggregate.Combiner
}

// DistributeConcat is the scatter/gather node: it fans PartMethods out to
// their owning shards and either concatenates the results (Combine == nil)
// or folds them through Combine's combiner.
type DistributeConcat struct {
	PartMethods []PartitionScanMethod
	Parallelism int
	ItemLimit   int
	LocalPlan   func(PartitionScanMethod) PhysicalPlan
	Combine     *CombineSpec
}

// LocalVectorReader reads a range of column values from one shard.
type LocalVectorReader struct {
	ColIDs     []int
	PartMethod PartitionScanMethod
	ChunkScan  ChunkScanMethod
}

// StreamLastTuple reads the most-recent sample of one partition.
type StreamLastTuple struct {
	ColIDs     []int
	PartMethod PartitionScanMethod
}

// ShardAggregate is the per-shard aggregate request produced by the
// ReduceEach/ReducePartitions rules (3 and 4): it runs on the
// ShardExecutor path rather than through a LocalVectorReader.
type ShardAggregate struct {
	ColID      int
	AggFunc    string
	AggArgs    []string
	Aggregator aggregate.Aggregator
	PartMethod PartitionScanMethod
	ChunkScan  ChunkScanMethod
}

func (DistributeConcat) physicalPlan()  {}
func (LocalVectorReader) physicalPlan() {}
func (StreamLastTuple) physicalPlan()   {}
func (ShardAggregate) physicalPlan()    {}

// PartitionScanMethod pins a scan to exactly one shard; the scatter step
// has already resolved ownership.
type PartitionScanMethod interface {
	partitionScanMethod()
	ShardID() uint32
}

// SinglePartition scans one partition key on its owning shard.
type SinglePartition struct {
	Shard uint32
	Key   string
}

// MultiPartition scans several partition keys that share an owning shard.
type MultiPartition struct {
	Shard uint32
	Keys  []string
}

// FilteredPartition scans a whole shard, optionally filtered by an
// opaque predicate ("" means every partition on the shard).
type FilteredPartition struct {
	Shard     uint32
	Predicate string
}

func (SinglePartition) partitionScanMethod()    {}
func (MultiPartition) partitionScanMethod()     {}
func (FilteredPartition) partitionScanMethod()  {}

func (m SinglePartition) ShardID() uint32   { return m.Shard }
func (m MultiPartition) ShardID() uint32    { return m.Shard }
func (m FilteredPartition) ShardID() uint32 { return m.Shard }

// ChunkScanMethod selects which rows of a partition's column chunks to
// scan. Range bounds are inclusive; an empty range yields zero rows, not
// an error.
type ChunkScanMethod interface{ chunkScanMethod() }

type AllChunks struct{}
type MostRecent struct{}
type TimeRange struct{ StartMs, EndMs int64 }
type RowKeyRange struct{ Start, End string }

func (AllChunks) chunkScanMethod()   {}
func (MostRecent) chunkScanMethod()  {}
func (TimeRange) chunkScanMethod()   {}
func (RowKeyRange) chunkScanMethod() {}

// Resolved carries everything the Validator has already resolved against
// dataset metadata and the shard map: column IDs, pinned scan methods, and
// (for ReduceEach/ReducePartitions) the concrete Aggregator/Combiner.
// Compile consumes a Resolved value to emit a PhysicalPlan; it performs no
// further validation.
type Resolved struct {
	Columns     []dataset.Column
	PartMethods []PartitionScanMethod
	ChunkScan   ChunkScanMethod
	Aggregator  aggregate.Aggregator
	AggArgs     []string
	Combiner    aggregate.Combiner
	CombArgs    []string
}

// Compile implements the five planner rules of spec §4.2. It never
// consults cost information; ordering and shape alone decide the rule.
func Compile(logical LogicalPlan, r Resolved, opts config.QueryOptions) (PhysicalPlan, error) {
	colIDs := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		colIDs[i] = c.ID
	}

	switch logical.(type) {
	case PartitionsInstant:
		return DistributeConcat{
			PartMethods: r.PartMethods,
			Parallelism: opts.Parallelism,
			ItemLimit:   opts.ItemLimit,
			LocalPlan: func(m PartitionScanMethod) PhysicalPlan {
				return StreamLastTuple{ColIDs: colIDs, PartMethod: m}
			},
		}, nil

	case PartitionsRange:
		return DistributeConcat{
			PartMethods: r.PartMethods,
			Parallelism: opts.Parallelism,
			ItemLimit:   opts.ItemLimit,
			LocalPlan: func(m PartitionScanMethod) PhysicalPlan {
				return LocalVectorReader{ColIDs: colIDs, PartMethod: m, ChunkScan: r.ChunkScan}
			},
		}, nil

	case ReduceEach:
		if len(r.Columns) != 1 {
			return nil, apperr.BadArgument(fmt.Sprintf("Only one column should be specified, but got %d", len(r.Columns)))
		}
		return distributeAggregate(r, opts, colIDs[0], nil), nil

	case ReducePartitions:
		if len(r.Columns) != 1 {
			return nil, apperr.BadArgument(fmt.Sprintf("Only one column should be specified, but got %d", len(r.Columns)))
		}
		combine := &CombineSpec{CombFunc: r.Combiner.Name(), CombArgs: r.CombArgs, Combiner: r.Combiner}
		return distributeAggregate(r, opts, colIDs[0], combine), nil

	default:
		return nil, apperr.UnsupportedPlan(fmt.Sprintf("%T", logical))
	}
}

func distributeAggregate(r Resolved, opts config.QueryOptions, colID int, combine *CombineSpec) DistributeConcat {
	return DistributeConcat{
		PartMethods: r.PartMethods,
		Parallelism: opts.Parallelism,
		ItemLimit:   opts.ItemLimit,
		LocalPlan: func(m PartitionScanMethod) PhysicalPlan {
			return ShardAggregate{
				ColID:      colID,
				AggFunc:    r.Aggregator.Name(),
				AggArgs:    r.AggArgs,
				Aggregator: r.Aggregator,
				PartMethod: m,
				ChunkScan:  r.ChunkScan,
			}
		},
		Combine: combine,
	}
}
