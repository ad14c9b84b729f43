// Package store defines the coordinator's narrow, consumed-only interface
// onto the column store (spec §6.1) — the on-disk/in-memory chunk engine
// itself is out of scope; only these five operations are exercised.
// Grounded on cloudimpl-ByteDB/backend/distributed/communication's
// fake-service pattern (MemoryTransport): a real column store is an
// external collaborator, so tests and local development run against the
// in-memory Fake in memory.go.
package store

import (
	"context"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
)

// Row is one scanned sample: a partition key, an optional timestamp, and
// the raw column values keyed by column ID.
type Row struct {
	PartitionKey string
	TimestampMs  int64
	RowKey       string
	Values       map[int]any
}

// ChunkSet is one columnar block of rows for one partition (spec
// GLOSSARY "Chunk"). The coordinator never inspects it beyond folding it
// through an Aggregator or copying it into a VectorReader's result.
type ChunkSet struct {
	PartitionKey string
	Rows         []Row
}

// Store is the interface the coordinator consumes from the column store.
type Store interface {
	// Aggregate streams shard-local partial aggregates. Most callers use
	// ScanChunks directly and fold locally through an Aggregator instead;
	// Aggregate exists for stores that can push aggregation down further.
	Aggregate(ctx context.Context, ref dataset.Ref, agg aggregate.Aggregator, colID int, pm plan.PartitionScanMethod, cs plan.ChunkScanMethod) (<-chan aggregate.Aggregate, <-chan error)

	// ScanChunks opens a pull-based stream of ChunkSets for the given
	// partition and chunk-scan method, restricted to colIDs.
	ScanChunks(ctx context.Context, ref dataset.Ref, pm plan.PartitionScanMethod, cs plan.ChunkScanMethod, colIDs []int) (<-chan ChunkSet, <-chan error)

	// ActiveShards lists the shards this store currently serves data for.
	ActiveShards(ctx context.Context, ref dataset.Ref) ([]uint32, error)

	// IndexNames lists the dataset's index names and their cardinality.
	IndexNames(ctx context.Context, ref dataset.Ref) ([]IndexName, error)

	// IndexValues lists the distinct values of one index on one shard.
	IndexValues(ctx context.Context, ref dataset.Ref, shard uint32, index string) ([]string, error)
}

// IndexName is one dataset index and its cardinality.
type IndexName struct {
	Name        string
	Cardinality int
}
