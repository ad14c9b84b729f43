package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
)

// Fake is an in-memory Store, standing in for the external column store
// during tests and local development. Rows are seeded directly rather
// than written through a wire protocol.
type Fake struct {
	mu               sync.RWMutex
	shardOfPartition map[dataset.Ref]map[string]uint32
	rowsOfPartition  map[dataset.Ref]map[string][]Row
	indexValues      map[dataset.Ref]map[uint32]map[string][]string
}

func NewFake() *Fake {
	return &Fake{
		shardOfPartition: make(map[dataset.Ref]map[string]uint32),
		rowsOfPartition:  make(map[dataset.Ref]map[string][]Row),
		indexValues:      make(map[dataset.Ref]map[uint32]map[string][]string),
	}
}

// Seed registers a partition's rows on a shard. Rows should already be in
// time order; MostRecent returns the last one.
func (f *Fake) Seed(ref dataset.Ref, partitionKey string, shard uint32, rows []Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shardOfPartition[ref] == nil {
		f.shardOfPartition[ref] = make(map[string]uint32)
		f.rowsOfPartition[ref] = make(map[string][]Row)
	}
	f.shardOfPartition[ref][partitionKey] = shard
	f.rowsOfPartition[ref][partitionKey] = rows
}

// SeedIndex registers the distinct values of one index on one shard.
func (f *Fake) SeedIndex(ref dataset.Ref, shard uint32, index string, values []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexValues[ref] == nil {
		f.indexValues[ref] = make(map[uint32]map[string][]string)
	}
	if f.indexValues[ref][shard] == nil {
		f.indexValues[ref][shard] = make(map[string][]string)
	}
	f.indexValues[ref][shard][index] = values
}

func (f *Fake) partitionsFor(ref dataset.Ref, pm plan.PartitionScanMethod) []string {
	shardOf := f.shardOfPartition[ref]
	switch m := pm.(type) {
	case plan.SinglePartition:
		if shardOf[m.Key] == m.Shard {
			return []string{m.Key}
		}
		return nil
	case plan.MultiPartition:
		out := make([]string, 0, len(m.Keys))
		for _, k := range m.Keys {
			if shardOf[k] == m.Shard {
				out = append(out, k)
			}
		}
		sort.Strings(out)
		return out
	case plan.FilteredPartition:
		out := make([]string, 0)
		for key, shard := range shardOf {
			if shard != m.Shard {
				continue
			}
			out = append(out, key)
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}

func matchesChunkScan(row Row, cs plan.ChunkScanMethod) bool {
	switch c := cs.(type) {
	case plan.AllChunks, plan.MostRecent:
		return true
	case plan.TimeRange:
		return row.TimestampMs >= c.StartMs && row.TimestampMs <= c.EndMs
	case plan.RowKeyRange:
		return row.RowKey >= c.Start && row.RowKey <= c.End
	default:
		return false
	}
}

func project(row Row, colIDs []int) Row {
	if colIDs == nil {
		return row
	}
	values := make(map[int]any, len(colIDs))
	for _, id := range colIDs {
		if v, ok := row.Values[id]; ok {
			values[id] = v
		}
	}
	return Row{PartitionKey: row.PartitionKey, TimestampMs: row.TimestampMs, RowKey: row.RowKey, Values: values}
}

// ScanChunks yields one ChunkSet per matching partition, in partition-key
// order. Cancellation is honored between partitions.
func (f *Fake) ScanChunks(ctx context.Context, ref dataset.Ref, pm plan.PartitionScanMethod, cs plan.ChunkScanMethod, colIDs []int) (<-chan ChunkSet, <-chan error) {
	out := make(chan ChunkSet)
	errc := make(chan error, 1)

	f.mu.RLock()
	partitions := f.partitionsFor(ref, pm)
	rowsByPartition := f.rowsOfPartition[ref]
	f.mu.RUnlock()

	go func() {
		defer close(out)
		defer close(errc)
		for _, key := range partitions {
			select {
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			default:
			}
			rows := rowsByPartition[key]
			var matched []Row
			if _, isMostRecent := cs.(plan.MostRecent); isMostRecent {
				if len(rows) > 0 {
					matched = []Row{project(rows[len(rows)-1], colIDs)}
				}
			} else {
				for _, row := range rows {
					if matchesChunkScan(row, cs) {
						matched = append(matched, project(row, colIDs))
					}
				}
			}
			select {
			case out <- ChunkSet{PartitionKey: key, Rows: matched}:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()
	return out, errc
}

// Aggregate scans and folds locally; it is not on the ShardExecutor's hot
// path (spec §4.4 folds through the aggregator itself) but is exercised
// directly by tests and available to a store that can push aggregation
// down.
func (f *Fake) Aggregate(ctx context.Context, ref dataset.Ref, agg aggregate.Aggregator, colID int, pm plan.PartitionScanMethod, cs plan.ChunkScanMethod) (<-chan aggregate.Aggregate, <-chan error) {
	out := make(chan aggregate.Aggregate, 1)
	errc := make(chan error, 1)
	chunks, scanErrs := f.ScanChunks(ctx, ref, pm, cs, []int{colID})

	go func() {
		defer close(out)
		defer close(errc)
		state := agg.NewState()
		for chunk := range chunks {
			for _, row := range chunk.Rows {
				if v, ok := row.Values[colID]; ok {
					if err := state.Fold(v); err != nil {
						errc <- err
						return
					}
				}
			}
		}
		if err := <-scanErrs; err != nil {
			errc <- err
			return
		}
		out <- state.Result()
	}()
	return out, errc
}

func (f *Fake) ActiveShards(ctx context.Context, ref dataset.Ref) ([]uint32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := make(map[uint32]struct{})
	for _, shard := range f.shardOfPartition[ref] {
		seen[shard] = struct{}{}
	}
	out := make([]uint32, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *Fake) IndexNames(ctx context.Context, ref dataset.Ref) ([]IndexName, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := make(map[string]map[string]struct{})
	for _, byIndex := range f.indexValues[ref] {
		for name, values := range byIndex {
			if seen[name] == nil {
				seen[name] = make(map[string]struct{})
			}
			for _, v := range values {
				seen[name][v] = struct{}{}
			}
		}
	}
	out := make([]IndexName, 0, len(seen))
	for name, values := range seen {
		out = append(out, IndexName{Name: name, Cardinality: len(values)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *Fake) IndexValues(ctx context.Context, ref dataset.Ref, shard uint32, index string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.indexValues[ref][shard][index], nil
}
