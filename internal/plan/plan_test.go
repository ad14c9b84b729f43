package plan

import (
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
)

func testOpts() config.QueryOptions {
	opts := config.DefaultQueryOptions()
	opts.Parallelism = 4
	opts.ItemLimit = 100
	return opts
}

func TestCompilePartitionsInstantProducesStreamLastTuple(t *testing.T) {
	r := Resolved{
		Columns:     []dataset.Column{{ID: 0, Name: "v", Type: dataset.ColDouble}},
		PartMethods: []PartitionScanMethod{FilteredPartition{Shard: 1}},
	}
	phys, err := Compile(PartitionsInstant{PartQuery: AllPartitions{}, Columns: []string{"v"}}, r, testOpts())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	dc, ok := phys.(DistributeConcat)
	if !ok {
		t.Fatalf("expected DistributeConcat, got %T", phys)
	}
	sub := dc.LocalPlan(FilteredPartition{Shard: 1})
	if _, ok := sub.(StreamLastTuple); !ok {
		t.Fatalf("expected StreamLastTuple leaf, got %T", sub)
	}
}

func TestCompilePartitionsRangeProducesLocalVectorReader(t *testing.T) {
	r := Resolved{
		Columns:     []dataset.Column{{ID: 0, Name: "v", Type: dataset.ColDouble}},
		PartMethods: []PartitionScanMethod{FilteredPartition{Shard: 1}},
		ChunkScan:   AllChunks{},
	}
	phys, err := Compile(PartitionsRange{PartQuery: AllPartitions{}, DataQuery: AllChunksQuery{}, Columns: []string{"v"}}, r, testOpts())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	dc := phys.(DistributeConcat)
	sub := dc.LocalPlan(FilteredPartition{Shard: 1})
	if _, ok := sub.(LocalVectorReader); !ok {
		t.Fatalf("expected LocalVectorReader leaf, got %T", sub)
	}
}

func TestCompileReduceEachRejectsMultipleColumns(t *testing.T) {
	r := Resolved{
		Columns: []dataset.Column{
			{ID: 0, Name: "a", Type: dataset.ColDouble},
			{ID: 1, Name: "b", Type: dataset.ColDouble},
		},
	}
	_, err := Compile(ReduceEach{AggFunc: "sum", Child: PartitionsRange{}}, r, testOpts())
	if err == nil {
		t.Fatalf("expected error for multi-column ReduceEach")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindBadArgument {
		t.Fatalf("expected BadArgument, got %v", err)
	}
}

func TestCompileReducePartitionsCarriesCombiner(t *testing.T) {
	agg := aggregate.NewRegistry()
	sumAgg, _ := agg.LookupAggregator("sum")
	sumComb, _ := agg.LookupCombiner("sum")

	r := Resolved{
		Columns:     []dataset.Column{{ID: 0, Name: "v", Type: dataset.ColDouble}},
		PartMethods: []PartitionScanMethod{FilteredPartition{Shard: 0}, FilteredPartition{Shard: 1}},
		ChunkScan:   AllChunks{},
		Aggregator:  sumAgg,
		Combiner:    sumComb,
	}
	logical := ReducePartitions{
		CombFunc: "sum",
		Child:    ReduceEach{AggFunc: "sum", Child: PartitionsRange{}},
	}
	phys, err := Compile(logical, r, testOpts())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	dc := phys.(DistributeConcat)
	if dc.Combine == nil {
		t.Fatalf("expected Combine to be set for ReducePartitions")
	}
	if dc.Combine.Combiner.Name() != "sum" {
		t.Fatalf("expected sum combiner, got %s", dc.Combine.Combiner.Name())
	}
	sub := dc.LocalPlan(FilteredPartition{Shard: 0})
	sa, ok := sub.(ShardAggregate)
	if !ok {
		t.Fatalf("expected ShardAggregate leaf, got %T", sub)
	}
	if sa.ColID != 0 || sa.AggFunc != "sum" {
		t.Fatalf("unexpected ShardAggregate leaf %+v", sa)
	}
}
