package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/store"
	"github.com/cloudimpl/tsqcoord/internal/transport"
)

var execRef = dataset.Ref{Name: "metrics"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteFoldsMatchingRowsIntoAggregateResult(t *testing.T) {
	st := store.NewFake()
	st.Seed(execRef, "p1", 0, []store.Row{
		{PartitionKey: "p1", Values: map[int]any{0: 2.0}},
		{PartitionKey: "p1", Values: map[int]any{0: 3.0}},
	})
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	result, err := exec.Execute(context.Background(), execRef, Request{
		ColID:      0,
		AggFunc:    "sum",
		PartMethod: plan.FilteredPartition{Shard: 0},
		ChunkScan:  plan.AllChunks{},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Doubles[0] != 5.0 {
		t.Fatalf("expected sum 5.0, got %v", result.Doubles[0])
	}
}

func TestExecuteRejectsUnknownAggregateFunction(t *testing.T) {
	st := store.NewFake()
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	_, err := exec.Execute(context.Background(), execRef, Request{
		ColID:      0,
		AggFunc:    "does-not-exist",
		PartMethod: plan.FilteredPartition{Shard: 0},
		ChunkScan:  plan.AllChunks{},
	})
	if err == nil {
		t.Fatalf("expected error for unknown aggregate function")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindNoSuchFunction {
		t.Fatalf("expected NoSuchFunction, got %v", err)
	}
}

func TestExecuteStopsEarlyAtItemLimit(t *testing.T) {
	st := store.NewFake()
	st.Seed(execRef, "p1", 0, []store.Row{
		{PartitionKey: "p1", Values: map[int]any{0: 1.0}},
		{PartitionKey: "p1", Values: map[int]any{0: 2.0}},
		{PartitionKey: "p1", Values: map[int]any{0: 3.0}},
	})
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	result, err := exec.Execute(context.Background(), execRef, Request{
		ColID:      0,
		AggFunc:    "sum",
		PartMethod: plan.FilteredPartition{Shard: 0},
		ChunkScan:  plan.AllChunks{},
		ItemLimit:  2,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Doubles[0] != 3.0 {
		t.Fatalf("expected sum over first 2 rows (1+2=3), got %v", result.Doubles[0])
	}
}

func TestExecuteSingleShardQueryDispatchesShardAggregate(t *testing.T) {
	st := store.NewFake()
	st.Seed(execRef, "p1", 0, []store.Row{{PartitionKey: "p1", Values: map[int]any{0: 7.0}}})
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	res, err := exec.ExecuteSingleShardQuery(context.Background(), transport.SingleShardQuery{
		Ref: execRef,
		Sub: plan.ShardAggregate{ColID: 0, AggFunc: "sum", PartMethod: plan.FilteredPartition{Shard: 0}, ChunkScan: plan.AllChunks{}},
	})
	if err != nil {
		t.Fatalf("ExecuteSingleShardQuery: %v", err)
	}
	if res.Aggregate == nil || res.Aggregate.Doubles[0] != 7.0 {
		t.Fatalf("expected aggregate result 7.0, got %+v", res)
	}
}

func TestExecuteSingleShardQueryDispatchesLocalVectorReader(t *testing.T) {
	st := store.NewFake()
	st.Seed(execRef, "p1", 0, []store.Row{
		{PartitionKey: "p1", Values: map[int]any{0: 1.0}},
		{PartitionKey: "p1", Values: map[int]any{0: 2.0}},
	})
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	res, err := exec.ExecuteSingleShardQuery(context.Background(), transport.SingleShardQuery{
		Ref: execRef,
		Sub: plan.LocalVectorReader{ColIDs: []int{0}, PartMethod: plan.FilteredPartition{Shard: 0}, ChunkScan: plan.AllChunks{}},
	})
	if err != nil {
		t.Fatalf("ExecuteSingleShardQuery: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
}

func TestExecuteSingleShardQueryDispatchesStreamLastTuple(t *testing.T) {
	st := store.NewFake()
	st.Seed(execRef, "p1", 0, []store.Row{
		{PartitionKey: "p1", TimestampMs: 1, Values: map[int]any{0: 1.0}},
		{PartitionKey: "p1", TimestampMs: 2, Values: map[int]any{0: 2.0}},
	})
	exec := New(st, aggregate.NewRegistry(), discardLogger())

	res, err := exec.ExecuteSingleShardQuery(context.Background(), transport.SingleShardQuery{
		Ref: execRef,
		Sub: plan.StreamLastTuple{ColIDs: []int{0}, PartMethod: plan.FilteredPartition{Shard: 0}},
	})
	if err != nil {
		t.Fatalf("ExecuteSingleShardQuery: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0].Values[0] != 2.0 {
		t.Fatalf("expected exactly the most recent row, got %+v", res.Rows)
	}
}
