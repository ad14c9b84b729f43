package transport

import (
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
)

func TestEncodeDecodeShardResultRoundTripsAggregate(t *testing.T) {
	want := ShardResult{Aggregate: &aggregate.Aggregate{Doubles: []float64{3.5}, Cardinality: 7}}
	wire, err := encodeShardResult(want)
	if err != nil {
		t.Fatalf("encodeShardResult: %v", err)
	}
	got, err := decodeShardResult(wire)
	if err != nil {
		t.Fatalf("decodeShardResult: %v", err)
	}
	if got.Aggregate == nil || got.Aggregate.Doubles[0] != 3.5 || got.Aggregate.Cardinality != 7 {
		t.Fatalf("round trip mismatch: got %+v", got.Aggregate)
	}
}

func TestEncodeDecodeShardResultRoundTripsRows(t *testing.T) {
	want := ShardResult{Rows: []ShardRow{
		{PartitionKey: "p1", Values: map[int]any{0: int32(1), 1: "hello", 2: 2.5}},
	}}
	wire, err := encodeShardResult(want)
	if err != nil {
		t.Fatalf("encodeShardResult: %v", err)
	}
	got, err := decodeShardResult(wire)
	if err != nil {
		t.Fatalf("decodeShardResult: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].PartitionKey != "p1" {
		t.Fatalf("round trip mismatch: got %+v", got.Rows)
	}
	if got.Rows[0].Values[0] != int32(1) || got.Rows[0].Values[1] != "hello" || got.Rows[0].Values[2] != 2.5 {
		t.Fatalf("row values mismatch: got %+v", got.Rows[0].Values)
	}
}
