package codec

import (
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
)

func TestEncodeAggregateScalarDoubleProducesTupleResult(t *testing.T) {
	agg := aggregate.Aggregate{Class: aggregate.ClassDouble, Cardinality: 1, Doubles: []float64{4.5}}
	res, err := EncodeAggregate(agg)
	if err != nil {
		t.Fatalf("EncodeAggregate: %v", err)
	}
	tr, ok := res.(TupleResult)
	if !ok {
		t.Fatalf("expected TupleResult for scalar aggregate, got %T", res)
	}
	if tr.Values["result"] != 4.5 {
		t.Fatalf("expected 4.5, got %v", tr.Values["result"])
	}
}

func TestEncodeAggregateMultiCardinalityProducesVectorResult(t *testing.T) {
	agg := aggregate.Aggregate{Class: aggregate.ClassDouble, Cardinality: 3, Doubles: []float64{1, 2, 3}}
	res, err := EncodeAggregate(agg)
	if err != nil {
		t.Fatalf("EncodeAggregate: %v", err)
	}
	vr, ok := res.(VectorResult)
	if !ok {
		t.Fatalf("expected VectorResult for multi-cardinality aggregate, got %T", res)
	}
	if vr.Columns["result"].Len() != 3 {
		t.Fatalf("expected 3 values, got %d", vr.Columns["result"].Len())
	}
}

func TestEncodeAggregateWideIntUsesLongColumn(t *testing.T) {
	agg := aggregate.Aggregate{Class: aggregate.ClassInt, Cardinality: 1, Wide: true, Ints: []int64{42}}
	res, err := EncodeAggregate(agg)
	if err != nil {
		t.Fatalf("EncodeAggregate: %v", err)
	}
	tr := res.(TupleResult)
	if tr.Schema[0].Type != dataset.ColLong {
		t.Fatalf("expected ColLong for a wide int aggregate, got %v", tr.Schema[0].Type)
	}
}

func TestEncodeAggregateHistogramProducesCountsAndBucketMax(t *testing.T) {
	agg := aggregate.Aggregate{Class: aggregate.ClassHistogram, Counts: []int64{3, 1, 0}, BucketMax: []float64{10, 100, 1000}}
	res, err := EncodeAggregate(agg)
	if err != nil {
		t.Fatalf("EncodeAggregate: %v", err)
	}
	vr := res.(VectorResult)
	if vr.Columns["counts"].Len() != 3 || vr.Columns["bucketMax"].Len() != 3 {
		t.Fatalf("expected 3-length counts and bucketMax vectors, got %+v", vr.Columns)
	}
}

func TestBuildVectorResultProjectsEachColumnIndependently(t *testing.T) {
	cols := []dataset.Column{
		{ID: 0, Name: "value", Type: dataset.ColDouble},
		{ID: 1, Name: "t", Type: dataset.ColTimestamp},
	}
	rows := []map[int]any{
		{0: 1.5, 1: int64(100)},
		{0: 2.5, 1: int64(200)},
	}
	vr := BuildVectorResult(cols, rows)
	if vr.Columns["value"].Len() != 2 || vr.Columns["t"].Len() != 2 {
		t.Fatalf("expected 2-row columns, got %+v", vr.Columns)
	}
	if vr.Columns["value"].Doubles[1] != 2.5 {
		t.Fatalf("expected second value row 2.5, got %v", vr.Columns["value"].Doubles[1])
	}
	if vr.Columns["t"].Int64s[0] != 100 {
		t.Fatalf("expected first timestamp row 100, got %v", vr.Columns["t"].Int64s[0])
	}
}

func TestBuildTupleResultMapsColumnIDsToNames(t *testing.T) {
	cols := []dataset.Column{{ID: 5, Name: "value", Type: dataset.ColDouble}}
	tr := BuildTupleResult(cols, map[int]any{5: 9.9})
	if tr.Values["value"] != 9.9 {
		t.Fatalf("expected value 9.9 under key \"value\", got %v", tr.Values["value"])
	}
}
