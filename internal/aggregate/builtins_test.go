package aggregate

import "testing"

func TestSumFoldAndCombine(t *testing.T) {
	agg := newSumAggregator()
	s := agg.NewState()
	for _, v := range []float64{1, 2, 3} {
		if err := s.Fold(v); err != nil {
			t.Fatalf("Fold: %v", err)
		}
	}
	partial := s.Result()
	if partial.Doubles[0] != 6 {
		t.Fatalf("expected sum 6, got %v", partial.Doubles[0])
	}

	comb := newSumCombiner()
	merged, err := comb.Combine(partial, partial)
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if merged.Doubles[0] != 12 {
		t.Fatalf("expected combined sum 12, got %v", merged.Doubles[0])
	}
}

func TestAvgRoundTripsThroughCombine(t *testing.T) {
	agg := newAvgAggregator()

	shard1 := agg.NewState()
	for _, v := range []float64{2, 4} {
		_ = shard1.Fold(v)
	}
	shard2 := agg.NewState()
	for _, v := range []float64{6} {
		_ = shard2.Fold(v)
	}

	comb := newAvgCombiner()
	merged, err := comb.Combine(shard1.Result(), shard2.Result())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	final := comb.Finalize(merged)
	if final.Doubles[0] != 4 {
		t.Fatalf("expected mean 4, got %v", final.Doubles[0])
	}
}

func TestAvgSingleShardMatchesReduceEachAlone(t *testing.T) {
	// ReducePartitions(comb, ReduceEach(agg, plan)) on one shard must equal
	// ReduceEach(agg, plan) alone (spec round-trip law).
	agg := newAvgAggregator()
	s := agg.NewState()
	for _, v := range []float64{10, 20, 30} {
		_ = s.Fold(v)
	}
	direct := s.Result()
	directMean := direct.Doubles[0] / float64(direct.Ints[0])

	comb := newAvgCombiner()
	finalized := comb.Finalize(direct)
	if finalized.Doubles[0] != directMean {
		t.Fatalf("expected %v, got %v", directMean, finalized.Doubles[0])
	}
}

func TestMinMaxCombine(t *testing.T) {
	minAgg := newMinMaxAggregator(true)
	s1 := minAgg.NewState()
	_ = s1.Fold(5.0)
	_ = s1.Fold(2.0)
	s2 := minAgg.NewState()
	_ = s2.Fold(9.0)
	_ = s2.Fold(-1.0)

	comb := newMinMaxCombiner(true)
	merged, err := comb.Combine(s1.Result(), s2.Result())
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if merged.Doubles[0] != -1.0 {
		t.Fatalf("expected min -1, got %v", merged.Doubles[0])
	}
}

func TestHistogramBucketsCounts(t *testing.T) {
	agg := newHistogramAggregator(defaultBucketMax)
	s := agg.NewState()
	for _, v := range []float64{1, 20, 2000, 999999} {
		if err := s.Fold(v); err != nil {
			t.Fatalf("Fold: %v", err)
		}
	}
	result := s.Result()
	var total int64
	for _, c := range result.Counts {
		total += c
	}
	if total != 4 {
		t.Fatalf("expected 4 total samples across buckets, got %d", total)
	}
	if result.Counts[len(result.Counts)-1] != 1 {
		t.Fatalf("expected exactly 1 overflow sample, got %d", result.Counts[len(result.Counts)-1])
	}
}

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.LookupAggregator("SUM"); !ok {
		t.Fatalf("expected case-insensitive lookup of SUM to succeed")
	}
	if _, ok := r.LookupAggregator("nonexistent"); ok {
		t.Fatalf("expected lookup of unregistered name to fail")
	}
}
