package aggregate

import (
	"fmt"
	"math"
)

// defaultBucketMax are the histogram's upper bucket boundaries, in
// aggregator order. The final +Inf bucket catches all overflow.
var defaultBucketMax = []float64{10, 50, 100, 500, 1000, 5000, math.Inf(1)}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case nil:
		return 0, fmt.Errorf("aggregate: nil value")
	default:
		return 0, fmt.Errorf("aggregate: value %v is not numeric", v)
	}
}

// --- sum ---

type sumAggregator struct{}

func newSumAggregator() Aggregator { return sumAggregator{} }

func (sumAggregator) Name() string           { return "sum" }
func (sumAggregator) ResultClass() ResultClass { return ClassDouble }
func (sumAggregator) Cardinality() int       { return 1 }
func (sumAggregator) Wide() bool             { return false }
func (sumAggregator) Arity() int             { return 0 }
func (sumAggregator) NewState() State        { return &sumState{} }

type sumState struct{ sum float64 }

func (s *sumState) Fold(v any) error {
	f, err := toFloat64(v)
	if err != nil {
		return err
	}
	s.sum += f
	return nil
}
func (s *sumState) Done() bool { return false }
func (s *sumState) Result() Aggregate {
	return Aggregate{Class: ClassDouble, Cardinality: 1, Doubles: []float64{s.sum}}
}

type sumCombiner struct{}

func newSumCombiner() Combiner { return sumCombiner{} }

func (sumCombiner) Name() string { return "sum" }
func (sumCombiner) Arity() int   { return 0 }
func (sumCombiner) Zero(class ResultClass, cardinality int, wide bool) Aggregate {
	return zeroAggregate(class, cardinality, wide)
}
func (sumCombiner) Combine(a, b Aggregate) (Aggregate, error) { return elementwise(a, b, func(x, y float64) float64 { return x + y }, func(x, y int64) int64 { return x + y }) }
func (sumCombiner) Associative() bool                          { return true }
func (sumCombiner) Commutative() bool                           { return true }
func (sumCombiner) Finalize(a Aggregate) Aggregate              { return a }

// --- count ---

type countAggregator struct{}

func newCountAggregator() Aggregator { return countAggregator{} }

func (countAggregator) Name() string            { return "count" }
func (countAggregator) ResultClass() ResultClass { return ClassLong }
func (countAggregator) Cardinality() int        { return 1 }
func (countAggregator) Wide() bool              { return true }
func (countAggregator) Arity() int              { return 0 }
func (countAggregator) NewState() State         { return &countState{} }

type countState struct{ n int64 }

func (s *countState) Fold(any) error { s.n++; return nil }
func (s *countState) Done() bool     { return false }
func (s *countState) Result() Aggregate {
	return Aggregate{Class: ClassLong, Cardinality: 1, Wide: true, Ints: []int64{s.n}}
}

// --- min / max ---

type minMaxAggregator struct{ isMin bool }

func newMinMaxAggregator(isMin bool) Aggregator { return minMaxAggregator{isMin: isMin} }

func (a minMaxAggregator) Name() string {
	if a.isMin {
		return "min"
	}
	return "max"
}
func (minMaxAggregator) ResultClass() ResultClass { return ClassDouble }
func (minMaxAggregator) Cardinality() int         { return 1 }
func (minMaxAggregator) Wide() bool               { return false }
func (minMaxAggregator) Arity() int               { return 0 }
func (a minMaxAggregator) NewState() State        { return &minMaxState{isMin: a.isMin} }

type minMaxState struct {
	isMin bool
	val   float64
	has   bool
}

func (s *minMaxState) Fold(v any) error {
	f, err := toFloat64(v)
	if err != nil {
		return err
	}
	if !s.has || (s.isMin && f < s.val) || (!s.isMin && f > s.val) {
		s.val, s.has = f, true
	}
	return nil
}
func (s *minMaxState) Done() bool { return false }
func (s *minMaxState) Result() Aggregate {
	return Aggregate{Class: ClassDouble, Cardinality: 1, Doubles: []float64{s.val}}
}

type minMaxCombiner struct{ isMin bool }

func newMinMaxCombiner(isMin bool) Combiner { return minMaxCombiner{isMin: isMin} }

func (c minMaxCombiner) Name() string {
	if c.isMin {
		return "min"
	}
	return "max"
}
func (minMaxCombiner) Arity() int { return 0 }
func (c minMaxCombiner) Zero(class ResultClass, cardinality int, wide bool) Aggregate {
	z := zeroAggregate(class, cardinality, wide)
	fill := math.Inf(1)
	if !c.isMin {
		fill = math.Inf(-1)
	}
	for i := range z.Doubles {
		z.Doubles[i] = fill
	}
	return z
}
func (c minMaxCombiner) Combine(a, b Aggregate) (Aggregate, error) {
	pick := func(x, y float64) float64 {
		if c.isMin {
			if x < y {
				return x
			}
			return y
		}
		if x > y {
			return x
		}
		return y
	}
	return elementwise(a, b, pick, func(x, y int64) int64 {
		if c.isMin {
			if x < y {
				return x
			}
			return y
		}
		if x > y {
			return x
		}
		return y
	})
}
func (minMaxCombiner) Associative() bool { return true }
func (minMaxCombiner) Commutative() bool { return true }
func (minMaxCombiner) Finalize(a Aggregate) Aggregate { return a }

// --- avg ---
// The in-flight Aggregate carries the running sum in Doubles[0] and the
// running count in Ints[0]; Combine merges both elementwise (a pair of
// associative sums). Combiner.Finalize collapses them into the single
// externally visible mean once all shard partials have been folded in.

type avgAggregator struct{}

func newAvgAggregator() Aggregator { return avgAggregator{} }

func (avgAggregator) Name() string            { return "avg" }
func (avgAggregator) ResultClass() ResultClass { return ClassDouble }
func (avgAggregator) Cardinality() int        { return 1 }
func (avgAggregator) Wide() bool              { return false }
func (avgAggregator) Arity() int              { return 0 }
func (avgAggregator) NewState() State         { return &avgState{} }

type avgState struct {
	sum   float64
	count int64
}

func (s *avgState) Fold(v any) error {
	f, err := toFloat64(v)
	if err != nil {
		return err
	}
	s.sum += f
	s.count++
	return nil
}
func (s *avgState) Done() bool { return false }
func (s *avgState) Result() Aggregate {
	return Aggregate{Class: ClassDouble, Cardinality: 1, Doubles: []float64{s.sum}, Ints: []int64{s.count}}
}

type avgCombiner struct{}

func newAvgCombiner() Combiner { return avgCombiner{} }

func (avgCombiner) Name() string { return "avg" }
func (avgCombiner) Arity() int   { return 0 }
func (avgCombiner) Zero(class ResultClass, cardinality int, wide bool) Aggregate {
	return Aggregate{Class: ClassDouble, Cardinality: 1, Doubles: []float64{0}, Ints: []int64{0}}
}
func (avgCombiner) Combine(a, b Aggregate) (Aggregate, error) {
	if len(a.Doubles) != 1 || len(b.Doubles) != 1 || len(a.Ints) != 1 || len(b.Ints) != 1 {
		return Aggregate{}, fmt.Errorf("aggregate: avg combine expects sum+count pairs")
	}
	return Aggregate{
		Class:       ClassDouble,
		Cardinality: 1,
		Doubles:     []float64{a.Doubles[0] + b.Doubles[0]},
		Ints:        []int64{a.Ints[0] + b.Ints[0]},
	}, nil
}
func (avgCombiner) Associative() bool { return true }
func (avgCombiner) Commutative() bool { return true }
func (avgCombiner) Finalize(a Aggregate) Aggregate {
	mean := 0.0
	if len(a.Ints) == 1 && a.Ints[0] > 0 && len(a.Doubles) == 1 {
		mean = a.Doubles[0] / float64(a.Ints[0])
	}
	return Aggregate{Class: ClassDouble, Cardinality: 1, Doubles: []float64{mean}}
}

// --- histogram ---

type histogramAggregator struct{ bucketMax []float64 }

func newHistogramAggregator(bucketMax []float64) Aggregator {
	return histogramAggregator{bucketMax: bucketMax}
}

func (histogramAggregator) Name() string            { return "histogram" }
func (histogramAggregator) ResultClass() ResultClass { return ClassHistogram }
func (h histogramAggregator) Cardinality() int       { return len(h.bucketMax) }
func (histogramAggregator) Wide() bool               { return false }
func (histogramAggregator) Arity() int               { return 0 }
func (h histogramAggregator) NewState() State {
	return &histogramState{bucketMax: h.bucketMax, counts: make([]int64, len(h.bucketMax))}
}

type histogramState struct {
	bucketMax []float64
	counts    []int64
}

func (s *histogramState) Fold(v any) error {
	f, err := toFloat64(v)
	if err != nil {
		return err
	}
	for i, max := range s.bucketMax {
		if f <= max {
			s.counts[i]++
			return nil
		}
	}
	s.counts[len(s.counts)-1]++
	return nil
}
func (s *histogramState) Done() bool { return false }
func (s *histogramState) Result() Aggregate {
	return Aggregate{
		Class:       ClassHistogram,
		Cardinality: len(s.counts),
		Counts:      append([]int64(nil), s.counts...),
		BucketMax:   append([]float64(nil), s.bucketMax...),
	}
}

type histogramCombiner struct{}

func newHistogramCombiner() Combiner { return histogramCombiner{} }

func (histogramCombiner) Name() string { return "histogram" }
func (histogramCombiner) Arity() int   { return 0 }
func (histogramCombiner) Zero(class ResultClass, cardinality int, wide bool) Aggregate {
	return Aggregate{Class: ClassHistogram, Cardinality: cardinality, Counts: make([]int64, cardinality)}
}
func (histogramCombiner) Combine(a, b Aggregate) (Aggregate, error) {
	if len(a.Counts) != len(b.Counts) {
		return Aggregate{}, fmt.Errorf("aggregate: histogram combine expects matching bucket schemas")
	}
	out := Aggregate{Class: ClassHistogram, Cardinality: len(a.Counts), Counts: make([]int64, len(a.Counts)), BucketMax: a.BucketMax}
	for i := range a.Counts {
		out.Counts[i] = a.Counts[i] + b.Counts[i]
	}
	return out, nil
}
func (histogramCombiner) Associative() bool             { return true }
func (histogramCombiner) Commutative() bool              { return true }
func (histogramCombiner) Finalize(a Aggregate) Aggregate { return a }

// zeroAggregate builds a Combiner.Zero value of the given shape.
func zeroAggregate(class ResultClass, cardinality int, wide bool) Aggregate {
	a := Aggregate{Class: class, Cardinality: cardinality, Wide: wide}
	switch class {
	case ClassDouble:
		a.Doubles = make([]float64, cardinality)
	case ClassInt, ClassLong:
		a.Ints = make([]int64, cardinality)
	case ClassHistogram:
		a.Counts = make([]int64, cardinality)
	}
	return a
}

// elementwise applies fOp/iOp pairwise across a and b's Doubles/Ints.
func elementwise(a, b Aggregate, fOp func(x, y float64) float64, iOp func(x, y int64) int64) (Aggregate, error) {
	if a.Class != b.Class {
		return Aggregate{}, fmt.Errorf("aggregate: combine class mismatch (%v vs %v)", a.Class, b.Class)
	}
	out := Aggregate{Class: a.Class, Cardinality: a.Cardinality, Wide: a.Wide}
	if len(a.Doubles) > 0 {
		if len(a.Doubles) != len(b.Doubles) {
			return Aggregate{}, fmt.Errorf("aggregate: combine cardinality mismatch")
		}
		out.Doubles = make([]float64, len(a.Doubles))
		for i := range a.Doubles {
			out.Doubles[i] = fOp(a.Doubles[i], b.Doubles[i])
		}
	}
	if len(a.Ints) > 0 {
		if len(a.Ints) != len(b.Ints) {
			return Aggregate{}, fmt.Errorf("aggregate: combine cardinality mismatch")
		}
		out.Ints = make([]int64, len(a.Ints))
		for i := range a.Ints {
			out.Ints[i] = iOp(a.Ints[i], b.Ints[i])
		}
	}
	return out, nil
}
