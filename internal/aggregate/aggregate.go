// Package aggregate implements the Aggregator/Combiner capability pair
// described in spec §3/§9: rather than class-based dispatch, each
// function is a small interface exposing init/fold/finalize plus the
// metadata the ResultCodec needs (result class, cardinality, zero value).
// Grounded on cloudimpl-ByteDB/backend/distributed/planner's
// AggregateFunction{PartialFunction, CombineFunction} shape, generalized
// from "SQL aggregate push-down" into a registered capability interface.
package aggregate

// ResultClass is the scalar kind an Aggregator produces, per spec §3.
type ResultClass int

const (
	ClassInt ResultClass = iota
	ClassLong
	ClassDouble
	ClassHistogram
)

// Aggregate is the per-shard partial result of an Aggregator, or the
// merged result after a Combiner folds shard partials together (spec
// §3/GLOSSARY). Doubles/Ints carry the payload; which is populated
// depends on Class. Avg-style aggregators may carry more than one
// element internally (e.g. [sum, count]) until Combiner.Finalize collapses
// it to the single externally visible value.
type Aggregate struct {
	Class       ResultClass
	Cardinality int // 1, or len(Doubles)/len(Ints)/len(Counts) for N
	Wide        bool
	Doubles     []float64
	Ints        []int64
	Counts      []int64   // Histogram only, parallel to BucketMax
	BucketMax   []float64 // Histogram only, aggregator bucket order
}

// Aggregator is the per-row fold plus the metadata the Validator and
// ResultCodec need to resolve and encode it (spec §4.1/§4.6).
type Aggregator interface {
	Name() string
	ResultClass() ResultClass
	Cardinality() int
	Wide() bool
	// Arity is the number of extra arguments (beyond the target column)
	// this aggregator requires, used by Validator.resolve_aggregator's
	// arity check.
	Arity() int
	NewState() State
}

// State is one (queryId, shard) instance of an Aggregator's fold,
// exclusively owned by a single shard executor invocation (spec §3).
type State interface {
	// Fold accumulates a single column value.
	Fold(value any) error
	// Done reports whether the aggregator has seen enough input (e.g. a
	// TopK that only needs its first K rows) and further Fold calls may
	// be skipped.
	Done() bool
	// Result finalizes this shard's partial Aggregate.
	Result() Aggregate
}

// Combiner is the binary fold merging shard partials into one Aggregate
// (spec §3/§4.3).
type Combiner interface {
	Name() string
	Arity() int
	Zero(class ResultClass, cardinality int, wide bool) Aggregate
	Combine(a, b Aggregate) (Aggregate, error)
	Associative() bool
	Commutative() bool
	// Finalize performs any one-time adjustment needed after all shard
	// partials have been combined (e.g. avg's sum/count -> mean division).
	// The default is the identity function.
	Finalize(a Aggregate) Aggregate
}
