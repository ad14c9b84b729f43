package aggregate

import (
	"strings"
	"sync"
)

// Registry resolves case-insensitive function names to Aggregators and
// Combiners, per spec §4.1 ("matching of function names is case-insensitive").
// Unknown names never panic — callers surface a NoSuchFunction error.
type Registry struct {
	mu         sync.RWMutex
	aggregators map[string]func() Aggregator
	combiners   map[string]func() Combiner
}

// NewRegistry returns a Registry pre-populated with the built-in functions.
func NewRegistry() *Registry {
	r := &Registry{
		aggregators: make(map[string]func() Aggregator),
		combiners:   make(map[string]func() Combiner),
	}
	registerBuiltins(r)
	return r
}

func (r *Registry) RegisterAggregator(name string, factory func() Aggregator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregators[strings.ToLower(name)] = factory
}

func (r *Registry) RegisterCombiner(name string, factory func() Combiner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.combiners[strings.ToLower(name)] = factory
}

// LookupAggregator returns the Aggregator registered under name (case
// insensitive), or false if none is registered.
func (r *Registry) LookupAggregator(name string) (Aggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.aggregators[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return factory(), true
}

// LookupCombiner returns the Combiner registered under name (case
// insensitive), or false if none is registered.
func (r *Registry) LookupCombiner(name string) (Combiner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.combiners[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return factory(), true
}

func registerBuiltins(r *Registry) {
	r.RegisterAggregator("sum", func() Aggregator { return newSumAggregator() })
	r.RegisterAggregator("min", func() Aggregator { return newMinMaxAggregator(true) })
	r.RegisterAggregator("max", func() Aggregator { return newMinMaxAggregator(false) })
	r.RegisterAggregator("count", func() Aggregator { return newCountAggregator() })
	r.RegisterAggregator("avg", func() Aggregator { return newAvgAggregator() })
	r.RegisterAggregator("histogram", func() Aggregator { return newHistogramAggregator(defaultBucketMax) })

	r.RegisterCombiner("sum", func() Combiner { return newSumCombiner() })
	r.RegisterCombiner("min", func() Combiner { return newMinMaxCombiner(true) })
	r.RegisterCombiner("max", func() Combiner { return newMinMaxCombiner(false) })
	r.RegisterCombiner("avg", func() Combiner { return newAvgCombiner() })
	r.RegisterCombiner("histogram", func() Combiner { return newHistogramCombiner() })
}
