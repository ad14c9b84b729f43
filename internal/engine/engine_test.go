package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/codec"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/shardmap"
	"github.com/cloudimpl/tsqcoord/internal/transport"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClient is a scripted transport.ShardClient: each call pops the next
// (result, error) pair, repeating the last entry once exhausted.
type fakeClient struct {
	mu      sync.Mutex
	script  []fakeReply
	calls   int
}

type fakeReply struct {
	result transport.ShardResult
	err    error
}

func (c *fakeClient) ExecuteSingleShardQuery(ctx context.Context, req transport.SingleShardQuery) (transport.ShardResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	c.calls++
	reply := c.script[idx]
	return reply.result, reply.err
}

func (c *fakeClient) Close() error { return nil }

type fakeTransport struct {
	clients map[string]*fakeClient
}

func (f *fakeTransport) NewShardClient(address string) (transport.ShardClient, error) {
	c, ok := f.clients[address]
	if !ok {
		return nil, apperr.NodeUnavailable(address)
	}
	return c, nil
}
func (f *fakeTransport) NewRouterClient(address string) (transport.RouterClient, error) { return nil, nil }
func (f *fakeTransport) StartRouterServer(address string, svc transport.RouterService) error {
	return nil
}
func (f *fakeTransport) StartShardServer(address string, svc transport.ShardService) error {
	return nil
}
func (f *fakeTransport) Stop() error { return nil }

func activeShardMap(owners map[uint32]string) *shardmap.Map {
	sm := shardmap.New()
	for shard, addr := range owners {
		sm.Apply(shardmap.Event{Shard: shardmap.ID(shard), Owner: shardmap.NodeAddress(addr), Type: shardmap.EventActivated})
	}
	return sm
}

func sumDistributeConcat(shards []uint32, combine bool) plan.DistributeConcat {
	methods := make([]plan.PartitionScanMethod, 0, len(shards))
	for _, s := range shards {
		methods = append(methods, plan.FilteredPartition{Shard: s})
	}
	dc := plan.DistributeConcat{
		PartMethods: methods,
		Parallelism: 4,
		ItemLimit:   100,
		LocalPlan: func(m plan.PartitionScanMethod) plan.PhysicalPlan {
			return plan.ShardAggregate{ColID: 0, AggFunc: "sum", PartMethod: m, ChunkScan: plan.AllChunks{}}
		},
	}
	if combine {
		reg := aggregate.NewRegistry()
		comb, _ := reg.LookupCombiner("sum")
		dc.Combine = &plan.CombineSpec{CombFunc: "sum", Combiner: comb}
	}
	return dc
}

func TestEngineCombinesShardAggregatesIntoOneResult(t *testing.T) {
	tp := &fakeTransport{clients: map[string]*fakeClient{
		"n0": {script: []fakeReply{{result: transport.ShardResult{Aggregate: &aggregate.Aggregate{Class: aggregate.ClassDouble, Cardinality: 1, Doubles: []float64{3}}}}}},
		"n1": {script: []fakeReply{{result: transport.ShardResult{Aggregate: &aggregate.Aggregate{Class: aggregate.ClassDouble, Cardinality: 1, Doubles: []float64{4}}}}}},
	}}
	sm := activeShardMap(map[uint32]string{0: "n0", 1: "n1"})
	e := New(tp, discardLogger())

	result, err := e.Execute(context.Background(), dataset.Ref{Name: "d"}, sumDistributeConcat([]uint32{0, 1}, true), nil, sm, config.DefaultQueryOptions())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	tr, ok := result.(codec.TupleResult)
	if !ok {
		t.Fatalf("expected TupleResult, got %T", result)
	}
	if tr.Values["result"] != 7.0 {
		t.Fatalf("expected combined sum 7.0, got %v", tr.Values["result"])
	}
}

func TestEngineConcatenatesRowsInAscendingShardOrder(t *testing.T) {
	tp := &fakeTransport{clients: map[string]*fakeClient{
		"n0": {script: []fakeReply{{result: transport.ShardResult{Rows: []transport.ShardRow{{Values: map[int]any{0: 1.0}}}}}}},
		"n1": {script: []fakeReply{{result: transport.ShardResult{Rows: []transport.ShardRow{{Values: map[int]any{0: 2.0}}}}}}},
	}}
	sm := activeShardMap(map[uint32]string{0: "n0", 1: "n1"})
	e := New(tp, discardLogger())

	dc := plan.DistributeConcat{
		PartMethods: []plan.PartitionScanMethod{plan.FilteredPartition{Shard: 0}, plan.FilteredPartition{Shard: 1}},
		Parallelism: 4,
		ItemLimit:   10,
		LocalPlan: func(m plan.PartitionScanMethod) plan.PhysicalPlan {
			return plan.LocalVectorReader{ColIDs: []int{0}, PartMethod: m, ChunkScan: plan.AllChunks{}}
		},
	}
	cols := []dataset.Column{{ID: 0, Name: "value", Type: dataset.ColDouble}}

	result, err := e.Execute(context.Background(), dataset.Ref{Name: "d"}, dc, cols, sm, config.DefaultQueryOptions())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	vr := result.(codec.VectorResult)
	got := vr.Columns["value"].Doubles
	if len(got) != 2 || got[0] != 1.0 || got[1] != 2.0 {
		t.Fatalf("expected [1.0, 2.0] in shard order, got %v", got)
	}
}

func TestEngineRetriesRetriableShardErrorWithFreshSnapshot(t *testing.T) {
	tp := &fakeTransport{clients: map[string]*fakeClient{
		"n0": {script: []fakeReply{
			{err: apperr.NodeUnavailable("n0")},
			{result: transport.ShardResult{Aggregate: &aggregate.Aggregate{Class: aggregate.ClassDouble, Cardinality: 1, Doubles: []float64{5}}}},
		}},
	}}
	sm := activeShardMap(map[uint32]string{0: "n0"})
	e := New(tp, discardLogger())

	result, err := e.Execute(context.Background(), dataset.Ref{Name: "d"}, sumDistributeConcat([]uint32{0}, true), nil, sm, config.DefaultQueryOptions())
	if err != nil {
		t.Fatalf("expected the second, successful attempt to win out, got error: %v", err)
	}
	tr := result.(codec.TupleResult)
	if tr.Values["result"] != 5.0 {
		t.Fatalf("expected 5.0 after retry, got %v", tr.Values["result"])
	}
	if tp.clients["n0"].calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", tp.clients["n0"].calls)
	}
}

func TestEngineNonRetriableErrorAbortsScatterImmediately(t *testing.T) {
	tp := &fakeTransport{clients: map[string]*fakeClient{
		"n0": {script: []fakeReply{{err: apperr.UnsupportedPlan("bad plan")}}},
	}}
	sm := activeShardMap(map[uint32]string{0: "n0"})
	e := New(tp, discardLogger())

	_, err := e.Execute(context.Background(), dataset.Ref{Name: "d"}, sumDistributeConcat([]uint32{0}, true), nil, sm, config.DefaultQueryOptions())
	if err == nil {
		t.Fatalf("expected an error to propagate")
	}
	if tp.clients["n0"].calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retriable error, got %d", tp.clients["n0"].calls)
	}
}

func TestEngineShardNotActiveFailsClosedWithoutOwner(t *testing.T) {
	tp := &fakeTransport{clients: map[string]*fakeClient{}}
	sm := shardmap.New() // no shards registered at all
	e := New(tp, discardLogger())

	_, err := e.Execute(context.Background(), dataset.Ref{Name: "d"}, sumDistributeConcat([]uint32{0}, true), nil, sm, config.DefaultQueryOptions())
	if err == nil {
		t.Fatalf("expected ShardNotActive error for an unknown shard")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindShardNotActive {
		t.Fatalf("expected ShardNotActive, got %v", err)
	}
}
