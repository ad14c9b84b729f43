package transport

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryTransport implements Transport for in-process communication,
// directly adapted from cloudimpl-ByteDB's MemoryTransport (renamed from
// coordinator/worker to router/shard terminology). Useful for tests and
// single-binary deployments where every router and shard lives in one
// process.
type InMemoryTransport struct {
	mu      sync.RWMutex
	routers map[string]RouterService
	shards  map[string]ShardService
}

func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{
		routers: make(map[string]RouterService),
		shards:  make(map[string]ShardService),
	}
}

func (t *InMemoryTransport) NewRouterClient(address string) (RouterClient, error) {
	t.mu.RLock()
	svc, ok := t.routers[address]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: no router at address %s", address)
	}
	return &inMemoryRouterClient{svc: svc}, nil
}

func (t *InMemoryTransport) NewShardClient(address string) (ShardClient, error) {
	t.mu.RLock()
	svc, ok := t.shards[address]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("transport: no shard service at address %s", address)
	}
	return &inMemoryShardClient{svc: svc}, nil
}

func (t *InMemoryTransport) StartRouterServer(address string, svc RouterService) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.routers[address]; exists {
		return fmt.Errorf("transport: router already running at address %s", address)
	}
	t.routers[address] = svc
	return nil
}

func (t *InMemoryTransport) StartShardServer(address string, svc ShardService) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.shards[address]; exists {
		return fmt.Errorf("transport: shard service already running at address %s", address)
	}
	t.shards[address] = svc
	return nil
}

// Stop clears the registrations; it does not shut down the underlying
// services, which remain the caller's responsibility.
func (t *InMemoryTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routers = make(map[string]RouterService)
	t.shards = make(map[string]ShardService)
	return nil
}

type inMemoryRouterClient struct{ svc RouterService }

func (c *inMemoryRouterClient) LogicalPlanQuery(ctx context.Context, req LogicalPlanQuery) Reply {
	return c.svc.LogicalPlanQuery(ctx, req)
}
func (c *inMemoryRouterClient) ExecPlanQuery(ctx context.Context, req ExecPlanQuery) Reply {
	return c.svc.ExecPlanQuery(ctx, req)
}
func (c *inMemoryRouterClient) GetIndexNames(ctx context.Context, req GetIndexNames) ([]string, error) {
	return c.svc.GetIndexNames(ctx, req)
}
func (c *inMemoryRouterClient) GetIndexValues(ctx context.Context, req GetIndexValues) ([]string, error) {
	return c.svc.GetIndexValues(ctx, req)
}
func (c *inMemoryRouterClient) Close() error { return nil }

type inMemoryShardClient struct{ svc ShardService }

// ExecuteSingleShardQuery round-trips the reply through encodeShardResult/
// decodeShardResult even though both ends share a process: this is the
// wire-format seam a gRPC or HTTP transport would occupy, and exercising
// it here means a shard-local bug in that encoding surfaces in tests
// instead of only in a networked deployment.
func (c *inMemoryShardClient) ExecuteSingleShardQuery(ctx context.Context, req SingleShardQuery) (ShardResult, error) {
	result, err := c.svc.ExecuteSingleShardQuery(ctx, req)
	if err != nil {
		return ShardResult{}, err
	}
	wire, err := encodeShardResult(result)
	if err != nil {
		return ShardResult{}, err
	}
	return decodeShardResult(wire)
}
func (c *inMemoryShardClient) Close() error { return nil }
