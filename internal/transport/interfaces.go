package transport

import "context"

// RouterService is what a client (or a sibling coordinator node) calls to
// reach a per-dataset QueryRouter.
type RouterService interface {
	LogicalPlanQuery(ctx context.Context, req LogicalPlanQuery) Reply
	ExecPlanQuery(ctx context.Context, req ExecPlanQuery) Reply
	GetIndexNames(ctx context.Context, req GetIndexNames) ([]string, error)
	GetIndexValues(ctx context.Context, req GetIndexValues) ([]string, error)
}

// ShardService is what the Engine calls on the node that owns a shard.
type ShardService interface {
	ExecuteSingleShardQuery(ctx context.Context, req SingleShardQuery) (ShardResult, error)
}

// RouterClient is the coordinator-side handle to a remote RouterService.
type RouterClient interface {
	RouterService
	Close() error
}

// ShardClient is the Engine-side handle to a remote ShardService.
type ShardClient interface {
	ShardService
	Close() error
}

// Transport is the communication medium abstraction: a real implementation
// would be gRPC or HTTP; InMemoryTransport wires router/shard services
// directly together in-process for tests and single-binary deployments.
type Transport interface {
	NewRouterClient(address string) (RouterClient, error)
	NewShardClient(address string) (ShardClient, error)
	StartRouterServer(address string, svc RouterService) error
	StartShardServer(address string, svc ShardService) error
	Stop() error
}
