// Package transport defines the coordinator's client-facing message
// protocol and node-to-node RPC as a Go interface pair (spec §6.3/§6.4),
// directly generalized from cloudimpl-ByteDB/backend/distributed/
// communication's Transport/*Client/*Service interfaces and
// MemoryTransport, renamed from coordinator/worker to router/shard
// terminology. A real network transport (gRPC, HTTP) is out of scope —
// wire serialization is an external collaborator per spec §1 — but this
// is the seam such an implementation would satisfy.
package transport

import (
	"github.com/cloudimpl/tsqcoord/internal/aggregate"
	"github.com/cloudimpl/tsqcoord/internal/codec"
	"github.com/cloudimpl/tsqcoord/internal/config"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/pkg/queryid"
)

// LogicalPlanQuery enters the Validator -> Planner -> Engine pipeline.
type LogicalPlanQuery struct {
	Ref     dataset.Ref
	Plan    plan.LogicalPlan
	Options config.QueryOptions
}

// ExecPlanQuery skips validation and runs an already-compiled physical plan.
type ExecPlanQuery struct {
	Ref   dataset.Ref
	Phys  plan.PhysicalPlan
	Limit int
}

// SingleShardQuery is the shard-side entry point dispatched by scatter.
// Sub is the per-shard physical plan node the Planner produced (one of
// plan.StreamLastTuple, plan.LocalVectorReader, plan.ShardAggregate).
type SingleShardQuery struct {
	Ref       dataset.Ref
	Sub       plan.PhysicalPlan
	ItemLimit int
}

// ShardRow is one row of a non-aggregate shard result (StreamLastTuple or
// LocalVectorReader sub-plans).
type ShardRow struct {
	PartitionKey string
	Values       map[int]any
}

// ShardResult is the shard-side reply to a SingleShardQuery: exactly one
// of Aggregate or Rows is populated, depending on Sub's type.
type ShardResult struct {
	Aggregate *aggregate.Aggregate
	Rows      []ShardRow
}

// GetIndexNames is a metadata introspection request.
type GetIndexNames struct {
	Ref   dataset.Ref
	Limit int
}

// GetIndexValues is a metadata introspection request.
type GetIndexValues struct {
	Ref   dataset.Ref
	Index string
	Limit int
}

// QueryResult is the success reply to any router-level query.
type QueryResult struct {
	QueryID queryid.ID
	Result  codec.Result
}

// QueryError is the failure reply to any router-level query.
type QueryError struct {
	QueryID queryid.ID
	Cause   error
}

// Reply is the sum type every router-level request resolves to.
type Reply interface{ reply() }

func (QueryResult) reply() {}
func (QueryError) reply()  {}
