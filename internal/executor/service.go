package executor

import (
	"context"

	"github.com/cloudimpl/tsqcoord/internal/apperr"
	"github.com/cloudimpl/tsqcoord/internal/dataset"
	"github.com/cloudimpl/tsqcoord/internal/plan"
	"github.com/cloudimpl/tsqcoord/internal/transport"
)

// ExecuteSingleShardQuery implements transport.ShardService: the shard-
// owning node's single entry point for every physical sub-plan the
// Planner hands to DistributeConcat (spec §4.5 SingleShardQuery).
func (e *Executor) ExecuteSingleShardQuery(ctx context.Context, req transport.SingleShardQuery) (transport.ShardResult, error) {
	switch sub := req.Sub.(type) {
	case plan.ShardAggregate:
		agg, err := e.Execute(ctx, req.Ref, Request{
			ColID:      sub.ColID,
			AggFunc:    sub.AggFunc,
			AggArgs:    sub.AggArgs,
			PartMethod: sub.PartMethod,
			ChunkScan:  sub.ChunkScan,
			ItemLimit:  req.ItemLimit,
		})
		if err != nil {
			return transport.ShardResult{}, err
		}
		return transport.ShardResult{Aggregate: &agg}, nil

	case plan.LocalVectorReader:
		rows, err := e.scanRows(ctx, req.Ref, sub.PartMethod, sub.ChunkScan, sub.ColIDs, req.ItemLimit)
		if err != nil {
			return transport.ShardResult{}, err
		}
		return transport.ShardResult{Rows: rows}, nil

	case plan.StreamLastTuple:
		rows, err := e.scanRows(ctx, req.Ref, sub.PartMethod, plan.MostRecent{}, sub.ColIDs, req.ItemLimit)
		if err != nil {
			return transport.ShardResult{}, err
		}
		return transport.ShardResult{Rows: rows}, nil

	default:
		return transport.ShardResult{}, apperr.UnsupportedPlan("unrecognized shard sub-plan")
	}
}

// scanRows pulls chunks directly from the store for the non-aggregate
// plan paths (LocalVectorReader, StreamLastTuple): there is no fold, so
// the executor just copies rows through, honoring the item limit and
// caller cancellation the same way Execute does.
func (e *Executor) scanRows(ctx context.Context, ref dataset.Ref, pm plan.PartitionScanMethod, cs plan.ChunkScanMethod, colIDs []int, limit int) ([]transport.ShardRow, error) {
	scanCtx, stop := context.WithCancel(ctx)
	defer stop()

	chunks, errc := e.store.ScanChunks(scanCtx, ref, pm, cs, colIDs)

	var rows []transport.ShardRow
	for chunk := range chunks {
		for _, row := range chunk.Rows {
			rows = append(rows, transport.ShardRow{PartitionKey: chunk.PartitionKey, Values: row.Values})
			if limit > 0 && len(rows) >= limit {
				stop()
				break
			}
		}
		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	for range chunks {
	}
	scanErr := drainErr(errc)

	if ctx.Err() != nil {
		return nil, apperr.Internal(ctx.Err())
	}
	if limit == 0 || len(rows) < limit {
		if scanErr != nil {
			return nil, apperr.Internal(scanErr)
		}
	}
	return rows, nil
}
