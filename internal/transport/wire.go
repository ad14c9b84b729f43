package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/golang/snappy"

	"github.com/cloudimpl/tsqcoord/internal/aggregate"
)

func init() {
	// Row values carry the dataset's scalar column types through the
	// map[int]any field; gob needs each concrete type registered once.
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
}

// wireShardResult is the gob shape of a ShardResult, snappy-compressed
// before crossing the InMemoryTransport boundary. Even an in-process
// transport pays this cost: it is the seam a real node-to-node RPC
// would occupy, and it catches accidental aliasing of the column store's
// shared row buffers across the wire (spec §5 forbids retaining them
// past partial emission). Compression follows cloudimpl-ByteDB's
// backend/columnar/compression.go, which snappy-encodes page bytes
// before they leave the store; here the same codec guards the
// shard-result hop instead of a disk page.
type wireShardResult struct {
	Aggregate *aggregate.Aggregate
	Rows      []ShardRow
}

// encodeShardResult gob-encodes then snappy-compresses a ShardResult.
func encodeShardResult(res ShardResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireShardResult{Aggregate: res.Aggregate, Rows: res.Rows}); err != nil {
		return nil, fmt.Errorf("transport: encode shard result: %w", err)
	}
	return snappy.Encode(nil, buf.Bytes()), nil
}

// decodeShardResult reverses encodeShardResult.
func decodeShardResult(wire []byte) (ShardResult, error) {
	raw, err := snappy.Decode(nil, wire)
	if err != nil {
		return ShardResult{}, fmt.Errorf("transport: decompress shard result: %w", err)
	}
	var w wireShardResult
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&w); err != nil {
		return ShardResult{}, fmt.Errorf("transport: decode shard result: %w", err)
	}
	return ShardResult{Aggregate: w.Aggregate, Rows: w.Rows}, nil
}
