// Package queryid provides the process-wide query correlation counter.
package queryid

import "sync/atomic"

// ID is a process-local monotonically increasing query identifier.
type ID int64

// Sentinel is echoed back for shard-side errors raised before a query id
// could be assigned to the originating request.
const Sentinel ID = 0

var counter int64

// Next returns the next process-wide unique query id. Safe for concurrent use.
func Next() ID {
	return ID(atomic.AddInt64(&counter, 1))
}
