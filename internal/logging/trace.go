package logging

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Trace is the per-query observability context described in spec §3:
// created at request entry, closed on final response (success or failure).
type Trace struct {
	ID        string
	DatasetRef string
	QueryID   int64
	start     time.Time
	log       *slog.Logger
}

// NewTrace opens a trace for an incoming query and binds correlation fields
// onto every log line emitted through it.
func NewTrace(datasetRef string, queryID int64) *Trace {
	id := uuid.NewString()
	return &Trace{
		ID:         id,
		DatasetRef: datasetRef,
		QueryID:    queryID,
		start:      time.Now(),
		log:        Get().With("trace_id", id, "dataset", datasetRef, "query_id", queryID),
	}
}

// Logger returns the trace-scoped logger.
func (t *Trace) Logger() *slog.Logger { return t.log }

// Close logs the final outcome and elapsed time. err may be nil for success.
func (t *Trace) Close(err error) {
	elapsed := time.Since(t.start)
	if err != nil {
		t.log.Error("query finished", "elapsed", elapsed, "error", err)
		return
	}
	t.log.Info("query finished", "elapsed", elapsed)
}
