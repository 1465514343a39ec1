// Package store persists joined parcel records to the optional database sinks.
package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/model"
)

// Sink receives joined records in batches, tagged with the run they belong to.
type Sink interface {
	WriteRecords(ctx context.Context, runID string, recs []model.JoinedRecord) error
}

// DefaultBatchSize is the number of records buffered before a flush.
const DefaultBatchSize = 5000

// Batcher buffers records and flushes them to every sink in order.
type Batcher struct {
	runID   string
	size    int
	sinks   []Sink
	buf     []model.JoinedRecord
	flushed int
}

// NewBatcher returns a Batcher flushing every size records (0 = DefaultBatchSize).
func NewBatcher(runID string, size int, sinks ...Sink) *Batcher {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Batcher{
		runID: runID,
		size:  size,
		sinks: sinks,
		buf:   make([]model.JoinedRecord, 0, size),
	}
}

// Add buffers r and flushes when the buffer is full.
func (b *Batcher) Add(ctx context.Context, r model.JoinedRecord) error {
	b.buf = append(b.buf, r)
	if len(b.buf) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes any buffered records.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.buf) == 0 {
		return nil
	}
	for _, s := range b.sinks {
		if err := s.WriteRecords(ctx, b.runID, b.buf); err != nil {
			return eris.Wrapf(err, "store: flush %d records", len(b.buf))
		}
	}
	b.flushed += len(b.buf)
	zap.L().Debug("records flushed",
		zap.String("component", "store"),
		zap.String("run_id", b.runID),
		zap.Int("batch", len(b.buf)),
		zap.Int("total", b.flushed),
	)
	b.buf = b.buf[:0]
	return nil
}

// Flushed returns how many records have reached the sinks.
func (b *Batcher) Flushed() int { return b.flushed }
