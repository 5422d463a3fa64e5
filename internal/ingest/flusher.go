package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

// Dispatcher persists one batch payload in a single round trip.
type Dispatcher interface {
	BulkInsert(ctx context.Context, payload domain.RelationalPayload) (int, error)
}

// Flusher drains the collector's flush queue on a bounded worker pool.
// Each sealed batch is frozen, projected into its relational payload and
// bulk-dispatched. A failed dispatch is logged and the batch dropped; the
// failure is reported once at the end of Run so the process can exit
// non-zero without stalling the rest of the stream.
type Flusher struct {
	dispatcher Dispatcher
	pool       *ants.Pool
	logger     *slog.Logger

	dropped atomic.Int64
}

// NewFlusher creates a Flusher running dispatches on workers goroutines.
func NewFlusher(dispatcher Dispatcher, workers int, logger *slog.Logger) (*Flusher, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create flush pool: %w", err)
	}
	ingMetrics.init()
	return &Flusher{
		dispatcher: dispatcher,
		pool:       pool,
		logger:     logger,
	}, nil
}

// Run consumes batches until the channel is closed or ctx is cancelled,
// then waits for in-flight dispatches. It returns domain.ErrFlushFailed
// if any batch was dropped, or ctx.Err() on cancellation.
func (f *Flusher) Run(ctx context.Context, batches <-chan domain.SealedBatch) error {
	var wg sync.WaitGroup

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case batch, ok := <-batches:
			if !ok {
				break loop
			}
			wg.Add(1)
			if err := f.pool.Submit(func() {
				defer wg.Done()
				f.flush(ctx, batch)
			}); err != nil {
				// The pool is released only in Close, so Submit can fail
				// only after misuse; count the batch as dropped.
				wg.Done()
				f.dropped.Add(1)
				f.logger.Error("submit flush task", slog.Any("error", err))
			}
		}
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if n := f.dropped.Load(); n > 0 {
		return fmt.Errorf("%w: %d batch(es) dropped", domain.ErrFlushFailed, n)
	}
	return nil
}

// Close releases the worker pool. Call after Run has returned.
func (f *Flusher) Close() {
	f.pool.Release()
}

func (f *Flusher) flush(ctx context.Context, batch domain.SealedBatch) {
	if ctx.Err() != nil {
		return
	}

	frozen := Freeze(batch)
	payload := BuildPayload(frozen)

	started := time.Now()
	staged, err := f.dispatcher.BulkInsert(ctx, payload)
	ingMetrics.dispatchDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		f.dropped.Add(1)
		ingMetrics.batchesDropped.Inc()
		f.logger.Error("dispatch batch",
			slog.String("batch_id", frozen.ID.String()),
			slog.Int("items", len(frozen.Items)),
			slog.Any("sources", frozen.SourceCodes()),
			slog.Any("error", err),
		)
		return
	}

	ingMetrics.batchesDispatched.Inc()
	ingMetrics.rowsStaged.Add(float64(staged))
	f.logger.Info("batch dispatched",
		slog.String("batch_id", frozen.ID.String()),
		slog.Int("items", len(frozen.Items)),
		slog.Int("rows", staged),
		slog.Any("sources", frozen.SourceCodes()),
	)
}
