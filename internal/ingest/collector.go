// Package ingest implements the batched ingestion pipeline: concurrent
// producers accumulate parsed dictionary records into per-producer buffers,
// a shared atomic counter seals batches at the configured size, background
// workers freeze each sealed batch into an immutable payload and dispatch
// it to staging, and a merge step promotes staged rows to production.
package ingest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ankitdsmb/DictionaryImporter-sub007/internal/domain"
)

const (
	defaultBatchSize     = 500
	defaultQueueCapacity = 64
)

// Collector accumulates batch items across concurrent producers and seals
// them into batches once the shared add counter reaches the batch size.
// Sealed batches are handed off through a bounded queue; a sealing producer
// blocks while the queue is full, which is the pipeline's backpressure.
type Collector struct {
	batchSize int
	pending   atomic.Int64

	mu        sync.Mutex // guards producers
	producers []*Producer

	queue     chan domain.SealedBatch
	closeOnce sync.Once
}

// Producer is a single producing goroutine's handle into the Collector.
// Each producer owns its buffer; its mutex is contended only by a seal
// harvesting the buffer, never by other producers.
type Producer struct {
	c   *Collector
	mu  sync.Mutex
	buf []domain.BatchItem
}

// NewCollector creates a Collector sealing batches of batchSize items, with
// a flush queue of queueCapacity sealed batches. Non-positive arguments fall
// back to defaults.
func NewCollector(batchSize, queueCapacity int) *Collector {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if queueCapacity <= 0 {
		queueCapacity = defaultQueueCapacity
	}
	ingMetrics.init()
	return &Collector{
		batchSize: batchSize,
		queue:     make(chan domain.SealedBatch, queueCapacity),
	}
}

// Producer registers a new producer. Each producing goroutine must hold its
// own Producer; sharing one across goroutines serializes them on its mutex.
func (c *Collector) Producer() *Producer {
	p := &Producer{c: c}
	c.mu.Lock()
	c.producers = append(c.producers, p)
	c.mu.Unlock()
	return p
}

// Batches returns the flush queue. It is closed by Close.
func (c *Collector) Batches() <-chan domain.SealedBatch {
	return c.queue
}

// Add appends an item to the producer's private buffer in O(1) and bumps
// the shared counter. The producer whose increment reaches the batch size
// performs the seal itself.
func (p *Producer) Add(item domain.BatchItem) {
	p.mu.Lock()
	p.buf = append(p.buf, item)
	p.mu.Unlock()

	ingMetrics.itemsCollected.Inc()

	if p.c.pending.Add(1) == int64(p.c.batchSize) {
		p.c.seal(p)
	}
}

// AddDetail applies mutate to the last item of the calling producer's
// buffer: the parser's current record. No-op when the buffer is empty —
// a seal may have just harvested the buffer, and a late child detail then
// has no record to attach to.
func (p *Producer) AddDetail(mutate func(*domain.BatchItem)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		return
	}
	mutate(&p.buf[len(p.buf)-1])
}

// seal harvests every producer buffer into one sealed batch and enqueues it.
// Only the producer that crossed the threshold runs this, so at most one
// seal is in flight per threshold crossing. A sealed batch never exceeds
// the batch size: adds racing the harvest can push it over, and the excess
// is returned to the sealing producer's buffer to await the next seal.
func (c *Collector) seal(sealer *Producer) {
	batch := c.harvest()

	if len(batch) > c.batchSize {
		excess := batch[c.batchSize:]
		batch = batch[:c.batchSize]
		sealer.mu.Lock()
		sealer.buf = append(sealer.buf, excess...)
		sealer.mu.Unlock()
	}

	// Subtract what was enqueued rather than zeroing, so adds racing with
	// the seal still count toward the next batch. An empty harvest (a
	// concurrent FlushAll emptied the buffers first) still consumes the
	// threshold, otherwise the == check could never fire again.
	n := int64(len(batch))
	if n == 0 {
		n = int64(c.batchSize)
	}
	c.pending.Add(-n)

	if len(batch) == 0 {
		return
	}
	ingMetrics.batchesSealed.Inc()
	c.queue <- batch
}

// harvest swaps every producer's buffer for a fresh one and concatenates
// the old buffers in producer registration order.
func (c *Collector) harvest() domain.SealedBatch {
	c.mu.Lock()
	producers := slices.Clone(c.producers)
	c.mu.Unlock()

	var batch domain.SealedBatch
	for _, p := range producers {
		p.mu.Lock()
		if len(p.buf) > 0 {
			batch = append(batch, p.buf...)
			p.buf = nil
		}
		p.mu.Unlock()
	}
	return batch
}

// FlushAll seals every producer's current buffer regardless of size and
// enqueues each non-empty buffer as its own batch. It is called at end of
// stream, after producers have stopped adding. Enqueueing honors ctx: on
// cancellation the remaining buffers are abandoned and ctx.Err() returned.
func (c *Collector) FlushAll(ctx context.Context) error {
	c.mu.Lock()
	producers := slices.Clone(c.producers)
	c.mu.Unlock()

	for _, p := range producers {
		p.mu.Lock()
		buf := p.buf
		p.buf = nil
		p.mu.Unlock()

		if len(buf) == 0 {
			continue
		}
		c.pending.Add(-int64(len(buf)))
		ingMetrics.batchesSealed.Inc()

		select {
		case c.queue <- domain.SealedBatch(buf):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes the flush queue. Call once, after FlushAll and after all
// producers have stopped adding.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.queue)
	})
}
