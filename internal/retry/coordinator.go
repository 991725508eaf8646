package retry

import (
	"context"
	"sync"
	"time"

	"github.com/mrumy-dev/stylesync-telemetry/internal/diskstore"
	"github.com/mrumy-dev/stylesync-telemetry/internal/models"
	"github.com/mrumy-dev/stylesync-telemetry/internal/queue"
	"github.com/mrumy-dev/stylesync-telemetry/internal/store"

	"go.uber.org/zap"
)

// Submitter is the slice of the submission client the coordinator needs
type Submitter interface {
	SubmitBatch(ctx context.Context, kind models.Kind, records []models.Record) error
	SubmitRecord(ctx context.Context, record models.Record) error
}

// Coordinator drives the flush cycle for one telemetry kind: drain a batch
// from the store, submit it, then remove on success or requeue on failure.
// Delivery is at-most-duplicated, never exactly-once: a record stays queued
// until a confirmed success, so a crash between the 200 and the removal can
// resubmit a batch one more time.
type Coordinator struct {
	kind      models.Kind
	store     *store.EventStore
	journal   *queue.Journal   // optional, analytics only
	spool     *diskstore.Store // optional, crash/feedback only
	submitter Submitter
	batchSize int
	logger    *zap.Logger

	// flushMu serializes whole flush cycles so a timer tick and a manual
	// flush cannot drain overlapping batches
	flushMu sync.Mutex

	flushTicker *time.Ticker
	stopChan    chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewCoordinator creates a new retry coordinator. journal and spool may be
// nil for kinds that do not use them.
func NewCoordinator(
	kind models.Kind,
	eventStore *store.EventStore,
	journal *queue.Journal,
	spool *diskstore.Store,
	submitter Submitter,
	batchSize int,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		kind:      kind,
		store:     eventStore,
		journal:   journal,
		spool:     spool,
		submitter: submitter,
		batchSize: batchSize,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// StartPeriodicFlush schedules FlushNow every interval until Stop
func (c *Coordinator) StartPeriodicFlush(interval time.Duration) {
	c.flushTicker = time.NewTicker(interval)

	c.wg.Add(1)
	go c.flushLoop()

	c.logger.Info("Periodic flush started",
		zap.String("kind", string(c.kind)),
		zap.Duration("interval", interval),
		zap.Int("batch_size", c.batchSize),
	)
}

// Stop halts the periodic flush and runs one final cycle
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
	if c.flushTicker != nil {
		c.flushTicker.Stop()
	}
	c.logger.Info("Periodic flush stopped", zap.String("kind", string(c.kind)))
}

func (c *Coordinator) flushLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.flushTicker.C:
			c.FlushNow(context.Background())
		case <-c.stopChan:
			// one last attempt before shutdown
			c.FlushNow(context.Background())
			return
		}
	}
}

// FlushNow runs one submission cycle. The store lock is never held across
// the network call: the batch is a drained snapshot, and the outcome is
// applied in a second short serialized step.
func (c *Coordinator) FlushNow(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	batch := c.store.DrainBatch(c.batchSize)
	if len(batch) == 0 {
		return nil
	}

	err := c.submitter.SubmitBatch(ctx, c.kind, batch)

	ids := make([]string, len(batch))
	for i, r := range batch {
		ids[i] = r.ID
	}

	if err != nil {
		// records are still queued (drain does not remove); requeue is a
		// safety net that restores anything already gone
		c.store.RequeueFront(batch)
		if c.journal != nil {
			if jErr := c.journal.MarkAttempt(ids); jErr != nil {
				c.logger.Error("Failed to mark journal attempt", zap.Error(jErr))
			}
		}
		c.logger.Warn("Flush failed, batch stays queued",
			zap.Error(err),
			zap.String("kind", string(c.kind)),
			zap.Int("record_count", len(batch)),
		)
		return err
	}

	c.store.Remove(ids)
	if c.journal != nil {
		if jErr := c.journal.Delete(ids); jErr != nil {
			c.logger.Error("Failed to delete journaled records", zap.Error(jErr))
		}
	}
	if c.spool != nil {
		for _, id := range ids {
			if sErr := c.spool.Remove(id); sErr != nil {
				c.logger.Error("Failed to remove spooled record", zap.Error(sErr), zap.String("record_id", id))
			}
		}
	}

	c.logger.Debug("Flush cycle completed",
		zap.String("kind", string(c.kind)),
		zap.Int("record_count", len(batch)),
	)
	return nil
}

// RetryPending submits every spooled record individually, removing each on
// success. Used for the user-triggered retry after an app restart. Returns
// how many were submitted and how many remain.
func (c *Coordinator) RetryPending(ctx context.Context) (submitted, failed int) {
	if c.spool == nil {
		return 0, 0
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	records, err := c.spool.LoadAll()
	if err != nil {
		c.logger.Error("Failed to load spooled records", zap.Error(err))
		return 0, 0
	}

	for _, record := range records {
		if err := c.submitter.SubmitRecord(ctx, record); err != nil {
			c.logger.Warn("Pending record submission failed",
				zap.Error(err),
				zap.String("record_id", record.ID),
			)
			failed++
			continue
		}
		if err := c.spool.Remove(record.ID); err != nil {
			c.logger.Error("Failed to remove submitted record", zap.Error(err), zap.String("record_id", record.ID))
		}
		c.store.Remove([]string{record.ID})
		submitted++
	}

	c.logger.Info("Pending retry completed",
		zap.String("kind", string(c.kind)),
		zap.Int("submitted", submitted),
		zap.Int("failed", failed),
	)
	return submitted, failed
}
