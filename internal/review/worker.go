package review

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/loop-safety/pkg/logging"
)

// Archiver snapshots an item and returns the object key.
type Archiver interface {
	Archive(ctx context.Context, item Item) (string, error)
}

// Store persists items for reviewers.
type Store interface {
	InsertFlagged(ctx context.Context, item Item, archiveKey string) (bool, error)
}

// Observer counts worker outcomes.
type Observer interface {
	ObserveReviewItem(outcome string)
}

// Outcomes passed to Observer.
const (
	OutcomeArchived  = "archived"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeInvalid   = "invalid"
)

const (
	defaultWorkerCount   = 1
	defaultWaitSeconds   = 20
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	observer         Observer
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithObserver reports per-item outcomes.
func WithObserver(observer Observer) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.observer = observer
	}
}

// Worker drains the review queue into the archive and the flagged_content
// table.
type Worker struct {
	queue    Queue
	archiver Archiver
	store    Store
	logger   *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

// NewWorker creates a worker. archiver may be nil.
func NewWorker(queue Queue, archiver Archiver, store Store, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("review: queue required")
	}
	if store == nil {
		panic("review: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:    queue,
		archiver: archiver,
		store:    store,
		logger:   logger.Component("review-worker"),
		cfg:      cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("review worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("review worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive review items", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage leaves the message on the queue when archiving or storing
// fails so it is redelivered.
func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var item Item
	if err := json.Unmarshal([]byte(msg.Body), &item); err != nil {
		w.logger.Error("failed to decode review item", "error", err, "msg_id", msg.ID)
		w.observe(OutcomeInvalid)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}
	if err := item.Validate(); err != nil {
		w.logger.Error("dropping invalid review item", "error", err, "msg_id", msg.ID)
		w.observe(OutcomeInvalid)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	var key string
	if w.archiver != nil {
		var err error
		key, err = w.archiver.Archive(ctx, item)
		if err != nil {
			w.logger.Error("failed to archive review item", "error", err, "item_id", item.ID)
			w.observe(OutcomeFailed)
			return
		}
	}

	inserted, err := w.store.InsertFlagged(ctx, item, key)
	if err != nil {
		w.logger.Error("failed to store review item", "error", err, "item_id", item.ID)
		w.observe(OutcomeFailed)
		return
	}

	if inserted {
		w.logger.Info("review item queued for moderators",
			"item_id", item.ID,
			"account_id", item.AccountID,
			"kind", item.Kind,
			"archive_key", key,
		)
		w.observe(OutcomeArchived)
	} else {
		w.logger.Debug("review item already stored", "item_id", item.ID)
		w.observe(OutcomeDuplicate)
	}
	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) observe(outcome string) {
	if w.cfg.observer != nil {
		w.cfg.observer.ObserveReviewItem(outcome)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete review item", "error", err)
	}
}
