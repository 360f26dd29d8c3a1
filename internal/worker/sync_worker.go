package worker

import (
	"context"
	"fmt"

	"expenses/internal/amqp"
	"expenses/internal/log"
)

// Syncer rebuilds the expense mirror.
type Syncer interface {
	SyncNow(ctx context.Context) error
}

// SyncWorker turns expense change events into mirror refreshes.
type SyncWorker struct {
	syncer Syncer
	logger *log.Logger
}

func NewSyncWorker(syncer Syncer, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		syncer: syncer,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single expense event from AMQP. The mirror is
// always rebuilt from the store, so the event only says that something
// changed; a bursty queue collapses into a few full rewrites.
func (w *SyncWorker) HandleEvent(ctx context.Context, event *amqp.ExpenseEvent) error {
	w.logger.InfoContext(ctx, "Processing expense event",
		log.FieldExpenseID, event.ID,
		log.FieldOperation, string(event.Action),
		"timestamp", event.Timestamp)

	if err := w.syncer.SyncNow(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to sync expense mirror",
			log.FieldExpenseID, event.ID,
			log.FieldError, err)
		return fmt.Errorf("sync expense mirror: %w", err)
	}

	w.logger.InfoContext(ctx, "Expense mirror synced", log.FieldExpenseID, event.ID)
	return nil
}

// Handler adapts the worker to the AMQP consumer.
func (w *SyncWorker) Handler() amqp.EventHandler {
	return w.HandleEvent
}
