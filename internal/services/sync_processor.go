package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/sheets"
)

// ExpenseLister is the read side the mirror is rebuilt from.
type ExpenseLister interface {
	List(ctx context.Context) ([]core.Expense, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Interval between full resyncs (default: 5m)
	Interval time.Duration

	// Timeout bounds a single resync (default: 30s)
	Timeout time.Duration

	// RetryDelay is how long the loop waits after a failed resync before
	// trying again, instead of waiting a full Interval (default: 5s)
	RetryDelay time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Interval:   5 * time.Minute,
		Timeout:    30 * time.Second,
		RetryDelay: 5 * time.Second,
	}
}

const resyncKey = "resync"

// SyncProcessor keeps an ExpenseMirror equal to the stored expense list.
// It resyncs on a ticker and on demand. Requests that arrive together share
// one run, but never a run that started before they arrived.
type SyncProcessor struct {
	source ExpenseLister
	mirror sheets.ExpenseMirror
	config SyncProcessorConfig
	logger *log.Logger
	group  singleflight.Group

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	lastRun time.Time
	lastErr error

	// inFlight is closed when the running resync finishes.
	inFlight chan struct{}
}

func NewSyncProcessor(source ExpenseLister, mirror sheets.ExpenseMirror, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	defaults := DefaultSyncProcessorConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncProcessor{
		source: source,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the resync loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started", "interval", p.config.Interval)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastResult reports when the last resync finished and its error.
func (p *SyncProcessor) LastResult() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun, p.lastErr
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// A failed resync is retried after RetryDelay; the store may still be
	// connecting at startup.
	var retry <-chan time.Time
	schedule := func(ok bool) {
		retry = nil
		if !ok {
			retry = time.After(p.config.RetryDelay)
		}
	}

	schedule(p.syncAndLog(ctx))

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			schedule(p.syncAndLog(ctx))
		case <-retry:
			schedule(p.syncAndLog(ctx))
		}
	}
}

func (p *SyncProcessor) syncAndLog(ctx context.Context) bool {
	if err := p.SyncNow(ctx); err != nil {
		p.logger.ErrorContext(ctx, "Expense mirror resync failed",
			log.FieldOperation, log.OpSync,
			log.FieldError, err)
		return false
	}
	return true
}

// SyncNow rewrites the mirror from the current expense list and returns
// once a resync that started after the call has finished. A resync already
// under way may have listed before the caller's change, so the caller waits
// it out and then joins or starts the next one.
func (p *SyncProcessor) SyncNow(ctx context.Context) error {
	p.mu.Lock()
	busy := p.inFlight
	p.mu.Unlock()
	if busy != nil {
		select {
		case <-busy:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err, shared := p.group.Do(resyncKey, func() (interface{}, error) {
		done := make(chan struct{})
		p.mu.Lock()
		p.inFlight = done
		p.mu.Unlock()

		defer func() {
			// Forget before signalling, so woken callers start a new run
			// instead of joining this one.
			p.group.Forget(resyncKey)
			p.mu.Lock()
			if p.inFlight == done {
				p.inFlight = nil
			}
			p.mu.Unlock()
			close(done)
		}()
		return nil, p.resync(ctx)
	})
	if shared {
		p.logger.DebugContext(ctx, "Joined in-flight resync")
	}
	return err
}

func (p *SyncProcessor) resync(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	err := p.copyAll(ctx)

	p.mu.Lock()
	p.lastRun = time.Now()
	p.lastErr = err
	p.mu.Unlock()

	if err == nil {
		p.logger.DebugContext(ctx, "Expense mirror resynced",
			log.FieldOperation, log.OpSync,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
	return err
}

func (p *SyncProcessor) copyAll(ctx context.Context) error {
	expenses, err := p.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	if err := p.mirror.ReplaceExpenses(ctx, expenses); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	return nil
}
