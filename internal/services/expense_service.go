package services

import (
	"context"
	"errors"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/database"
	"expenses/internal/log"
	"expenses/internal/storage"
)

// ConnectionState reports whether the store can be used.
type ConnectionState interface {
	State() database.ConnectionState
}

// EventPublisher announces committed mutations.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, event *amqp.ExpenseEvent) error
}

// OperationRecorder is told the outcome of every operation, for metrics.
type OperationRecorder interface {
	RecordOperation(op, outcome string)
}

const defaultOperationTimeout = 10 * time.Second

// Outcomes passed to OperationRecorder.
const (
	OutcomeSuccess    = "success"
	OutcomeInvalid    = "invalid"
	OutcomeNotFound   = "not_found"
	OutcomeStoreError = "store_error"
)

// ExpenseService validates requests, runs them against the repository and
// publishes change events.
type ExpenseService struct {
	repo      storage.ExpenseRepository
	conn      ConnectionState
	publisher EventPublisher
	recorder  OperationRecorder
	timeout   time.Duration
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*ExpenseService)

// WithConnectionState enables the pre-flight connection check.
func WithConnectionState(c ConnectionState) Option {
	return func(s *ExpenseService) { s.conn = c }
}

// WithPublisher enables change events. Publish failures are logged only.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithRecorder(r OperationRecorder) Option {
	return func(s *ExpenseService) { s.recorder = r }
}

// WithTimeout bounds each repository call.
func WithTimeout(d time.Duration) Option {
	return func(s *ExpenseService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *ExpenseService) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewExpenseService(repo storage.ExpenseRepository, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		repo:    repo,
		timeout: defaultOperationTimeout,
		now:     time.Now,
		logger:  log.New(log.DefaultConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListExpenses returns every expense, newest first. The result is never nil.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var expenses []core.Expense
	err := s.run(ctx, log.OpList, func(ctx context.Context) error {
		var err error
		expenses, err = s.repo.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	id, err := core.CanonicalID(id)
	if err != nil {
		s.record(log.OpRead, err)
		return core.Expense{}, err
	}

	var e core.Expense
	err = s.run(ctx, log.OpRead, func(ctx context.Context) error {
		var err error
		e, err = s.repo.Get(ctx, id)
		return err
	})
	return e, err
}

func (s *ExpenseService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := in.Normalize(s.now())
	if err != nil {
		s.record(log.OpCreate, err)
		return core.Expense{}, err
	}

	var created core.Expense
	err = s.run(ctx, log.OpCreate, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, e)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}

	s.logFor(ctx).LogExpenseMutation(ctx, log.OpCreate, created.ID, created.Description, created.Amount, created.Date)
	s.publish(ctx, created.ID, amqp.ActionCreated)
	return created, nil
}

// UpdateExpense replaces description, amount and date of an existing
// expense. The id is checked before the payload.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id string, in core.ExpenseInput) (core.Expense, error) {
	id, err := core.CanonicalID(id)
	if err != nil {
		s.record(log.OpUpdate, err)
		return core.Expense{}, err
	}
	e, err := in.Normalize(s.now())
	if err != nil {
		s.record(log.OpUpdate, err)
		return core.Expense{}, err
	}

	var updated core.Expense
	err = s.run(ctx, log.OpUpdate, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, id, e)
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}

	s.logFor(ctx).LogExpenseMutation(ctx, log.OpUpdate, updated.ID, updated.Description, updated.Amount, updated.Date)
	s.publish(ctx, updated.ID, amqp.ActionUpdated)
	return updated, nil
}

func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	id, err := core.CanonicalID(id)
	if err != nil {
		s.record(log.OpDelete, err)
		return err
	}

	err = s.run(ctx, log.OpDelete, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logFor(ctx).LogExpenseMutation(ctx, log.OpDelete, id, "", 0, time.Time{})
	s.publish(ctx, id, amqp.ActionDeleted)
	return nil
}

// run executes fn under the operation timeout and classifies its error:
// not-found and bad-id errors pass through, anything else becomes a
// StoreError.
func (s *ExpenseService) run(ctx context.Context, op string, fn func(context.Context) error) error {
	if s.conn != nil && s.conn.State() != database.Connected {
		err := &storage.StoreError{Op: op, Err: storage.ErrNotConnected}
		s.record(op, err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := fn(ctx)
	if err != nil && !errors.Is(err, core.ErrNotFound) && !core.IsInvalidIdentifier(err) && !storage.IsStoreError(err) {
		errorType := log.ErrorTypeDatabase
		if errors.Is(err, context.DeadlineExceeded) {
			errorType = log.ErrorTypeTimeout
		}
		err = &storage.StoreError{Op: op, Err: err}
		s.logFor(ctx).LogError(ctx, "Store operation failed", err, log.ComponentStorage, op,
			log.NewFields().WithErrorType(errorType))
	}
	s.record(op, err)
	return err
}

// logFor prefers the request logger carried by ctx, so lines keep its
// request id.
func (s *ExpenseService) logFor(ctx context.Context) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContextOr(ctx, s.logger))
}

func (s *ExpenseService) record(op string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordOperation(op, Outcome(err))
}

// Outcome classifies an error returned by the service.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	case core.IsValidationError(err), core.IsInvalidIdentifier(err):
		return OutcomeInvalid
	default:
		return OutcomeStoreError
	}
}

func (s *ExpenseService) publish(ctx context.Context, id string, action amqp.Action) {
	if s.publisher == nil {
		return
	}
	// The request may be cancelled as soon as the response is written; the
	// event should still go out.
	ctx = context.WithoutCancel(ctx)
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(id, action)); err != nil {
		s.logFor(ctx).LogError(ctx, "Failed to publish expense event", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork))
	}
}
