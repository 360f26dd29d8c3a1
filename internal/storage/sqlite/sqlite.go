// Package sqlite stores expenses in a single SQLite table. Ids use the same
// 24-hex format as the document store so clients cannot tell the backends
// apart.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"expenses/internal/core"
	"expenses/internal/storage"
)

const driverName = "sqlite"

const selectColumns = `SELECT id, description, amount, date_ms FROM expenses`

// Store is an ExpenseRepository and a database.Connector over SQLite.
type Store struct {
	path string
	now  func() time.Time

	mu sync.RWMutex
	db *sql.DB
}

// New returns an unconnected store for the database file at path.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Connect opens the database and applies migrations. Calling it on an open
// store only pings.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.PingContext(ctx)
	}

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, s.path)
	if err != nil {
		return fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway and this keeps
	// SQLITE_BUSY out of request paths.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(s.path); err != nil {
		db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close releases the database handle.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, storage.ErrNotConnected
	}
	return s.db, nil
}

func (s *Store) List(ctx context.Context) ([]core.Expense, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, selectColumns+` ORDER BY date_ms DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) Get(ctx context.Context, id string) (core.Expense, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Expense{}, err
	}
	db, err := s.conn()
	if err != nil {
		return core.Expense{}, err
	}

	row := db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	return scanOne(row)
}

func (s *Store) Create(ctx context.Context, e core.Expense) (core.Expense, error) {
	db, err := s.conn()
	if err != nil {
		return core.Expense{}, err
	}

	e.ID = core.NewID()
	_, err = db.ExecContext(ctx,
		`INSERT INTO expenses (id, description, amount, date_ms, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Description, e.Amount, e.Date.UnixMilli(), s.now().UnixMilli())
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	e.Date = time.UnixMilli(e.Date.UnixMilli()).UTC()
	return e, nil
}

func (s *Store) Update(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Expense{}, err
	}
	db, err := s.conn()
	if err != nil {
		return core.Expense{}, err
	}

	row := db.QueryRowContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, date_ms = ? WHERE id = ?
		 RETURNING id, description, amount, date_ms`,
		e.Description, e.Amount, e.Date.UnixMilli(), id)
	return scanOne(row)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}
	db, err := s.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(sc scanner) (core.Expense, error) {
	var (
		e      core.Expense
		dateMs int64
	)
	if err := sc.Scan(&e.ID, &e.Description, &e.Amount, &dateMs); err != nil {
		return core.Expense{}, err
	}
	e.Date = time.UnixMilli(dateMs).UTC()
	return e, nil
}

func scanOne(row *sql.Row) (core.Expense, error) {
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	return e, nil
}

var _ storage.ExpenseRepository = (*Store)(nil)
