// Package memory keeps expenses in process memory. Used for local runs and
// tests; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"expenses/internal/core"
	"expenses/internal/storage"
)

type Store struct {
	mu        sync.Mutex
	connected bool
	items     map[string]core.Expense
	seq       map[string]int64
	next      int64
}

func New() *Store {
	return &Store{
		items: make(map[string]core.Expense),
		seq:   make(map[string]int64),
	}
}

// Connect always succeeds.
func (s *Store) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Close marks the store unusable; the data is kept so a later Connect sees it.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Store) List(_ context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, storage.ErrNotConnected
	}

	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Expense, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return core.Expense{}, storage.ErrNotConnected
	}

	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) Create(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return core.Expense{}, storage.ErrNotConnected
	}

	e.ID = core.NewID()
	s.next++
	s.items[e.ID] = e
	s.seq[e.ID] = s.next
	return e, nil
}

func (s *Store) Update(_ context.Context, id string, e core.Expense) (core.Expense, error) {
	if err := core.ValidateID(id); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return core.Expense{}, storage.ErrNotConnected
	}

	if _, ok := s.items[id]; !ok {
		return core.Expense{}, core.ErrNotFound
	}
	e.ID = id
	s.items[id] = e
	return e, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return storage.ErrNotConnected
	}

	if _, ok := s.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.items, id)
	delete(s.seq, id)
	return nil
}

var _ storage.ExpenseRepository = (*Store)(nil)
