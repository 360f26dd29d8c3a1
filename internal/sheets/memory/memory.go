// Package memory is an in-process ExpenseMirror, used when no spreadsheet
// is configured and in tests.
package memory

import (
	"context"
	"sync"

	"expenses/internal/core"
	"expenses/internal/sheets"
)

type Mirror struct {
	mu           sync.Mutex
	items        []core.Expense
	replacements int
}

func New() *Mirror {
	return &Mirror{}
}

// ReplaceExpenses stores a copy of expenses.
func (m *Mirror) ReplaceExpenses(_ context.Context, expenses []core.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]core.Expense(nil), expenses...)
	m.replacements++
	return nil
}

func (m *Mirror) ListExpenses(_ context.Context) ([]core.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense{}, m.items...), nil
}

// Replacements returns how many times the mirror was rewritten.
func (m *Mirror) Replacements() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replacements
}

var (
	_ sheets.ExpenseMirror = (*Mirror)(nil)
	_ sheets.MirrorReader  = (*Mirror)(nil)
)
