package sheets

import (
	"context"

	"expenses/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseMirror receives the full expense list, newest first, and makes
	// the external copy match it exactly.
	ExpenseMirror interface {
		ReplaceExpenses(ctx context.Context, expenses []core.Expense) error
	}

	// MirrorReader reads the mirrored rows back.
	MirrorReader interface {
		ListExpenses(ctx context.Context) ([]core.Expense, error)
	}
)
