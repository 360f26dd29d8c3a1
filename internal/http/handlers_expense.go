package http

import (
	"errors"
	"net/http"
	"strings"

	"expenses/internal/core"
	"expenses/internal/log"
)

// Client-facing messages for failures the service did not anticipate.
const (
	msgListFailed   = "Failed to fetch expenses"
	msgGetFailed    = "Failed to fetch expense"
	msgCreateFailed = "Failed to create expense"
	msgUpdateFailed = "Failed to update expense"
	msgDeleteFailed = "Failed to delete expense"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListExpenses(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, log.OpList, msgListFailed)
		return
	}
	NewJSONResponse().Body(expenses).Write(w, r)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.GetExpense(r.Context(), expenseID(r))
	if err != nil {
		s.writeServiceError(w, r, err, log.OpRead, msgGetFailed)
		return
	}
	NewJSONResponse().Body(e).Write(w, r)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := decodeExpenseInput(w, r)
	if err != nil {
		s.writeDecodeError(w, r, err)
		return
	}

	created, err := s.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpCreate, msgCreateFailed)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(created).Write(w, r)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := expenseID(r)
	if err := core.ValidateID(id); err != nil {
		s.writeServiceError(w, r, err, log.OpUpdate, msgUpdateFailed)
		return
	}

	in, err := decodeExpenseInput(w, r)
	if err != nil {
		s.writeDecodeError(w, r, err)
		return
	}

	updated, err := s.expenses.UpdateExpense(r.Context(), id, in)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpUpdate, msgUpdateFailed)
		return
	}
	NewJSONResponse().Body(updated).Write(w, r)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.DeleteExpense(r.Context(), expenseID(r)); err != nil {
		s.writeServiceError(w, r, err, log.OpDelete, msgDeleteFailed)
		return
	}
	NewJSONResponse().Message("Expense deleted").Write(w, r)
}

func (s *Server) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "Request body too large").Write(w, r)
	default:
		BadRequestError("Invalid JSON body").Write(w, r)
	}
}

// writeServiceError maps the service error taxonomy onto status codes.
// Store failures are 500 for every operation and never leak their cause.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op, fallback string) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		BadRequestError(sentenceCase(ve.Message)).Write(w, r)
	case core.IsInvalidIdentifier(err):
		BadRequestError("Invalid expense ID").Write(w, r)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("Expense not found").Write(w, r)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Expense request failed",
			log.FieldOperation, op,
			log.FieldError, err)
		InternalServerError(fallback, "").Write(w, r)
	}
}

func sentenceCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
