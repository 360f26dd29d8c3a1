package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"expenses/internal/core"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedBody = errors.New("invalid JSON body")
	errBodyTooLarge  = errors.New("request body too large")
)

// decodeExpenseInput reads a create/update payload. An empty body decodes
// to an empty input so validation reports the missing fields. Field values
// stay raw; core.ExpenseInput.Normalize decides what they mean.
func decodeExpenseInput(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, error) {
	var in core.ExpenseInput
	if r.Body == nil {
		return in, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, errBodyTooLarge
		}
		return in, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, nil
	}

	if err := json.Unmarshal(body, &in); err != nil {
		return core.ExpenseInput{}, errMalformedBody
	}
	return in, nil
}

// expenseID returns the {id} path variable.
func expenseID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
