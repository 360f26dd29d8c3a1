package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type (
	// Expense is a single persisted spending record.
	Expense struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		Date        time.Time `json:"date"`
	}

	// ExpenseInput is the raw create/update payload. Fields stay undecoded
	// until Normalize so that wrong JSON types surface as validation errors
	// instead of decode failures.
	ExpenseInput struct {
		Description json.RawMessage `json:"description"`
		Amount      json.RawMessage `json:"amount"`
		Date        json.RawMessage `json:"date"`
	}
)

// Layouts accepted for string dates, tried in order. Dates without a zone
// are read as UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
}

// Normalize validates the payload and returns the expense it describes,
// without an ID. A missing or empty date defaults to now.
func (in ExpenseInput) Normalize(now time.Time) (Expense, error) {
	desc, ok := parseDescription(in.Description)
	if !ok {
		return Expense{}, ErrDescriptionRequired
	}
	amount, ok := parseAmount(in.Amount)
	if !ok {
		return Expense{}, ErrAmountRequired
	}
	date, err := parseDate(in.Date, now)
	if err != nil {
		return Expense{}, err
	}
	return Expense{
		Description: desc,
		Amount:      amount,
		Date:        date,
	}, nil
}

// NewExpenseInput builds an input from already typed values, mostly for
// callers that do not start from JSON.
func NewExpenseInput(description string, amount float64, date time.Time) ExpenseInput {
	in := ExpenseInput{}
	in.Description, _ = json.Marshal(description)
	in.Amount, _ = json.Marshal(amount)
	if !date.IsZero() {
		in.Date, _ = json.Marshal(date)
	}
	return in
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseDescription(raw json.RawMessage) (string, bool) {
	if isAbsent(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func parseAmount(raw json.RawMessage) (float64, bool) {
	if isAbsent(raw) {
		return 0, false
	}
	var v float64
	switch bytes.TrimSpace(raw)[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseDate accepts a string in one of dateLayouts or a number of
// milliseconds since the epoch. Falsy values (null, "", 0, false) mean now.
func parseDate(raw json.RawMessage, now time.Time) (time.Time, error) {
	if isAbsent(raw) {
		return truncate(now), nil
	}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return time.Time{}, ErrInvalidDate
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return truncate(now), nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return checkRange(truncate(t))
			}
		}
		return time.Time{}, ErrInvalidDate
	case bytes.Equal(trimmed, []byte("false")):
		return truncate(now), nil
	case trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9'):
		var ms float64
		if err := json.Unmarshal(trimmed, &ms); err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) {
			return time.Time{}, ErrInvalidDate
		}
		if ms == 0 {
			return truncate(now), nil
		}
		if math.Abs(ms) > maxEpochMillis {
			return time.Time{}, ErrInvalidDate
		}
		return checkRange(truncate(time.UnixMilli(int64(ms))))
	default:
		return time.Time{}, ErrInvalidDate
	}
}

// maxEpochMillis is the widest timestamp a JavaScript Date can hold.
const maxEpochMillis = 8.64e15

// checkRange rejects dates whose UTC year has no RFC 3339 form, since they
// could be stored but never encoded back to a client.
func checkRange(t time.Time) (time.Time, error) {
	if y := t.Year(); y < 0 || y > 9999 {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Dates are kept at millisecond precision in UTC, the resolution every
// backend can round-trip.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
