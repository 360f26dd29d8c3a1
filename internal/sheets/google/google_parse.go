package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"expenses/internal/core"
)

const sheetDateLayout = "2006-01-02"

var headerRow = []interface{}{"Date", "Description", "Amount", "ID"}

// buildRows renders expenses as a header row followed by one row each, in
// the order given.
func buildRows(expenses []core.Expense) [][]interface{} {
	rows := make([][]interface{}, 0, len(expenses)+1)
	rows = append(rows, headerRow)
	for _, e := range expenses {
		rows = append(rows, []interface{}{
			e.Date.UTC().Format(sheetDateLayout),
			e.Description,
			e.Amount,
			e.ID,
		})
	}
	return rows
}

// parseRows is the inverse of buildRows. Columns are located by header so a
// reordered sheet still reads back. Dates come back at day precision.
func parseRows(values [][]interface{}) ([]core.Expense, error) {
	if len(values) == 0 {
		return []core.Expense{}, nil
	}
	headers := toStrings(values[0])
	colDate := indexOf(headers, "Date")
	colDesc := indexOf(headers, "Description")
	colAmount := indexOf(headers, "Amount")
	colID := indexOf(headers, "ID")
	if colDate == -1 || colDesc == -1 || colAmount == -1 || colID == -1 {
		return nil, fmt.Errorf("unexpected expense sheet header: got %v", headers)
	}

	out := make([]core.Expense, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := strings.TrimSpace(safeGet(row, colID))
		if id == "" {
			continue
		}
		date, err := time.Parse(sheetDateLayout, strings.TrimSpace(safeGet(row, colDate)))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid date: %w", i+1, err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(safeGet(row, colAmount)), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount: %w", i+1, err)
		}
		out = append(out, core.Expense{
			ID:          id,
			Description: safeGet(row, colDesc),
			Amount:      amount,
			Date:        date,
		})
	}
	return out, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx >= 0 && idx < len(arr) {
		return arr[idx]
	}
	return ""
}
