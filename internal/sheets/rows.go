package sheets

import (
	"context"
	"fmt"
	"strings"
)

// AppendExpense writes one expense row, writing the header first when the
// sheet is empty.
func AppendExpense(ctx context.Context, s Session, date string, amount float64, reason, timestamp string) error {
	n, err := s.RowCount(ctx)
	if err != nil {
		return fmt.Errorf("count rows: %w", err)
	}
	if n == 0 {
		header := make([]any, len(Header))
		for i, h := range Header {
			header[i] = h
		}
		if err := s.Append(ctx, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := s.Append(ctx, []any{date, amount, reason, timestamp}); err != nil {
		return fmt.Errorf("append expense: %w", err)
	}
	return nil
}

// RowsFromValues turns a values matrix whose first row is the header into
// records. Short rows are padded with empty strings.
func RowsFromValues(values [][]any) []Row {
	if len(values) == 0 {
		return []Row{}
	}
	header := make([]string, len(values[0]))
	for i, v := range values[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(v))
	}

	rows := make([]Row, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make(Row, len(header))
		for i, key := range header {
			if i < len(raw) && raw[i] != nil {
				row[key] = raw[i]
			} else {
				row[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}
