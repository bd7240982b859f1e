package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
)

func writeCSV(rows [][]any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = csvCell(v)
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvCell(v any) string {
	switch t := v.(type) {
	case fixed:
		return t.StringFixed(2)
	case decimal.Decimal:
		return t.String()
	case int:
		return strconv.Itoa(t)
	default:
		return core.CellText(t)
	}
}
