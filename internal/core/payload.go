package core

import (
	"fmt"
	"strings"
)

// NewExpenseFromPayload reads the date, amount and reason fields of a decoded
// JSON object. Every field must be present; amount must be numeric.
func NewExpenseFromPayload(p map[string]any) (NewExpense, error) {
	for _, key := range []string{"date", "amount", "reason"} {
		if _, ok := p[key]; !ok {
			return NewExpense{}, fmt.Errorf("%w: %q", ErrMissingField, key)
		}
	}

	amount, err := AmountFromValue(p["amount"])
	if err != nil {
		return NewExpense{}, err
	}

	return NewExpense{
		Date:   CellText(p["date"]),
		Amount: amount,
		Reason: CellText(p["reason"]),
	}, nil
}

// CellText renders a decoded JSON or sheet value as text. Numbers keep their
// shortest form and nil becomes the empty string.
func CellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return FormatAmount(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
