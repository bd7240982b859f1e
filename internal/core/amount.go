package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AmountFromValue converts a decoded JSON value or a spreadsheet cell to an
// amount. Numbers pass through; numeric text is parsed. NaN and infinities
// are rejected.
func AmountFromValue(v any) (float64, error) {
	f, err := amountFromValue(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, v)
	}
	return f, nil
}

func amountFromValue(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, n.String())
		}
		return f, nil
	case string:
		s := strings.TrimSpace(n)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

// FormatAmount renders an amount with the shortest exact representation.
func FormatAmount(a float64) string {
	return strconv.FormatFloat(a, 'f', -1, 64)
}
