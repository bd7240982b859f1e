package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for server-assigned timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type (
	// Expense is a single ledger entry. ID is durable for locally stored
	// records and a view-time position for records read from the remote sheet.
	Expense struct {
		ID        string  `json:"id"`
		Date      string  `json:"date"`
		Amount    float64 `json:"amount"`
		Reason    string  `json:"reason"`
		Timestamp string  `json:"timestamp"`
	}

	// NewExpense carries the caller-supplied fields of an add operation.
	NewExpense struct {
		Date   string
		Amount float64
		Reason string
	}

	// Source names the store that served a listing.
	Source string
)

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidID     = errors.New("invalid expense id")
	ErrInvalidDate   = errors.New("invalid date")
	ErrSaveFailed    = errors.New("failed to save expense")
)

// NewRecord builds the stored form of an expense.
func NewRecord(id string, in NewExpense, at time.Time) Expense {
	return Expense{
		ID:        id,
		Date:      in.Date,
		Amount:    in.Amount,
		Reason:    in.Reason,
		Timestamp: at.Format(TimestampLayout),
	}
}

// ParseID converts an expense id to its integer form.
func ParseID(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

// dateLayouts are the ISO-8601 shapes accepted for expense dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

// ParseDate parses an ISO date or date-time. A trailing Z is read as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
