package core

import (
	"fmt"
	"time"
)

// MonthSummary aggregates the expenses of one calendar month.
type MonthSummary struct {
	Key   string  `json:"key"`
	Name  string  `json:"name"`
	Year  int     `json:"year"`
	Month int     `json:"month"` // 1-12
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// MonthKey returns the YYYY-MM key of a month.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// MonthName returns the full month name followed by the year, e.g. "January 2024".
func MonthName(year, month int) string {
	return fmt.Sprintf("%s %d", time.Month(month).String(), year)
}
