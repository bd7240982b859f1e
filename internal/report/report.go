// Package report derives month summaries and downloadable exports from the
// local ledger.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"kharcha/internal/core"
	"kharcha/internal/ledger"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

var amountHeader = []any{"Date", "Amount (₹)", "Reason", "Timestamp"}

type Generator struct {
	store ledger.Store
	title string
	now   func() time.Time
}

type Option func(*Generator)

// WithTitle sets the prefix of the monthly report title row.
func WithTitle(title string) Option {
	return func(g *Generator) { g.title = title }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(store ledger.Store, opts ...Option) *Generator {
	g := &Generator{store: store, title: "Monthly Expense Report", now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Months groups the ledger by calendar month, newest first.
func (g *Generator) Months(ctx context.Context) ([]core.MonthSummary, error) {
	type acc struct {
		count int
		total decimal.Decimal
	}
	groups := map[[2]int]*acc{}

	for _, e := range ledger.LoadOrEmpty(ctx, g.store) {
		t, err := core.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		k := [2]int{t.Year(), int(t.Month())}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.total = a.total.Add(decimal.NewFromFloat(e.Amount))
	}

	out := make([]core.MonthSummary, 0, len(groups))
	for k, a := range groups {
		out = append(out, core.MonthSummary{
			Key:   core.MonthKey(k[0], k[1]),
			Name:  core.MonthName(k[0], k[1]),
			Year:  k[0],
			Month: k[1],
			Count: a.count,
			Total: a.total.InexactFloat64(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Full exports every ledger record.
func (g *Generator) Full(ctx context.Context, format Format) (*File, error) {
	records := ledger.LoadOrEmpty(ctx, g.store)

	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, amountHeader)
	for _, e := range records {
		rows = append(rows, recordRow(e))
	}

	name := fmt.Sprintf("All_Expenses_%s", g.now().Format("2006-01-02"))
	return render(name, "Expenses", rows, format)
}

// Monthly exports the records dated in the given month followed by a
// summary block.
func (g *Generator) Monthly(ctx context.Context, year, month int, format Format) (*File, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d", core.ErrInvalidDate, month)
	}

	var matched []core.Expense
	for _, e := range ledger.LoadOrEmpty(ctx, g.store) {
		t, err := core.ParseDate(e.Date)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		if t.Year() == year && int(t.Month()) == month {
			matched = append(matched, e)
		}
	}

	monthName := core.MonthName(year, month)
	rows := [][]any{
		{fmt.Sprintf("%s - %s", g.title, monthName)},
		{},
		amountHeader,
	}
	for _, e := range matched {
		rows = append(rows, recordRow(e))
	}

	s := summarize(matched)
	rows = append(rows,
		[]any{},
		[]any{"Summary"},
		[]any{"Total Transactions", s.count},
		[]any{"Total Amount (₹)", s.total},
		[]any{"Average per Transaction (₹)", fixed{s.average}},
	)

	name := fmt.Sprintf("%s_Expenses", strings.ReplaceAll(monthName, " ", "_"))
	return render(name, monthName, rows, format)
}

type summary struct {
	count   int
	total   decimal.Decimal
	average decimal.Decimal
}

func summarize(records []core.Expense) summary {
	s := summary{count: len(records)}
	for _, e := range records {
		s.total = s.total.Add(decimal.NewFromFloat(e.Amount))
	}
	if s.count > 0 {
		s.average = s.total.Div(decimal.NewFromInt(int64(s.count))).Round(2)
	}
	return s
}

func recordRow(e core.Expense) []any {
	return []any{e.Date, e.Amount, e.Reason, e.Timestamp}
}

// fixed is a two-decimal figure.
type fixed struct{ decimal.Decimal }

func render(name, sheet string, rows [][]any, format Format) (*File, error) {
	switch format {
	case FormatXLSX:
		data, err := writeXLSX(sheet, rows)
		if err != nil {
			return nil, err
		}
		return &File{
			Name:        name + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	case FormatCSV, "":
		data, err := writeCSV(rows)
		if err != nil {
			return nil, err
		}
		return &File{Name: name + ".csv", ContentType: "text/csv; charset=utf-8", Data: data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
