package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"kharcha/internal/core"
	"kharcha/internal/ledger/memory"
)

func newTestGenerator(records ...core.Expense) *Generator {
	fixed := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	return NewGenerator(memory.New(records...), WithClock(func() time.Time { return fixed }))
}

func sampleLedger() []core.Expense {
	return []core.Expense{
		{ID: "0", Date: "2024-01-05", Amount: 100.25, Reason: "Groceries", Timestamp: "t0"},
		{ID: "1", Date: "2024-01-20", Amount: 31.5, Reason: "Taxi, airport", Timestamp: "t1"},
		{ID: "2", Date: "2024-02-01T08:15:00Z", Amount: 12, Reason: "Tea", Timestamp: "t2"},
	}
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestMonthsGroupsAndOrdersDescending(t *testing.T) {
	months, err := newTestGenerator(sampleLedger()...).Months(context.Background())
	require.NoError(t, err)

	require.Len(t, months, 2)
	assert.Equal(t, core.MonthSummary{Key: "2024-02", Name: "February 2024", Year: 2024, Month: 2, Count: 1, Total: 12}, months[0])
	assert.Equal(t, "2024-01", months[1].Key)
	assert.Equal(t, 2, months[1].Count)
	assert.Equal(t, 131.75, months[1].Total)
}

func TestMonthsEmptyLedger(t *testing.T) {
	months, err := newTestGenerator().Months(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, months)
	assert.Empty(t, months)
}

func TestMonthsFailsOnBadDate(t *testing.T) {
	_, err := newTestGenerator(core.Expense{ID: "0", Date: "yesterday"}).Months(context.Background())
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestFullCSV(t *testing.T) {
	f, err := newTestGenerator(sampleLedger()...).Full(context.Background(), FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "All_Expenses_2024-03-15.csv", f.Name)
	assert.Equal(t, "text/csv; charset=utf-8", f.ContentType)

	rows := readCSV(t, f.Data)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Amount (₹)", "Reason", "Timestamp"}, rows[0])
	assert.Equal(t, []string{"2024-01-05", "100.25", "Groceries", "t0"}, rows[1])
	assert.Equal(t, []string{"2024-01-20", "31.5", "Taxi, airport", "t1"}, rows[2])
	assert.Equal(t, []string{"2024-02-01T08:15:00Z", "12", "Tea", "t2"}, rows[3])
}

func TestMonthlyCSVWithSummary(t *testing.T) {
	f, err := newTestGenerator(sampleLedger()...).Monthly(context.Background(), 2024, 1, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "January_2024_Expenses.csv", f.Name)

	rows := readCSV(t, f.Data)
	assert.Equal(t, [][]string{
		{"Monthly Expense Report - January 2024"},
		{"Date", "Amount (₹)", "Reason", "Timestamp"},
		{"2024-01-05", "100.25", "Groceries", "t0"},
		{"2024-01-20", "31.5", "Taxi, airport", "t1"},
		{"Summary"},
		{"Total Transactions", "2"},
		{"Total Amount (₹)", "131.75"},
		{"Average per Transaction (₹)", "65.88"},
	}, rows)

	assert.Contains(t, string(f.Data), "January 2024\n\nDate,")
}

func TestMonthlyCSVEmptyMonthAveragesZero(t *testing.T) {
	f, err := newTestGenerator(sampleLedger()...).Monthly(context.Background(), 2023, 7, FormatCSV)
	require.NoError(t, err)

	rows := readCSV(t, f.Data)
	n := len(rows)
	assert.Equal(t, []string{"Total Transactions", "0"}, rows[n-3])
	assert.Equal(t, []string{"Total Amount (₹)", "0"}, rows[n-2])
	assert.Equal(t, []string{"Average per Transaction (₹)", "0.00"}, rows[n-1])
}

func TestMonthlyFailsOnBadDate(t *testing.T) {
	g := newTestGenerator(append(sampleLedger(), core.Expense{ID: "3", Date: "05/01/2024"})...)
	_, err := g.Monthly(context.Background(), 2024, 1, FormatCSV)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestMonthlyXLSX(t *testing.T) {
	f, err := newTestGenerator(sampleLedger()...).Monthly(context.Background(), 2024, 1, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "January_2024_Expenses.xlsx", f.Name)

	book, err := excelize.OpenReader(bytes.NewReader(f.Data))
	require.NoError(t, err)
	defer book.Close()

	title, err := book.GetCellValue("January 2024", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Monthly Expense Report - January 2024", title)

	amount, err := book.GetCellValue("January 2024", "B4")
	require.NoError(t, err)
	assert.Equal(t, "100.25", amount)

	count, err := book.GetCellValue("January 2024", "B8")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestFullXLSXHeader(t *testing.T) {
	f, err := newTestGenerator(sampleLedger()...).Full(context.Background(), FormatXLSX)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(f.Data))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Expenses")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Date", "Amount (₹)", "Reason", "Timestamp"}, rows[0])
	assert.Equal(t, "Tea", rows[3][2])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
