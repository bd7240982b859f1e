package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/sheets"
)

func TestSheetLifecycle(t *testing.T) {
	ctx := context.Background()
	sh := New()

	conn := sh.Connect(ctx)
	s, ok := conn.Session()
	require.True(t, ok)

	require.NoError(t, sheets.AppendExpense(ctx, s, "2024-02-01", 10, "Fuel", "ts"))
	assert.Equal(t, [][]any{
		{"Date", "Amount", "Reason", "Timestamp"},
		{"2024-02-01", 10.0, "Fuel", "ts"},
	}, sh.Values())

	require.NoError(t, s.DeleteRow(ctx, 2))
	require.NoError(t, s.DeleteRow(ctx, 9))
	n, err := s.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnavailableAndInjectedFailures(t *testing.T) {
	ctx := context.Background()
	sh := New()

	sh.SetAvailable(false)
	_, ok := sh.Connect(ctx).Session()
	assert.False(t, ok)

	sh.SetAvailable(true)
	sh.FailOn("read", true)
	_, err := sh.ReadAll(ctx)
	assert.ErrorIs(t, err, ErrInjected)

	sh.FailOn("read", false)
	rows, err := sh.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
