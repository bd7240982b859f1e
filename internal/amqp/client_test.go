package amqp

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kharcha/internal/core"
	"kharcha/internal/log"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	deadline bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	_, f.deadline = ctx.Deadline()
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func newTestClient(ch *fakeChannel) *Client {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Client{channel: ch, exchangeName: "kharcha", now: func() time.Time { return fixed }}
}

func TestExpenseCreatedPublishesPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestClient(ch)
	e := core.Expense{ID: "3", Date: "2024-03-01", Amount: 250, Reason: "Dinner", Timestamp: "2024-03-01T12:00:00.000000Z"}

	require.NoError(t, c.ExpenseCreated(context.Background(), e))

	assert.Equal(t, "kharcha", ch.exchange)
	assert.Equal(t, EventExpenseCreated, ch.key)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.True(t, ch.deadline)

	ev, err := LedgerEventFromJSON(ch.msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "3", ev.ExpenseID)
	require.NotNil(t, ev.Expense)
	assert.Equal(t, e, *ev.Expense)
	assert.Equal(t, ch.msg.MessageId, ev.EventID)
	_, err = uuid.Parse(ev.EventID)
	assert.NoError(t, err)
}

func TestExpenseDeletedOmitsExpense(t *testing.T) {
	ch := &fakeChannel{}
	c := newTestClient(ch)

	require.NoError(t, c.ExpenseDeleted(context.Background(), "7"))

	assert.Equal(t, EventExpenseDeleted, ch.key)
	assert.NotContains(t, string(ch.msg.Body), `"expense":`)
	assert.Contains(t, string(ch.msg.Body), `"expense_id":"7"`)
}

func TestPublishErrorIsWrapped(t *testing.T) {
	boom := errors.New("channel closed")
	c := newTestClient(&fakeChannel{err: boom})

	err := c.ExpenseDeleted(context.Background(), "1")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "publish expense.deleted")
}

func TestPublishLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelDebug, Output: &buf})
	ctx := log.NewContext(context.Background(), logger)

	require.NoError(t, newTestClient(&fakeChannel{}).ExpenseDeleted(ctx, "7"))

	assert.Contains(t, buf.String(), "Published ledger event")
	assert.Contains(t, buf.String(), log.FieldComponent+"="+log.ComponentAMQP)
	assert.Contains(t, buf.String(), log.FieldExpenseID+"=7")
}
