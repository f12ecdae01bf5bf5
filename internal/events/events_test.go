package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestMovementCreatedEvent(t *testing.T) {
	m := models.Movement{
		ID:     "m-1",
		UserID: "u-1",
		Amount: decimal.RequireFromString("12.50"),
		Type:   models.Expense,
		Date:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	ev, err := MovementCreated(m)
	require.NoError(t, err)
	assert.Equal(t, TypeMovementCreated, ev.Type)
	assert.NotEmpty(t, ev.ID)

	var p MovementCreatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, "m-1", p.MovementID)
	assert.Equal(t, models.Expense, p.Type)
	assert.True(t, m.Amount.Equal(p.Amount))
}

func TestUserUpdatedListsChangedFields(t *testing.T) {
	name := "New"
	role := models.RoleAdmin
	ev, err := UserUpdated(models.User{ID: "u-2", Role: models.RoleAdmin}, "u-1", models.UserUpdate{Name: &name, Role: &role})
	require.NoError(t, err)

	var p UserUpdatedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &p))
	assert.Equal(t, []string{"name", "role"}, p.Fields)
	assert.Equal(t, "u-1", p.ActorID)
}

func TestAMQPPublisherRoutesByType(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "ledger.events", log.Discard())

	ev, err := MovementCreated(models.Movement{ID: "m-1", Type: models.Income, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "ledger.events", got.exchange)
	assert.Equal(t, TypeMovementCreated, got.key)
	assert.Equal(t, amqp091.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, ev.ID, got.msg.MessageId)

	var decoded Event
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestAMQPPublisherWrapsErrors(t *testing.T) {
	boom := errors.New("channel closed")
	p := newPublisher(&fakeChannel{err: boom}, "x", log.Discard())

	err := p.Publish(context.Background(), Event{ID: "1", Type: TypeUserUpdated})
	assert.ErrorIs(t, err, boom)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
