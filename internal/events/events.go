// Package events carries domain notifications out of the service.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vaughan-dsouza/ledger/internal/models"
)

const (
	TypeMovementCreated = "movement.created"
	TypeUserUpdated     = "user.updated"
)

// Event is the envelope published for every domain change.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type MovementCreatedPayload struct {
	MovementID string              `json:"movement_id"`
	UserID     string              `json:"user_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Type       models.MovementType `json:"type"`
	Date       time.Time           `json:"date"`
}

type UserUpdatedPayload struct {
	UserID  string      `json:"user_id"`
	ActorID string      `json:"actor_id"`
	Fields  []string    `json:"fields"`
	Role    models.Role `json:"role"`
}

func newEvent(typ string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

func MovementCreated(m models.Movement) (Event, error) {
	return newEvent(TypeMovementCreated, MovementCreatedPayload{
		MovementID: m.ID,
		UserID:     m.UserID,
		Amount:     m.Amount,
		Type:       m.Type,
		Date:       m.Date,
	})
}

// UserUpdated records which profile fields actorID changed on u.
func UserUpdated(u models.User, actorID string, upd models.UserUpdate) (Event, error) {
	var fields []string
	if upd.Name != nil {
		fields = append(fields, "name")
	}
	if upd.Email != nil {
		fields = append(fields, "email")
	}
	if upd.Role != nil {
		fields = append(fields, "role")
	}
	return newEvent(TypeUserUpdated, UserUpdatedPayload{
		UserID:  u.ID,
		ActorID: actorID,
		Fields:  fields,
		Role:    u.Role,
	})
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// Nop discards every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
