package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType is either an income or an expense.
type MovementType string

const (
	Income  MovementType = "INCOME"
	Expense MovementType = "EXPENSE"
)

func ParseMovementType(s string) (MovementType, error) {
	switch MovementType(strings.ToUpper(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", fmt.Errorf("unknown movement type %q", s)
}

func (t MovementType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	}
	return false
}

// Sign returns +1 for income and -1 for expense.
func (t MovementType) Sign() int {
	switch t {
	case Income:
		return 1
	case Expense:
		return -1
	}
	panic(fmt.Sprintf("movement type %q has no sign", string(t)))
}

func (t *MovementType) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("movement type: unsupported type %T", src)
	}
	parsed, err := ParseMovementType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t MovementType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown movement type %q", string(t))
	}
	return string(t), nil
}

type Movement struct {
	ID          string          `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	Type        MovementType    `db:"type" json:"type"`
	Date        time.Time       `db:"date" json:"date"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`

	// Owner details, filled by joined reads.
	OwnerName  string `db:"owner_name" json:"owner_name,omitempty"`
	OwnerEmail string `db:"owner_email" json:"owner_email,omitempty"`
}

// Signed returns the amount with the sign of its type applied.
func (m Movement) Signed() decimal.Decimal {
	if m.Type.Sign() < 0 {
		return m.Amount.Neg()
	}
	return m.Amount
}

// MovementFilter narrows a movement read. Zero fields do not filter.
type MovementFilter struct {
	UserIDs []string
	Type    MovementType
	Since   *time.Time
	Until   *time.Time
	Offset  int
	Limit   int
	// Newest orders by date descending instead of ascending.
	Newest bool
}
