// Package validate checks request payloads before they reach the store.
//
// Every function collects all field problems and reports them together as an
// apperr Validation error; none of them panic on malformed input.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

// Amounts are bounded to 1,000,000 with cents, so any exponent outside
// this window is either too large or too precise.
const (
	minAmountExp = -18
	maxAmountExp = 7
)

var MaxAmount = decimal.NewFromInt(1_000_000)

var checker = newChecker()

func newChecker() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterAlias("label", "min=1,max=255")
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	return v
}

// fieldErrors turns validator failures into field details. field names the
// value when it was checked on its own rather than as a struct field.
func fieldErrors(err error, field string) []apperr.FieldError {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []apperr.FieldError{{Field: field, Message: field + " is invalid"}}
	}
	out := make([]apperr.FieldError, 0, len(ves))
	for _, fe := range ves {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out = append(out, apperr.FieldError{Field: name, Message: message(name, fe)})
	}
	return out
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be valid"
	case "label":
		return field + " must be between 1 and 255 characters"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", field, fe.Param())
	}
	return field + " is invalid"
}

// MovementInput is the raw body of a movement creation request.
// Amount is kept raw because clients send it either as a number or a string.
type MovementInput struct {
	Amount      json.RawMessage `json:"amount"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	Date        *string         `json:"date"`
}

// NewMovement is a validated movement ready to be stored.
type NewMovement struct {
	Amount      decimal.Decimal
	Description string
	Type        models.MovementType
	Date        time.Time
}

// Movement validates a creation payload. A missing date defaults to now.
func Movement(in MovementInput, now time.Time) (NewMovement, error) {
	var (
		out  NewMovement
		errs []apperr.FieldError
	)

	amount, msg := parseAmount(in.Amount)
	if msg != "" {
		errs = append(errs, apperr.FieldError{Field: "amount", Message: msg})
	}
	out.Amount = amount

	if in.Description == nil {
		errs = append(errs, apperr.FieldError{Field: "description", Message: "description is required"})
	} else {
		d := strings.TrimSpace(*in.Description)
		if err := checker.Var(d, "required,max=255"); err != nil {
			errs = append(errs, fieldErrors(err, "description")...)
		}
		out.Description = d
	}

	if in.Type == nil {
		errs = append(errs, apperr.FieldError{Field: "type", Message: "type is required"})
	} else if t, err := models.ParseMovementType(*in.Type); err != nil {
		errs = append(errs, apperr.FieldError{Field: "type", Message: "type must be INCOME or EXPENSE"})
	} else {
		out.Type = t
	}

	out.Date = now
	if in.Date != nil && strings.TrimSpace(*in.Date) != "" {
		d, err := parseDate(*in.Date)
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "date", Message: "date must be RFC 3339 or YYYY-MM-DD"})
		} else {
			out.Date = d
		}
	}

	if len(errs) > 0 {
		return NewMovement{}, apperr.Invalid(errs)
	}
	return out, nil
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, "amount is required"
	}

	var s string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, "amount must be a number"
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, "amount must be a number"
	}
	switch {
	case !d.IsPositive():
		return decimal.Zero, "amount must be greater than 0"
	case d.Exponent() > maxAmountExp:
		return decimal.Zero, "amount must not exceed 1,000,000"
	case d.Exponent() < minAmountExp:
		return decimal.Zero, "amount must have at most 2 decimal places"
	case d.GreaterThan(MaxAmount):
		return decimal.Zero, "amount must not exceed 1,000,000"
	case !d.Equal(d.Round(2)):
		return decimal.Zero, "amount must have at most 2 decimal places"
	}
	return d, ""
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// UserInput is the body of a profile edit. Absent fields stay unchanged.
type UserInput struct {
	Name  *string `json:"name" validate:"omitnil,label"`
	Email *string `json:"email" validate:"omitnil,email"`
	Role  *string `json:"role"`
}

func User(in UserInput) (models.UserUpdate, error) {
	var (
		out  models.UserUpdate
		errs []apperr.FieldError
	)

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}

	if err := checker.Struct(in); err != nil {
		errs = fieldErrors(err, "body")
	} else {
		out.Name, out.Email = in.Name, in.Email
	}

	if in.Role != nil {
		r, err := models.ParseRole(*in.Role)
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "role", Message: "role must be USER or ADMIN"})
		} else {
			out.Role = &r
		}
	}

	if len(errs) == 0 && out.Empty() {
		errs = append(errs, apperr.FieldError{Field: "body", Message: "at least one of name, email or role is required"})
	}
	if len(errs) > 0 {
		return models.UserUpdate{}, apperr.Invalid(errs)
	}
	return out, nil
}

// SignUpInput is the body of a registration request.
type SignUpInput struct {
	Name     string `json:"name" validate:"label"`
	Email    string `json:"email" validate:"required,email"`
	// bcrypt accepts at most 72 bytes.
	Password string `json:"password" validate:"min=8,maxbytes=72"`
}

// SignUp normalizes and checks a registration payload.
func SignUp(in SignUpInput) (SignUpInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := checker.Struct(in); err != nil {
		return SignUpInput{}, apperr.Invalid(fieldErrors(err, "body"))
	}
	return in, nil
}
