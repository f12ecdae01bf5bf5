// Package balance folds movements into totals and running balances.
package balance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaughan-dsouza/ledger/internal/models"
)

// Summary holds the totals of a set of movements.
type Summary struct {
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	MovementCount    int             `json:"movement_count"`
	LastMovementDate *time.Time      `json:"last_movement_date"`
}

// Summarize totals movs. Order does not matter.
func Summarize(movs []models.Movement) Summary {
	s := Summary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}
	for i := range movs {
		m := &movs[i]
		switch m.Type {
		case models.Income:
			s.TotalIncome = s.TotalIncome.Add(m.Amount)
		case models.Expense:
			s.TotalExpense = s.TotalExpense.Add(m.Amount)
		}
		if s.LastMovementDate == nil || m.Date.After(*s.LastMovementDate) {
			d := m.Date
			s.LastMovementDate = &d
		}
	}
	s.MovementCount = len(movs)
	s.CurrentBalance = s.TotalIncome.Sub(s.TotalExpense)
	return s
}

// DailyBalance is the cumulative balance at the end of one calendar day.
type DailyBalance struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// History returns days+1 entries, one per calendar day in loc from
// now-days through now. Each entry carries the running total of every
// movement up to and including that day. Movements dated before the window
// open the series; movements after now are ignored.
func History(movs []models.Movement, days int, now time.Time, loc *time.Location) []DailyBalance {
	if days < 0 {
		days = 0
	}
	if loc == nil {
		loc = time.UTC
	}

	now = now.In(loc)
	start := time.Date(now.Year(), now.Month(), now.Day()-days, 0, 0, 0, 0, loc)
	n := days + 1

	opening := decimal.Zero
	net := make([]decimal.Decimal, n)
	for i := range net {
		net[i] = decimal.Zero
	}

	for i := range movs {
		idx := DaysBetween(start, movs[i].Date.In(loc))
		switch {
		case idx < 0:
			opening = opening.Add(movs[i].Signed())
		case idx < n:
			net[idx] = net[idx].Add(movs[i].Signed())
		}
	}

	out := make([]DailyBalance, n)
	running := opening
	for i := 0; i < n; i++ {
		running = running.Add(net[i])
		out[i] = DailyBalance{
			Date:    start.AddDate(0, 0, i).Format(time.DateOnly),
			Balance: running,
		}
	}
	return out
}

// DaysBetween counts calendar days from a to b, ignoring clock time and
// DST shifts. Negative when b falls on an earlier day.
func DaysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
