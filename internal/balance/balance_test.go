package balance

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaughan-dsouza/ledger/internal/models"
)

func mv(amount int64, t models.MovementType, at time.Time) models.Movement {
	return models.Movement{Amount: decimal.NewFromInt(amount), Type: t, Date: at}
}

func balances(h []DailyBalance) []string {
	out := make([]string, len(h))
	for i, d := range h {
		out[i] = d.Balance.String()
	}
	return out
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.CurrentBalance.IsZero())
	assert.Equal(t, 0, s.MovementCount)
	assert.Nil(t, s.LastMovementDate)
}

func TestSummarize(t *testing.T) {
	d1 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	d2 := d1.Add(48 * time.Hour)
	s := Summarize([]models.Movement{
		mv(100, models.Income, d1),
		mv(40, models.Expense, d2),
		mv(10, models.Income, d1),
	})

	assert.Equal(t, "110", s.TotalIncome.String())
	assert.Equal(t, "40", s.TotalExpense.String())
	assert.Equal(t, "70", s.CurrentBalance.String())
	assert.Equal(t, 3, s.MovementCount)
	require.NotNil(t, s.LastMovementDate)
	assert.Equal(t, d2, *s.LastMovementDate)
}

func TestSummarizeBalanceIdentity(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for round := 0; round < 50; round++ {
		var movs []models.Movement
		n := r.Intn(30)
		for i := 0; i < n; i++ {
			typ := models.Income
			if r.Intn(2) == 0 {
				typ = models.Expense
			}
			amt := decimal.New(r.Int63n(1_000_000)+1, -2)
			movs = append(movs, models.Movement{Amount: amt, Type: typ, Date: base.Add(time.Duration(r.Intn(1000)) * time.Hour)})
		}
		s := Summarize(movs)
		assert.True(t, s.TotalIncome.Sub(s.TotalExpense).Equal(s.CurrentBalance))
	}
}

func TestHistoryExample(t *testing.T) {
	day1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	day3 := time.Date(2025, 5, 3, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 5, 3, 18, 0, 0, 0, time.UTC)

	h := History([]models.Movement{
		mv(100, models.Income, day1),
		mv(40, models.Expense, day1),
		mv(10, models.Income, day3),
	}, 2, now, time.UTC)

	require.Len(t, h, 3)
	assert.Equal(t, []string{"2025-05-01", "2025-05-02", "2025-05-03"}, []string{h[0].Date, h[1].Date, h[2].Date})
	assert.Equal(t, []string{"60", "60", "70"}, balances(h))
}

func TestHistoryOrderIndependent(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	movs := []models.Movement{
		mv(5, models.Income, now.AddDate(0, 0, -3)),
		mv(7, models.Expense, now.AddDate(0, 0, -3)),
		mv(20, models.Income, now.AddDate(0, 0, -1)),
		mv(1, models.Expense, now),
	}
	reversed := []models.Movement{movs[3], movs[2], movs[1], movs[0]}

	assert.Equal(t, balances(History(movs, 5, now, time.UTC)), balances(History(reversed, 5, now, time.UTC)))
}

func TestHistoryStepsByDailyNet(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	movs := []models.Movement{
		mv(50, models.Income, now.AddDate(0, 0, -20)), // before the window
		mv(30, models.Expense, now.AddDate(0, 0, -4)),
		mv(12, models.Income, now.AddDate(0, 0, -2)),
		mv(3, models.Expense, now.AddDate(0, 0, -2)),
		mv(999, models.Income, now.AddDate(0, 0, 2)), // future, ignored
	}
	h := History(movs, 6, now, time.UTC)
	require.Len(t, h, 7)

	net := map[string]decimal.Decimal{}
	for _, m := range movs {
		key := m.Date.Format(time.DateOnly)
		net[key] = net[key].Add(m.Signed())
	}

	assert.Equal(t, "50", h[0].Balance.String(), "opening balance carries earlier movements")
	for i := 1; i < len(h); i++ {
		want := h[i-1].Balance.Add(net[h[i].Date])
		assert.True(t, want.Equal(h[i].Balance), "day %s", h[i].Date)
	}
	assert.Equal(t, "29", h[len(h)-1].Balance.String())
}

func TestHistoryLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2025, 5, 3, 12, 0, 0, 0, loc)
	// 02:00 UTC on the 3rd is still the 2nd in UTC-5.
	at := time.Date(2025, 5, 3, 2, 0, 0, 0, time.UTC)

	h := History([]models.Movement{mv(10, models.Income, at)}, 1, now, loc)
	assert.Equal(t, []string{"10", "10"}, balances(h))
	assert.Equal(t, "2025-05-02", h[0].Date)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 29, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 3, 31, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, -2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a.Add(-time.Hour)))
}
