// Package report groups movements into chart buckets and CSV exports.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vaughan-dsouza/ledger/internal/balance"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

// MaxBuckets bounds the size of a single chart.
const MaxBuckets = 2000

var ErrTooManyBuckets = errors.New("report: too many buckets")

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod defaults to month when s is empty.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodMonth, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Granularity is the width of one bucket.
type Granularity int

const (
	Hourly Granularity = iota
	Daily
	Monthly
)

func (p Period) Granularity() Granularity {
	switch p {
	case PeriodDay:
		return Hourly
	case PeriodWeek, PeriodMonth:
		return Daily
	case PeriodYear:
		return Monthly
	}
	panic(fmt.Sprintf("report: unknown period %q", string(p)))
}

// DefaultRange is the window ending at now that the period covers when the
// caller gives no explicit dates.
func (p Period) DefaultRange(now time.Time) (from, to time.Time) {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1), now
	case PeriodWeek:
		return now.AddDate(0, 0, -7), now
	case PeriodYear:
		return now.AddDate(-1, 0, 0), now
	case PeriodMonth:
		return now.AddDate(0, -1, 0), now
	}
	panic(fmt.Sprintf("report: unknown period %q", string(p)))
}

// BucketKey identifies a bucket by its distance from the first bucket of a
// chart, in units of the granularity.
type BucketKey struct {
	Granularity Granularity
	Offset      int
}

// Floor returns the start of the bucket containing t.
func (g Granularity) Floor(t time.Time) time.Time {
	switch g {
	case Hourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	panic("report: unknown granularity")
}

// Start returns the start time of the bucket at offset i from start.
func (g Granularity) Start(start time.Time, i int) time.Time {
	switch g {
	case Hourly:
		return start.Add(time.Duration(i) * time.Hour)
	case Daily:
		return start.AddDate(0, 0, i)
	case Monthly:
		return start.AddDate(0, i, 0)
	}
	panic("report: unknown granularity")
}

// Key places t relative to the bucket that starts at start. Both times must
// be in the same location.
func (g Granularity) Key(start, t time.Time) BucketKey {
	k := BucketKey{Granularity: g}
	switch g {
	case Hourly:
		d := t.Sub(start)
		k.Offset = int(d / time.Hour)
		if d < 0 && d%time.Hour != 0 {
			k.Offset--
		}
	case Daily:
		k.Offset = balance.DaysBetween(start, t)
	case Monthly:
		k.Offset = (t.Year()*12 + int(t.Month())) - (start.Year()*12 + int(start.Month()))
	default:
		panic("report: unknown granularity")
	}
	return k
}

func (g Granularity) Label(t time.Time) string {
	switch g {
	case Hourly:
		return t.Format("02 Jan 15:00")
	case Daily:
		return t.Format("Mon 02 Jan")
	case Monthly:
		return t.Format("Jan 2006")
	}
	panic("report: unknown granularity")
}

// Chart is the bucketed view of a period. The slices are parallel: index i
// of every series belongs to Labels[i].
type Chart struct {
	Period       Period            `json:"period"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	Labels       []string          `json:"labels"`
	BucketStarts []time.Time       `json:"bucket_starts"`
	Income       []decimal.Decimal `json:"income"`
	Expense      []decimal.Decimal `json:"expense"`
	Balance      []decimal.Decimal `json:"balance"`
	Totals       balance.Summary   `json:"totals"`
}

// Build buckets the movements dated within [from, to]. Buckets are taken in
// loc; the balance series is the running net across buckets, starting at
// zero.
func Build(movs []models.Movement, p Period, from, to time.Time, loc *time.Location) (Chart, error) {
	if loc == nil {
		loc = time.UTC
	}
	if to.Before(from) {
		return Chart{}, fmt.Errorf("report: range end %s is before start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	g := p.Granularity()
	from, to = from.In(loc), to.In(loc)
	start := g.Floor(from)
	n := g.Key(start, to).Offset + 1
	if n > MaxBuckets {
		return Chart{}, fmt.Errorf("%w: range needs %d, limit is %d", ErrTooManyBuckets, n, MaxBuckets)
	}

	c := Chart{
		Period:       p,
		From:         from,
		To:           to,
		Labels:       make([]string, n),
		BucketStarts: make([]time.Time, n),
		Income:       make([]decimal.Decimal, n),
		Expense:      make([]decimal.Decimal, n),
		Balance:      make([]decimal.Decimal, n),
	}
	for i := 0; i < n; i++ {
		bs := g.Start(start, i)
		c.Labels[i] = g.Label(bs)
		c.BucketStarts[i] = bs
		c.Income[i] = decimal.Zero
		c.Expense[i] = decimal.Zero
	}

	inRange := make([]models.Movement, 0, len(movs))
	for _, m := range movs {
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		k := g.Key(start, m.Date.In(loc))
		if k.Offset < 0 || k.Offset >= n {
			continue
		}
		switch m.Type {
		case models.Income:
			c.Income[k.Offset] = c.Income[k.Offset].Add(m.Amount)
		case models.Expense:
			c.Expense[k.Offset] = c.Expense[k.Offset].Add(m.Amount)
		}
		inRange = append(inRange, m)
	}

	running := decimal.Zero
	for i := 0; i < n; i++ {
		running = running.Add(c.Income[i]).Sub(c.Expense[i])
		c.Balance[i] = running
	}
	c.Totals = balance.Summarize(inRange)
	return c, nil
}
