package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/vaughan-dsouza/ledger/internal/balance"
	"github.com/vaughan-dsouza/ledger/internal/models"
)

const csvTimeLayout = "2006-01-02 15:04"

var csvHeader = []string{"Date", "User", "Email", "Type", "Amount", "Description", "CreatedAt"}

// ExportFilename names the CSV download for the given day.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("movements-report-%s.csv", now.Format(time.DateOnly))
}

// WriteCSV writes one row per movement followed by a blank line and the
// summary block: a SUMMARY marker and the income, expense and balance totals
// in the Amount column. Times are rendered in loc.
func WriteCSV(w io.Writer, movs []models.Movement, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, m := range movs {
		row := []string{
			m.Date.In(loc).Format(csvTimeLayout),
			m.OwnerName,
			m.OwnerEmail,
			typeLabel(m.Type),
			m.Amount.StringFixed(2),
			m.Description,
			m.CreatedAt.In(loc).Format(csvTimeLayout),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", m.ID, err)
		}
	}

	totals := balance.Summarize(movs)
	summary := [][]string{
		{},
		{"SUMMARY", "", "", "", "", "", ""},
		{"Total Income", "", "", "", totals.TotalIncome.StringFixed(2), "", ""},
		{"Total Expense", "", "", "", totals.TotalExpense.StringFixed(2), "", ""},
		{"Final Balance", "", "", "", totals.CurrentBalance.StringFixed(2), "", ""},
	}
	if err := cw.WriteAll(summary); err != nil {
		return fmt.Errorf("write csv summary: %w", err)
	}
	return nil
}

func typeLabel(t models.MovementType) string {
	switch t {
	case models.Income:
		return "Income"
	case models.Expense:
		return "Expense"
	}
	return string(t)
}
