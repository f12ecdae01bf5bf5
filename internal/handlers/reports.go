package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/balance"
	"github.com/vaughan-dsouza/ledger/internal/log"
	"github.com/vaughan-dsouza/ledger/internal/models"
	"github.com/vaughan-dsouza/ledger/internal/report"
	"github.com/vaughan-dsouza/ledger/internal/utils"
)

type ReportHandler struct {
	base
}

type exportJSON struct {
	Movements []models.Movement `json:"movements"`
	Totals    balance.Summary   `json:"totals"`
}

// ---------------------- SUMMARY ----------------------

// Summary buckets the movements of the requested period into a chart.
// Without explicit dates the range is the period ending now.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := h.location()

	period, err := report.ParsePeriod(q.Get("period"))
	if err != nil {
		h.fail(w, r, log.OpRead, apperr.Invalid([]apperr.FieldError{{Field: "period", Message: "period must be day, week, month or year"}}))
		return
	}
	ids, err := userIDs("userIds", q.Get("userIds"))
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}
	start, end, err := dateRange(r, loc)
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	// An endDate alone moves the default window back to end there.
	anchor := h.now().In(loc)
	if end != nil {
		anchor = *end
	}
	from, to := period.DefaultRange(anchor)
	if start != nil {
		from = *start
	}
	if end != nil {
		to = *end
	}
	if to.Before(from) {
		h.fail(w, r, log.OpRead, apperr.Invalid([]apperr.FieldError{{Field: "startDate", Message: "startDate must not be after endDate"}}))
		return
	}

	movs, err := h.store.Movements(r.Context(), models.MovementFilter{UserIDs: ids, Since: &from, Until: &to})
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	chart, err := report.Build(movs, period, from, to, loc)
	if errors.Is(err, report.ErrTooManyBuckets) {
		h.fail(w, r, log.OpRead, apperr.Invalid([]apperr.FieldError{{Field: "startDate", Message: "date range is too long for the " + string(period) + " period"}}))
		return
	}
	if err != nil {
		h.fail(w, r, log.OpRead, err)
		return
	}

	utils.JSON(w, http.StatusOK, chart)
}

// ---------------------- EXPORT ----------------------

// Export streams the filtered movements, newest first, as a CSV attachment
// or as JSON when format=json.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := h.location()

	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		h.fail(w, r, log.OpExport, apperr.Invalid([]apperr.FieldError{{Field: "format", Message: "format must be csv or json"}}))
		return
	}

	ids, err := userIDs("userIds", q.Get("userIds"))
	if err != nil {
		h.fail(w, r, log.OpExport, err)
		return
	}
	from, to, err := dateRange(r, loc)
	if err != nil {
		h.fail(w, r, log.OpExport, err)
		return
	}

	movs, err := h.store.Movements(r.Context(), models.MovementFilter{UserIDs: ids, Since: from, Until: to, Newest: true})
	if err != nil {
		h.fail(w, r, log.OpExport, err)
		return
	}

	h.logger.InfoContext(r.Context(), "report exported",
		log.FieldOperation, log.OpExport,
		"format", format,
		"rows", len(movs))

	if format == "json" {
		utils.JSON(w, http.StatusOK, exportJSON{Movements: movs, Totals: balance.Summarize(movs)})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFilename(h.now().In(loc))))
	w.WriteHeader(http.StatusOK)
	if err := report.WriteCSV(w, movs, loc); err != nil {
		// Status already sent.
		h.logger.ErrorContext(r.Context(), "csv export interrupted", log.FieldError, err)
	}
}
