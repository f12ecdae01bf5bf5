package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
	"github.com/vaughan-dsouza/ledger/internal/utils"
)

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}

// userIDs parses a comma separated id list; "all" or empty means no filter.
func userIDs(field, raw string) ([]string, error) {
	ids := utils.SplitIDs(raw)
	for _, id := range ids {
		if err := uuid.Validate(id); err != nil {
			return nil, apperr.Invalid([]apperr.FieldError{{Field: field, Message: "invalid user id " + strconv.Quote(id)}})
		}
	}
	return ids, nil
}

// dateRange reads startDate and endDate (YYYY-MM-DD) in loc. An end date
// covers its whole day. Missing bounds come back nil.
func dateRange(r *http.Request, loc *time.Location) (from, to *time.Time, err error) {
	q := r.URL.Query()
	var errs []apperr.FieldError

	if s := strings.TrimSpace(q.Get("startDate")); s != "" {
		d, perr := time.ParseInLocation(time.DateOnly, s, loc)
		if perr != nil {
			errs = append(errs, apperr.FieldError{Field: "startDate", Message: "startDate must be YYYY-MM-DD"})
		} else {
			from = &d
		}
	}
	if s := strings.TrimSpace(q.Get("endDate")); s != "" {
		d, perr := time.ParseInLocation(time.DateOnly, s, loc)
		if perr != nil {
			errs = append(errs, apperr.FieldError{Field: "endDate", Message: "endDate must be YYYY-MM-DD"})
		} else {
			end := d.AddDate(0, 0, 1).Add(-time.Nanosecond)
			to = &end
		}
	}
	if len(errs) == 0 && from != nil && to != nil && from.After(*to) {
		errs = append(errs, apperr.FieldError{Field: "startDate", Message: "startDate must not be after endDate"})
	}

	if len(errs) > 0 {
		return nil, nil, apperr.Invalid(errs)
	}
	return from, to, nil
}
