package utils

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/vaughan-dsouza/ledger/internal/apperr"
)

const maxBodyBytes = 1 << 20

// JSON writes a JSON response with status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(k apperr.Kind) int {
	switch k {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Internal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// WriteError writes err as an ErrorBody. Internal errors never leak their
// cause to the client.
func WriteError(w http.ResponseWriter, err error) int {
	body := ErrorBody{Error: apperr.Internal.String(), Message: "internal server error"}
	status := http.StatusInternalServerError

	if e, ok := apperr.As(err); ok && e.Kind != apperr.Internal {
		body = ErrorBody{Error: e.Kind.String(), Message: e.Message, Details: e.Details}
		status = StatusOf(e.Kind)
	}

	JSON(w, status, body)
	return status
}

// DecodeJSON parses the JSON body into v, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperr.New(apperr.Validation, "empty request body")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.Validation, "request body too large")
		}
		return apperr.New(apperr.Validation, "invalid JSON: "+err.Error())
	}

	return nil
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a requested slice of a listing.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pagination is returned alongside listings.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (p Page) Result(total int) Pagination {
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(p.Limit))),
	}
}

// ParsePage reads page and limit query parameters.
func ParsePage(r *http.Request) (Page, error) {
	p := Page{Page: 1, Limit: DefaultPageLimit}
	var errs []apperr.FieldError

	q := r.URL.Query()
	if s := strings.TrimSpace(q.Get("page")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			errs = append(errs, apperr.FieldError{Field: "page", Message: "page must be a positive integer"})
		} else {
			p.Page = n
		}
	}
	if s := strings.TrimSpace(q.Get("limit")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPageLimit {
			errs = append(errs, apperr.FieldError{Field: "limit", Message: "limit must be between 1 and 100"})
		} else {
			p.Limit = n
		}
	}

	if len(errs) > 0 {
		return Page{}, apperr.Invalid(errs)
	}
	return p, nil
}

// SplitIDs splits a comma separated id list. "all" and "" mean no filter.
func SplitIDs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return nil
	}
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
