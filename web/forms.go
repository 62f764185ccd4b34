package web

import (
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gorilla/schema"
)

// ------------------------------------------------------------------------------
// Helpers
// ------------------------------------------------------------------------------

// Validator holds a map of validation errors, keyed by the form field name.
type Validator struct {
	Errors map[string]string
}

// NewValidator creates a new, initialized Validator.
func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid returns true if the Errors map is empty.
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error message to the map for a given field if one
// doesn't already exist for that field.
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
	}
}

// Check is a helper for conditional validation. If `ok` is false, it
// calls AddError with the provided key and message.
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// FieldError is a helper to check if the specified field has triggered
// an error.
func (v *Validator) FieldError(field string) bool {
	_, ok := v.Errors[field]
	return ok
}

// ------------------------------------------------------------------------------
// Forms
// ------------------------------------------------------------------------------

// SearchForm represents the URL query parameter filters for the
// transactions listing.
type SearchForm struct {
	AccountID    string    `schema:"account"`
	DateFrom     time.Time `schema:"date-from"`
	DateTo       time.Time `schema:"date-to"`
	SearchString string    `schema:"search"`
	Page         int       `schema:"page"`
}

// defaultDateToAndFrom sets the default date window shown on listing
// pages, the 90 days up to today.
func defaultDateToAndFrom() (time.Time, time.Time) {
	now := time.Now().UTC()
	dt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	df := dt.AddDate(0, 0, -90)
	return df, dt
}

// NewSearchForm creates a SearchForm with defaults.
func NewSearchForm() *SearchForm {
	dateFrom, dateTo := defaultDateToAndFrom()
	return &SearchForm{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Page:     1, // 1-based pagination.
	}
}

// Validate checks SearchForm fields and populates Validator with any
// errors. Note that the `Check` is like an assertion of truth, if that
// fails, the provided message is recorded against the field.
func (f *SearchForm) Validate(v *Validator) {

	v.Check(!f.DateTo.Before(f.DateFrom), "date-to", "End date cannot be before the start date.")
	v.Check(!f.DateFrom.IsZero(), "date-from", "From date must be provided.")

	if f.Page < 1 {
		f.Page = 1
	}
}

// Offset calculates the database offset for (1-based) pagination.
func (f *SearchForm) Offset() int {
	return (f.Page - 1) * pageLen
}

// DateFromValue formats DateFrom for an html date input.
func (f *SearchForm) DateFromValue() string {
	if f.DateFrom.IsZero() {
		return ""
	}
	return f.DateFrom.Format("2006-01-02")
}

// DateToValue formats DateTo for an html date input.
func (f *SearchForm) DateToValue() string {
	if f.DateTo.IsZero() {
		return ""
	}
	return f.DateTo.Format("2006-01-02")
}

// ------------------------------------------------------------------------------
// General decoding funcs
// ------------------------------------------------------------------------------

// newSchemaDecoder creates a new schema.Decoder instance and registers
// a custom converter for the time.Time type.
func newSchemaDecoder() *schema.Decoder {
	decoder := schema.NewDecoder()

	decoder.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse("2006-01-02", value) // other patterns can be tried here.
		if err != nil {
			return reflect.ValueOf(time.Time{})
		}
		return reflect.ValueOf(t)
	})

	return decoder
}

// DecodeURLParams is helper that decodes URL query parameters from a request
// into a destination struct (dst).
func DecodeURLParams(r *http.Request, dst any) error {
	decoder := newSchemaDecoder()
	if err := decoder.Decode(dst, r.URL.Query()); err != nil {
		return fmt.Errorf("url parameter decoding error: %v", err)
	}
	return nil
}
