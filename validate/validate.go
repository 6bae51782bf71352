// Package validate checks the two date inputs of a photo search.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robertmeta/rover-cli/model"
)

// MaxSol is the highest sol the catalog is known to have photos for.
const MaxSol = 4074

// Field names used to place messages next to the offending input.
const (
	FieldSol       = "sol"
	FieldEarthDate = "earth_date"
)

var (
	// ErrNotAnInteger indicates a sol that is not a non-negative base-10 integer.
	ErrNotAnInteger = errors.New("sol value must be a non-negative integer")

	// ErrClampedToMax is an advisory: the sol was lowered to the maximum.
	ErrClampedToMax = errors.New("sol value clamped to maximum")

	// ErrUnparseable indicates an Earth date that is not YYYY-MM-DD.
	ErrUnparseable = errors.New("invalid date format")

	// ErrOutOfRange indicates an Earth date outside the rover's photo range.
	ErrOutOfRange = errors.New("date out of range")

	// ErrRangeUnavailable indicates the date range has not been fetched yet.
	ErrRangeUnavailable = errors.New("date range not available yet")
)

// Error is a failed validation of one input field.
type Error struct {
	Field string
	Value string
	Err   error

	// Limit is the bound involved in a clamp or range failure, if any.
	Limit string
}

// Error implements the error interface
func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrClampedToMax):
		return fmt.Sprintf("Sol maximum value is %s.", e.Limit)
	case errors.Is(e.Err, ErrOutOfRange):
		return fmt.Sprintf("Date %s is out of range (%s).", e.Value, e.Limit)
	case errors.Is(e.Err, ErrNotAnInteger):
		return "Sol value must be a non-negative integer."
	case errors.Is(e.Err, ErrRangeUnavailable):
		return "Date range is not available yet. Please select a rover and try again."
	case errors.Is(e.Err, ErrUnparseable), e.Err == nil:
		return "Invalid date format or date out of range. Please enter a valid date."
	}
	return e.Err.Error()
}

// Unwrap implements errors.Unwrap
func (e *Error) Unwrap() error {
	return e.Err
}

// IsAdvisory reports whether err only informs the caller, who may proceed
// with the value returned alongside it.
func IsAdvisory(err error) bool {
	return errors.Is(err, ErrClampedToMax)
}

// Sol validates a sol input. Values above max are clamped: Sol returns max
// together with an error matching ErrClampedToMax.
func Sol(raw string, max int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if max < 0 {
		max = MaxSol
	}

	fail := func(err error) error {
		return &Error{Field: FieldSol, Value: raw, Err: err, Limit: strconv.Itoa(max)}
	}

	if !isDigits(trimmed) {
		return 0, fail(ErrNotAnInteger)
	}

	sol, err := strconv.Atoi(trimmed)
	if err != nil {
		// Only digits reach here, so the sole failure is overflow.
		return max, fail(ErrClampedToMax)
	}
	if sol > max {
		return max, fail(ErrClampedToMax)
	}
	return sol, nil
}

// EarthDate validates a calendar date against the inclusive range [min, max].
// A zero min or max means the range lookup has not completed.
func EarthDate(raw string, min, max time.Time) (time.Time, error) {
	if min.IsZero() || max.IsZero() {
		return time.Time{}, &Error{Field: FieldEarthDate, Value: raw, Err: ErrRangeUnavailable}
	}

	day, err := time.Parse(model.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &Error{Field: FieldEarthDate, Value: raw, Err: ErrUnparseable}
	}

	if day.Before(truncate(min)) || day.After(truncate(max)) {
		return time.Time{}, &Error{
			Field: FieldEarthDate,
			Value: raw,
			Err:   ErrOutOfRange,
			Limit: min.Format(model.DateLayout) + " to " + max.Format(model.DateLayout),
		}
	}
	return day, nil
}

// isDigits rejects signs, spaces and anything strconv would otherwise accept.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// truncate drops the time of day so bounds compare as calendar dates.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
