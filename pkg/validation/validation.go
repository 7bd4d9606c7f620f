package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the one wire format every date field uses: zero-padded day,
// month, four-digit year, dot separated (25.12.2024).
const DateLayout = "02.01.2006"

// Reason codes surfaced alongside validation failures.
const (
	ReasonEmpty          = "empty"
	ReasonTooShort       = "too_short"
	ReasonTooLong        = "too_long"
	ReasonBadDateFormat  = "bad_date_format"
	ReasonImpossibleDate = "impossible_date"
	ReasonInvertedRange  = "inverted_range"
	ReasonNameTooShort   = "name_too_short"
)

type ValidationError struct {
	Reason  string
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Reason extracts the reason code from a validation error, or "" when err is
// not one.
func Reason(err error) string {
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}

// Text checks a free-text field after trimming surrounding whitespace.
// Bounds are in characters, not bytes, so Cyrillic input is measured the
// same as ASCII.
func Text(s string, min, max int) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ValidationError{Reason: ReasonEmpty, Message: "field must not be empty"}
	}
	length := utf8.RuneCountInString(trimmed)
	if length < min {
		return ValidationError{Reason: ReasonTooShort, Message: fmt.Sprintf("text must be at least %d characters", min)}
	}
	if length > max {
		return ValidationError{Reason: ReasonTooLong, Message: fmt.Sprintf("text must not exceed %d characters", max)}
	}
	return nil
}

// Date checks the strict DD.MM.YYYY form and that the value is a real
// calendar date. time.Parse with the fixed layout rejects both malformed
// strings and impossible dates (32.01.2024, 15.13.2024).
func Date(s string) error {
	s = strings.TrimSpace(s)
	if len(s) != 10 || s[2] != '.' || s[5] != '.' {
		return ValidationError{Reason: ReasonBadDateFormat, Message: "date must use the DD.MM.YYYY format, e.g. 25.12.2024"}
	}
	for i, c := range s {
		if i == 2 || i == 5 {
			continue
		}
		if c < '0' || c > '9' {
			return ValidationError{Reason: ReasonBadDateFormat, Message: "date must use the DD.MM.YYYY format, e.g. 25.12.2024"}
		}
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return ValidationError{Reason: ReasonImpossibleDate, Message: "no such calendar date"}
	}
	return nil
}

// ParseDate parses a DD.MM.YYYY string that has already passed Date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// DateRange checks both dates individually and that to >= from by calendar
// comparison.
func DateRange(from, to string) error {
	if err := Date(from); err != nil {
		return err
	}
	if err := Date(to); err != nil {
		return err
	}
	fromT, _ := ParseDate(from)
	toT, _ := ParseDate(to)
	if toT.Before(fromT) {
		return ValidationError{Reason: ReasonInvertedRange, Message: "end date must not be earlier than start date"}
	}
	return nil
}

// FullName requires at least two non-empty tokens after collapsing internal
// whitespace runs.
func FullName(s string) error {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return ValidationError{Reason: ReasonEmpty, Message: "full name must not be empty"}
	}
	if len(tokens) < 2 {
		return ValidationError{Reason: ReasonNameTooShort, Message: "full name must contain at least a surname and a first name"}
	}
	return nil
}

// NormalizeName collapses internal whitespace runs to single spaces.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
