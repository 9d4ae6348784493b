package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is matched by every ValidationError.
var ErrValidation = errors.New("record validation failed")

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// ValidationError collects every field error found on one record.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "invalid record: " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrValidation) report true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validate checks r against the record rules. now is the ingestion-time clock
// reading; event dates later than now's calendar date are rejected.
func Validate(r *NormalizedRecord, now time.Time) error {
	var errs []FieldError

	if strings.TrimSpace(r.EntityName) == "" {
		errs = append(errs, FieldError{"entity_name", "required"})
	}

	if r.EventDate.IsZero() {
		errs = append(errs, FieldError{"event_date", "required"})
	} else if DateOf(r.EventDate).After(DateOf(now)) {
		errs = append(errs, FieldError{"event_date", "must not be in the future"})
	}

	if r.Magnitude != nil && *r.Magnitude < 0 {
		errs = append(errs, FieldError{"magnitude", "must be >= 0"})
	}
	if r.SecondaryMagnitude != nil && *r.SecondaryMagnitude < 0 {
		errs = append(errs, FieldError{"secondary_magnitude", "must be >= 0"})
	}

	if strings.TrimSpace(r.SourceID) == "" {
		errs = append(errs, FieldError{"source_id", "required"})
	}
	if strings.TrimSpace(r.SourceReference) == "" {
		errs = append(errs, FieldError{"source_reference", "required"})
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// NormalizeAndValidate canonicalizes r and then validates it.
func NormalizeAndValidate(r *NormalizedRecord, now time.Time) error {
	r.Normalize()
	return Validate(r, now)
}
