package source

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means the upstream could not be fetched after retries.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceFormatChanged means the fetched data lacks the expected structure.
	ErrSourceFormatChanged = errors.New("source format changed")

	// ErrStructural means a payload cannot be decoded as its container format at all.
	ErrStructural = errors.New("payload structurally unusable")
)

// Unavailable wraps a fetch error for sourceID.
func Unavailable(sourceID string, err error) error {
	return fmt.Errorf("%s: %w: %w", sourceID, ErrSourceUnavailable, err)
}

// FormatChanged reports a missing structure for sourceID.
func FormatChanged(sourceID, detail string) error {
	return fmt.Errorf("%s: %w: %s", sourceID, ErrSourceFormatChanged, detail)
}

// Structural wraps a decode error for sourceID.
func Structural(sourceID string, err error) error {
	return fmt.Errorf("%s: %w: %w", sourceID, ErrStructural, err)
}

// RowError describes why a single upstream row was skipped.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// RowErrorf builds a RowError.
func RowErrorf(row int, format string, args ...interface{}) *RowError {
	return &RowError{Row: row, Reason: fmt.Sprintf(format, args...)}
}
