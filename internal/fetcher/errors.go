package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrFetchFailed is matched by every FetchFailedError.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrMalformedRequest marks requests rejected before any network I/O.
	ErrMalformedRequest = errors.New("malformed request")
)

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Temporary reports whether the status is worth retrying: 5xx, 408 and 429.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests
}

// FetchFailedError is returned once a request gives up, either because retries
// ran out or because the last error was permanent.
type FetchFailedError struct {
	URL      string
	Attempts int
	LastErr  error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.LastErr)
}

func (e *FetchFailedError) Unwrap() error { return e.LastErr }

func (e *FetchFailedError) Is(target error) bool { return target == ErrFetchFailed }

// retryable classifies a single attempt's error.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
