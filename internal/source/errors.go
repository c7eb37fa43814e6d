package source

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound        = errors.New("source: not found")
	ErrSchemaViolation = errors.New("source: response schema violation")
	ErrParse           = errors.New("source: unparseable response")
	ErrUnmappedValue   = errors.New("source: unmapped vocabulary value")
	ErrBlocked         = errors.New("source: request blocked")
	ErrRateLimited     = errors.New("source: rate limited by server")
)

// FetchError is a failed request to a catalog. It is transient unless it
// wraps ErrNotFound.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s fetch %s: status %d: %v", e.Source, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError classifies a non-2xx response.
func StatusError(sourceID, url string, status int) *FetchError {
	var err error
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		err = ErrNotFound
	case status == http.StatusTooManyRequests:
		err = ErrRateLimited
	case status == http.StatusForbidden || status == http.StatusServiceUnavailable:
		err = ErrBlocked
	default:
		err = fmt.Errorf("unexpected status")
	}
	return &FetchError{Source: sourceID, URL: url, StatusCode: status, Err: err}
}

// Unmapped reports a catalog value with no canonical counterpart.
func Unmapped(field, value string) error {
	return fmt.Errorf("%w: %s %q", ErrUnmappedValue, field, value)
}

// Parse reports a response that could not be interpreted.
func Parse(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}
