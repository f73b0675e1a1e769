package preview

import (
	"errors"
	"fmt"
)

var (
	// ErrURLRequired is returned when no target URL was supplied.
	ErrURLRequired = errors.New("URL is required")

	// ErrInvalidURL is returned when the target is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL")
)

// FetchErrorKind classifies page fetch failures.
type FetchErrorKind int

const (
	FetchTimeout FetchErrorKind = iota + 1
	FetchHTTPStatus
	FetchNetwork
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchHTTPStatus:
		return "http_status"
	case FetchNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// FetchError is returned by the Fetcher. StatusCode is set for FetchHTTPStatus.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
