package scraper

import (
	"errors"
	"fmt"
)

// ErrLoginFailed means authentication could not be established within the
// bounded wait. Fatal for the platform leg; never retried automatically since
// credentials likely need human intervention.
var ErrLoginFailed = errors.New("login failed")

// ErrRateLimited means the platform started refusing requests. The leg is
// aborted early and recorded as a warning.
var ErrRateLimited = errors.New("rate limited or blocked")

// NavigationError wraps a failed page fetch.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// SelectorMissingError means an expected element was absent from a page, even
// after fallback selectors were tried.
type SelectorMissingError struct {
	Selector string
	Page     string
}

func (e *SelectorMissingError) Error() string {
	return fmt.Sprintf("selector %q not found on %s", e.Selector, e.Page)
}
