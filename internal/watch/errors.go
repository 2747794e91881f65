package watch

import "fmt"

// FetchErrorKind classifies fetch failures. All kinds are recoverable: the
// cycle keeps the prior digest and advances the check timestamp.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchUnreachable   FetchErrorKind = "unreachable"    // network or HTTP failure
	FetchTimeout       FetchErrorKind = "timeout"        // deadline exceeded
	FetchRenderFailure FetchErrorKind = "render_failure" // headless browser crashed or produced no output
)

// FetchError wraps a fetch failure with its kind and target URL.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a FetchError.
func NewFetchError(kind FetchErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}
