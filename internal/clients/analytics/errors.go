package analytics

import (
	"errors"
	"fmt"
)

// TransportError is a failed request: network failure, timeout or a
// non-2xx response. StatusCode is 0 when no response was received.
type TransportError struct {
	Query      string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: API returned status %d: %s", e.Query, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: request failed: %s", e.Query, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCodeOf extracts the HTTP status from an error chain, or 0.
func StatusCodeOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.StatusCode
	}
	return 0
}
