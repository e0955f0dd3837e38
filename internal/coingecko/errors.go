package coingecko

import "fmt"

// UpstreamError represents any failure talking to the upstream API:
// transport errors, non-success statuses and malformed bodies.
// StatusCode is zero when no response was received.
type UpstreamError struct {
	Endpoint   Endpoint
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream %s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("upstream %s error %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
