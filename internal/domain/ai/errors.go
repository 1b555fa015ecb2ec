package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// UpstreamError: upstream answered with a status outside 2xx.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %d - %s", e.Status, e.Body)
}

// Is lets errors.Is(err, ErrQuotaExceeded) match a 429.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.Status == http.StatusTooManyRequests
}

// TransportError: no response came back at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "upstream unreachable: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ConfigurationError means the upstream platform has no model credentials
// for the judge. Callers never see it as a failure; the dispatcher turns it
// into a degraded answer.
type ConfigurationError struct {
	Judge  string
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("judge %s is missing model provider credentials: %s", e.Judge, e.Detail)
}
