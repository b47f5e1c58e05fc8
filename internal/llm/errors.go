package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedOutput marks a completion that could not be turned into a record.
var ErrMalformedOutput = errors.New("malformed model output")

// ProviderError is a non-success answer from the completion provider.
// RateLimited errors are transient and retried; everything else is permanent.
type ProviderError struct {
	StatusCode  int
	Message     string
	RateLimited bool
}

func (e *ProviderError) Error() string {
	kind := "provider error"
	if e.RateLimited {
		kind = "provider rate limit"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status=%d %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", kind, e.Message)
}

var rateLimitSignals = []string{"429", "rate limit", "rate-limited", "too many requests"}

func newProviderError(status int, message string) *ProviderError {
	message = strings.TrimSpace(message)
	return &ProviderError{
		StatusCode:  status,
		Message:     message,
		RateLimited: status == http.StatusTooManyRequests || mentionsRateLimit(message),
	}
}

// IsRateLimited reports whether err is a transient rate-limit signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.RateLimited
	}
	return mentionsRateLimit(err.Error())
}

func mentionsRateLimit(message string) bool {
	lower := strings.ToLower(message)
	for _, signal := range rateLimitSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}
