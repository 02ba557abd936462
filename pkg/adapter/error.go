package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AdapterError is a provider failure with the HTTP status it came back with.
type AdapterError struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "adapter error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider returned status %d", e.Status)
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusOf returns the provider status carried by err, or 0.
func StatusOf(err error) int {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) && adapterErr != nil {
		return adapterErr.Status
	}
	return 0
}

// IsCredentialError reports whether the provider refused the API key. The
// provider stays connected but every call will fail until the key changes.
func IsCredentialError(err error) bool {
	switch StatusOf(err) {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// IsTransient reports whether a call may succeed if repeated. A cancelled
// context is the caller giving up and is never retried.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var adapterErr *AdapterError
	if !errors.As(err, &adapterErr) {
		return false
	}
	if adapterErr.Temporary {
		return true
	}
	switch s := adapterErr.Status; {
	case s == http.StatusRequestTimeout, s == http.StatusTooManyRequests:
		return true
	default:
		return s >= 500 && s <= 599
	}
}
