package market

import (
	"errors"
	"fmt"
)

// Error kinds reported by provider adapters and the failover chain.
var (
	ErrTimeout              = errors.New("timeout")
	ErrMalformedResponse    = errors.New("malformed response")
	ErrNetwork              = errors.New("network error")
	ErrNoProvidersAvailable = errors.New("no providers available")
)

// FetchError is a failed call against a single provider.
type FetchError struct {
	Provider string
	Kind     error // one of the Err* kinds above
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewFetchError builds a FetchError of the given kind.
func NewFetchError(provider string, kind, err error) *FetchError {
	return &FetchError{Provider: provider, Kind: kind, Err: err}
}

// Malformed reports a missing or unparsable field in a provider response.
func Malformed(provider, format string, args ...any) *FetchError {
	return NewFetchError(provider, ErrMalformedResponse, fmt.Errorf(format, args...))
}

// KindOf returns the short name of the error kind carried by err.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrNoProvidersAvailable):
		return "no_providers_available"
	default:
		return "network_error"
	}
}
