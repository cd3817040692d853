package models

import (
	"errors"
	"fmt"
)

// ErrBudgetExceeded is returned when an LLM call would push monthly spend past the ceiling
var ErrBudgetExceeded = errors.New("monthly llm budget exceeded")

// InputError rejects a request before any pipeline stage runs
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps a failed call to an external provider.
// Quota marks HTTP 403/429 responses.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Quota      bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CacheError wraps a cache backend failure; callers treat it as a miss
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is (or wraps) an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsQuotaError reports whether err is a provider quota rejection
func IsQuotaError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Quota
}
