package models

import "fmt"

// ValidationError rejects a request before any provider work happens: bad
// media type, oversized payload, empty batch. It is the only error class a
// batch run surfaces to the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError builds a ValidationError with a formatted reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ProviderError wraps a failure from a recognition provider, keeping the
// provider name and HTTP status (0 when not an HTTP failure) for logs.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s failed with status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// DetectionError wraps a failure from the card-matching service. Detection is
// best effort, so callers log these and keep the recognition result.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("card detection failed: %v", e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// StitchingError wraps a composite assembly failure. The dispatcher treats it
// as a signal to fall back to per-image strategies.
type StitchingError struct {
	Err error
}

func (e *StitchingError) Error() string {
	return fmt.Sprintf("stitching failed: %v", e.Err)
}

func (e *StitchingError) Unwrap() error { return e.Err }
