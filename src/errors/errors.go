// Package errors defines the shared error vocabulary for kaiwa.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios
var (
	// Upstream errors
	ErrUpstreamUnavailable = errors.New("upstream connection failed")
	ErrUpstreamTimeout     = errors.New("upstream read timed out")

	// Persona errors
	ErrProfileNotFound = errors.New("persona profile not found")
	ErrProfileInvalid  = errors.New("persona profile is malformed")

	// Policy errors
	ErrPolicyViolation = errors.New("prompt violates persona constraints")

	// Usage store errors
	ErrStoreDisabled = errors.New("usage store is disabled")
)

// UpstreamError represents a failed interaction with the generation backend.
type UpstreamError struct {
	Op         string // "chat", "stream", "probe"
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream %s failed for model %s (status %d): %s",
			e.Op, e.Model, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream %s failed for model %s: %v", e.Op, e.Model, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ProfileError wraps a persona load or parse failure with the profile name.
type ProfileError struct {
	Name string
	Err  error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("persona %q: %v", e.Name, e.Err)
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}
