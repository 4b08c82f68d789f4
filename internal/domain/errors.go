package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when a combination or ensemble operation is
// called with zero sources.
var ErrEmptyInput = errors.New("at least one source is required")

// InvalidBeliefError reports a malformed mean/variance pair: shape mismatch,
// negative variance, or missing fields in a serialized record.
type InvalidBeliefError struct {
	Reason string
}

func (e *InvalidBeliefError) Error() string {
	return "invalid belief: " + e.Reason
}

// TransformError wraps a failure raised inside a caller-supplied transform,
// action, or fallback, preserving the original cause. The engine never
// substitutes a default belief or result in place of one of these.
type TransformError struct {
	Stage string // "transform", "action", or "fallback"
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid propagator or executor configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
