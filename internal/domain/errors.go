package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable marks a missing or stale price/bar. Callers skip the
	// current evaluation and retry next tick; state is never changed on it.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrPersistence marks a storage write failure. Never blocks a state
	// transition; the gateway retries delivery in the background.
	ErrPersistence = errors.New("persistence failure")
)

// ConfigError rejects an invalid strategy config at load or hot-update.
// The previously active config stays in effect.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
