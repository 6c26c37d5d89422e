package core

import (
	"errors"
	"fmt"
)

// ErrConfiguration is the sentinel wrapped by every ConfigError
var ErrConfiguration = errors.New("configuration error")

// ErrNoGrid is returned when simulation data is required but absent
var ErrNoGrid = errors.New("simulation grid not provided")

// ConfigError reports an invalid or missing parameter combination
// It is always fatal and is raised before any ray is traced
type ConfigError struct {
	Param  string // Offending parameter, e.g. "image.resolution"
	Reason string // Human readable explanation
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Param, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration)
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigError creates a ConfigError with a formatted reason
func NewConfigError(param, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Param: param, Reason: fmt.Sprintf(format, args...)}
}
