package model

import (
	"errors"
	"fmt"
)

// ConfigError reports malformed or inconsistent input. Nothing is computed
// once one is raised.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DomainError reports an evaluation outside the standard atmosphere's range.
type DomainError struct {
	Quantity string // "altitude" or "pressure"
	Value    float64
	Min      float64
	Max      float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s %g outside supported range [%g, %g]", e.Quantity, e.Value, e.Min, e.Max)
}

// ConvergenceError reports a solve that ran out of iterations or produced a
// coordinate violating its post-conditions.
type ConvergenceError struct {
	Iterations int
	Level      int
	Residual   float64
	Reason     string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("no convergence after %d iterations: %s (half-level %d, residual %.6g)",
		e.Iterations, e.Reason, e.Level, e.Residual)
}

// ExportError wraps a serialization or destination failure.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Path == "" {
		return "export: " + e.Err.Error()
	}
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// Kind names the error class of err for the command line, "Error" if it
// belongs to none of them.
func Kind(err error) string {
	var (
		cfgErr  *ConfigError
		domErr  *DomainError
		convErr *ConvergenceError
		expErr  *ExportError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "ConfigError"
	case errors.As(err, &domErr):
		return "DomainError"
	case errors.As(err, &convErr):
		return "ConvergenceError"
	case errors.As(err, &expErr):
		return "ExportError"
	}
	return "Error"
}
