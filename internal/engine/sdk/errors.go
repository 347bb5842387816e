package sdk

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common engine error conditions.
var (
	// ErrEngineNotFound is returned when no engine is registered under a name.
	ErrEngineNotFound = errors.New("engine not found")

	// ErrEngineUnavailable is returned when an engine failed its last availability probe.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrInvalidConfig is returned when engine configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownKind is returned when no constructor is registered for a kind.
	ErrUnknownKind = errors.New("unknown engine kind")

	// ErrUnsupportedProtocol is returned for protocol names an engine kind cannot speak.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")

	// ErrNotInitialized is returned when a protocol is used before Initialize.
	ErrNotInitialized = errors.New("protocol not initialized")

	// ErrClosed is returned when operating on a protocol that has been cleaned up.
	ErrClosed = errors.New("protocol closed")

	// ErrProcessExited is returned when the engine process is gone.
	ErrProcessExited = errors.New("engine process exited")

	// ErrTimeout is returned when an engine operation times out.
	ErrTimeout = errors.New("operation timed out")

	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNoMove is returned when no move could be extracted from a response.
	ErrNoMove = errors.New("no move found in response")

	// ErrIllegalMove is returned when a move is well-formed but not legal.
	ErrIllegalMove = errors.New("illegal move")

	// ErrPositionNotFound is returned when a REST backend has no answer for a position.
	ErrPositionNotFound = errors.New("position not found")
)

// ConfigError describes a missing or invalid configuration field.
type ConfigError struct {
	// Engine is the engine whose configuration is invalid.
	Engine string

	// Field is the offending configuration key, if any.
	Field string

	// Message describes the problem.
	Message string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config error")
	if e.Engine != "" {
		fmt.Fprintf(&b, " for engine %s", e.Engine)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %q)", e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// NewConfigError creates a new configuration error.
func NewConfigError(engine, field, message string) *ConfigError {
	return &ConfigError{Engine: engine, Field: field, Message: message}
}

// DuplicateEngineError is returned when several configuration sources define the same engine.
type DuplicateEngineError struct {
	// Source is the source in which the duplicates were found.
	Source string

	// Names lists the duplicated engine names.
	Names []string
}

// Error implements the error interface.
func (e *DuplicateEngineError) Error() string {
	return fmt.Sprintf("duplicate engines in %s: %s", e.Source, strings.Join(e.Names, ", "))
}

// Is reports whether target is ErrInvalidConfig.
func (e *DuplicateEngineError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// TransportError wraps a failure talking to a backend.
type TransportError struct {
	// Protocol is the protocol that failed (uci, rest, local_llm, api_llm).
	Protocol string

	// Operation is what was being attempted.
	Operation string

	// StatusCode is the HTTP status, when one was received.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Protocol, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Protocol, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a new transport error.
func NewTransportError(protocol, operation string, err error) *TransportError {
	return &TransportError{Protocol: protocol, Operation: operation, Err: err}
}

// TimeoutError is returned when an expected answer did not arrive in time.
type TimeoutError struct {
	// Operation is what was being waited for.
	Operation string

	// Expected is the token or condition that never showed up.
	Expected string

	// Timeout is the limit that elapsed.
	Timeout time.Duration

	// Lines holds the lines seen while waiting.
	Lines []string
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s: timed out after %s waiting for %q", e.Operation, e.Timeout, e.Expected)
	if len(e.Lines) == 0 {
		return msg + " (no output received)"
	}
	return fmt.Sprintf("%s; received %d lines: [%s]", msg, len(e.Lines), strings.Join(e.Lines, " | "))
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ValidationError reports output that does not contain a usable move.
type ValidationError struct {
	// Engine is the engine whose output failed validation.
	Engine string

	// Reason describes the failure.
	Reason string

	// RawResponse is the last raw response seen.
	RawResponse string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for engine %s: %s", e.Engine, e.Reason)
	if e.RawResponse != "" {
		msg += fmt.Sprintf(" (last response: %s)", truncate(e.RawResponse, 200))
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned for unknown or unavailable engines.
type NotFoundError struct {
	// Name is the requested engine.
	Name string

	// Available lists the engines that can be used instead.
	Available []string

	// Err is ErrEngineNotFound or ErrEngineUnavailable.
	Err error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %s (available: %s)", e.Err, e.Name, strings.Join(e.Available, ", "))
}

// Unwrap returns the underlying error.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// ProviderError is returned by LLM provider calls that end in an HTTP failure.
type ProviderError struct {
	// Provider is the provider name (openai, anthropic, ...).
	Provider string

	// Model is the requested model.
	Model string

	// StatusCode is the last HTTP status received.
	StatusCode int

	// Attempts is how many requests were made.
	Attempts int

	// Body is a truncated copy of the last response body.
	Body string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s (model %s) returned http %d after %d attempt(s)",
		e.Provider, e.Model, e.StatusCode, e.Attempts)
	if e.Body != "" {
		msg += ": " + truncate(e.Body, 200)
	}
	return msg
}

// Retryable reports whether the status is worth retrying.
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode == 503
}

// IsConfigError checks if the error is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsTransport checks if the error is a transport failure.
func IsTransport(err error) bool {
	var transportErr *TransportError
	var providerErr *ProviderError
	return errors.As(err, &transportErr) || errors.As(err, &providerErr)
}

// IsTimeout checks if the error is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsValidation checks if the error is a validation failure.
func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsNotFound checks if the error is a not-found or unavailable error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEngineNotFound) || errors.Is(err, ErrEngineUnavailable)
}

// IsCircuitOpen checks if the error is due to an open circuit breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
