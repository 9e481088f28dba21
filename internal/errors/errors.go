// Package errors provides centralized error definitions and error handling utilities
// for statebridge. It defines the error taxonomy used by the session manager,
// the state writer and the stream subscriber, together with constructors that
// carry context and helpers that classify errors.
//
// # Error Types
//
// Domain-specific errors:
//   - ConfigurationError: missing or invalid project or credential configuration
//   - StoreOperationError: the document store rejected a write or a listener
//
// Semantic errors:
//   - ValidationError: invalid arguments to a writer or subscriber call
//   - NotFoundError: a document that was expected to exist does not
//
// # Usage
//
//	err := errors.NewConfigurationError("invalid inline credential", cause).
//	    WithKey("FIREBASE_SERVICE_ACCOUNT")
//
//	if errors.Is(err, errors.ErrInvalidCredential) { ... }
//
//	var storeErr *errors.StoreOperationError
//	if errors.As(err, &storeErr) && storeErr.IsRetryable() { ... }
//
// Nothing in statebridge retries automatically. IsRetryable only tells the
// caller whether a retry could succeed.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Configuration sentinel errors
var (
	// ErrInvalidConfig indicates that project configuration is missing or malformed.
	ErrInvalidConfig = New("invalid configuration")
	// ErrInvalidCredential indicates that credential material could not be used.
	ErrInvalidCredential = New("invalid credential")
)

// Store sentinel errors
var (
	// ErrStoreOperation indicates that the document store rejected an operation.
	ErrStoreOperation = New("store operation failed")
	// ErrStoreUnavailable indicates that no store handle exists after initialization.
	ErrStoreUnavailable = New("document store not available")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrNotFound indicates that a document does not exist.
	ErrNotFound = New("not found")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// BridgeError is the base interface for all statebridge errors.
type BridgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatPrefix renders "label" or "label [k=v, ...]".
func formatPrefix(label string, parts []string) string {
	if len(parts) == 0 {
		return label
	}
	return fmt.Sprintf("%s [%s]", label, strings.Join(parts, ", "))
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ConfigurationError represents missing or invalid project or credential
// configuration. It is fatal to initialization and never retried.
//
// Example:
//
//	err := errors.NewConfigurationError("failed to decode service account", cause)
//	err = err.WithKey("FIREBASE_SERVICE_ACCOUNT").WithStrategy("inline_service_account")
//	fmt.Println(err) // "configuration error [key=FIREBASE_SERVICE_ACCOUNT, strategy=inline_service_account]: ..."
type ConfigurationError struct {
	baseError
	Key      string
	Strategy string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithKey adds the configuration key or environment variable to the error context.
func (e *ConfigurationError) WithKey(key string) *ConfigurationError {
	e.Key = key
	return e
}

// WithStrategy adds the credential strategy name to the error context.
func (e *ConfigurationError) WithStrategy(strategy string) *ConfigurationError {
	e.Strategy = strategy
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	var parts []string
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	if e.Strategy != "" {
		parts = append(parts, fmt.Sprintf("strategy=%s", e.Strategy))
	}

	prefix := formatPrefix("configuration error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	if target == ErrInvalidConfig {
		return true
	}
	return e.baseError.Is(target)
}

// StoreOperationError represents a write, read or listener registration the
// document store rejected. The session stays usable after one of these.
//
// Example:
//
//	err := errors.NewStoreOperationError("merge-set", cause).
//	    WithDocument("market_states", "BTC/USDT")
type StoreOperationError struct {
	baseError
	Operation  string
	Collection string
	Key        string
}

// NewStoreOperationError creates a new StoreOperationError for the named operation.
func NewStoreOperationError(operation string, cause error) *StoreOperationError {
	return &StoreOperationError{
		baseError: baseError{
			message:    operation + " failed",
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Operation: operation,
	}
}

// WithDocument adds the collection and document key to the error context.
func (e *StoreOperationError) WithDocument(collection, key string) *StoreOperationError {
	e.Collection = collection
	e.Key = key
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StoreOperationError) WithRetryable(r bool) *StoreOperationError {
	e.retryable = r
	return e
}

// WithSeverity sets the error severity.
func (e *StoreOperationError) WithSeverity(s Severity) *StoreOperationError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StoreOperationError) Error() string {
	var parts []string
	if e.Collection != "" {
		parts = append(parts, fmt.Sprintf("collection=%s", e.Collection))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := formatPrefix("store error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreOperationError) Is(target error) bool {
	if _, ok := target.(*StoreOperationError); ok {
		return true
	}
	if target == ErrStoreOperation {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a document that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("market_states", "BTC/USDT")
//	fmt.Println(err) // "document 'market_states/BTC/USDT' not found"
type NotFoundError struct {
	baseError
	Collection string
	Key        string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(collection, key string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("document '%s/%s' not found", collection, key),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Collection: collection,
		Key:        key,
	}
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid arguments to a writer or subscriber call.
// It is fatal to that call only and never touches session state.
//
// Example:
//
//	err := errors.NewValidationError("key cannot be empty")
//	err = err.WithField("key").WithValue("")
type ValidationError struct {
	baseError
	Field    string
	Value    any
	hasValue bool
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	e.hasValue = true
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.hasValue {
		parts = append(parts, fmt.Sprintf("value=%q", fmt.Sprint(e.Value)))
	}

	prefix := formatPrefix("validation error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement BridgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var bridgeErr BridgeError
	if As(err, &bridgeErr) {
		return bridgeErr.Severity()
	}
	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike a bare fmt.Errorf, a nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
