// Package errors provides the structured error type used across the driver, with error codes,
// categories and operational context.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for driver operations.
type ErrorCode string

const (
	// Configuration Errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeMissingConfig    ErrorCode = "MISSING_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"

	// Connection Errors
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	ErrCodeNetworkError     ErrorCode = "NETWORK_ERROR"

	// Storage Backend Errors
	ErrCodeObjectNotFound ErrorCode = "OBJECT_NOT_FOUND"
	ErrCodeBucketNotFound ErrorCode = "BUCKET_NOT_FOUND"
	ErrCodeStorageWrite   ErrorCode = "STORAGE_WRITE"
	ErrCodeStorageRead    ErrorCode = "STORAGE_READ"
	ErrCodeAccessDenied   ErrorCode = "ACCESS_DENIED"

	// Filesystem Errors
	ErrCodePathInvalid     ErrorCode = "PATH_INVALID"
	ErrCodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	ErrCodeLocalCopyFailed ErrorCode = "LOCAL_COPY_FAILED"
	ErrCodeNotEmpty        ErrorCode = "NOT_EMPTY"

	// Operation Errors
	ErrCodeOperationFailed   ErrorCode = "OPERATION_FAILED"
	ErrCodeOperationPartial  ErrorCode = "OPERATION_PARTIAL"
	ErrCodeNotImplemented    ErrorCode = "OPERATION_NOT_IMPLEMENTED"
	ErrCodeOperationCanceled ErrorCode = "OPERATION_CANCELED"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"

	// Internal System Errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryStorage       ErrorCategory = "storage"
	CategoryFilesystem    ErrorCategory = "filesystem"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// DriverError represents a structured error with context and metadata.
type DriverError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component"`
	Operation string `json:"operation,omitempty"`
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = msg + ": " + e.Cause.Error()
	}
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, msg)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *DriverError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *DriverError) Is(target error) bool {
	if driverErr, ok := target.(*DriverError); ok {
		return e.Code == driverErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *DriverError) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Code=%s", e.Code))
	parts = append(parts, fmt.Sprintf("Category=%s", e.Category))
	parts = append(parts, fmt.Sprintf("Message=%q", e.Message))

	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if len(e.Details) > 0 {
		details, _ := json.Marshal(e.Details)
		parts = append(parts, fmt.Sprintf("Details=%s", details))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}

	return fmt.Sprintf("DriverError{%s}", strings.Join(parts, ", "))
}

// NewError creates a new driver error with default values.
func NewError(code ErrorCode, message string) *DriverError {
	return &DriverError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Details:   make(map[string]interface{}),
		Context:   make(map[string]string),
	}
}

// Newf creates a new driver error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *DriverError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "MISSING_CONFIG") ||
		strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "CONNECTION_") || strings.HasPrefix(codeStr, "NETWORK_"):
		return CategoryConnection
	case strings.HasPrefix(codeStr, "OBJECT_") || strings.HasPrefix(codeStr, "BUCKET_") ||
		strings.HasPrefix(codeStr, "STORAGE_") || strings.HasPrefix(codeStr, "ACCESS_"):
		return CategoryStorage
	case strings.HasPrefix(codeStr, "PATH_") || strings.HasPrefix(codeStr, "FILE_") ||
		strings.HasPrefix(codeStr, "LOCAL_") || strings.HasPrefix(codeStr, "NOT_EMPTY"):
		return CategoryFilesystem
	case strings.HasPrefix(codeStr, "OPERATION_") || strings.HasPrefix(codeStr, "VALIDATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// WithContext adds contextual information to an error
func (e *DriverError) WithContext(key, value string) *DriverError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithDetail adds detailed information to an error
func (e *DriverError) WithDetail(key string, value interface{}) *DriverError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the component for an error
func (e *DriverError) WithComponent(component string) *DriverError {
	e.Component = component
	return e
}

// WithOperation sets the operation for an error
func (e *DriverError) WithOperation(operation string) *DriverError {
	e.Operation = operation
	return e
}

// WithCause sets the underlying cause
func (e *DriverError) WithCause(cause error) *DriverError {
	e.Cause = cause
	return e
}

// CodeOf returns the code of the outermost DriverError in err's chain, or
// ErrCodeUnknownError when there is none.
func CodeOf(err error) ErrorCode {
	var driverErr *DriverError
	if stderrors.As(err, &driverErr) {
		return driverErr.Code
	}
	return ErrCodeUnknownError
}

// IsCode reports whether any DriverError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &DriverError{Code: code})
}

// IsBackend reports whether err originated from the object store: any
// storage or connection category error in the chain.
func IsBackend(err error) bool {
	for err != nil {
		var driverErr *DriverError
		if !stderrors.As(err, &driverErr) {
			return false
		}
		if driverErr.Category == CategoryStorage || driverErr.Category == CategoryConnection {
			return true
		}
		err = driverErr.Cause
	}
	return false
}

// As returns the outermost DriverError in err's chain.
func As(err error) (*DriverError, bool) {
	var driverErr *DriverError
	ok := stderrors.As(err, &driverErr)
	return driverErr, ok
}
