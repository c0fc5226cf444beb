package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Configuration errors
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Rule and pattern errors
	ErrPatternInvalid ErrorCode = "PATTERN_INVALID"
	ErrRuleInvalid    ErrorCode = "RULE_INVALID"

	// Processor errors
	ErrProcessorNotFound ErrorCode = "PROCESSOR_NOT_FOUND"
	ErrProcessorExecute  ErrorCode = "PROCESSOR_EXECUTE"

	// Context store errors
	ErrKeyConflict ErrorCode = "KEY_CONFLICT"

	// Traversal errors
	ErrRootNotFound ErrorCode = "ROOT_NOT_FOUND"
	ErrFileAccess   ErrorCode = "FILE_ACCESS"
)

// ProcessError represents a structured error with code and details
type ProcessError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *ProcessError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *ProcessError) Unwrap() error {
	return e.Wrapped
}

// Is matches two ProcessErrors by code
func (e *ProcessError) Is(target error) bool {
	var targetErr *ProcessError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// WithDetail attaches a key/value pair to the error and returns it
func (e *ProcessError) WithDetail(key string, value interface{}) *ProcessError {
	e.Details[key] = value
	return e
}

// New creates a new ProcessError with the given code and message
func New(code ErrorCode, message string) *ProcessError {
	return &ProcessError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new ProcessError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *ProcessError {
	return &ProcessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a ProcessError
func Wrap(err error, code ErrorCode, message string) *ProcessError {
	if err == nil {
		return nil
	}
	return &ProcessError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ProcessError {
	if err == nil {
		return nil
	}
	return &ProcessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// IsCode reports whether err carries the given code anywhere in its chain
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *ProcessError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Wrapped
	}
	return false
}
