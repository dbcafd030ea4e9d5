package display

import (
	"errors"
	"fmt"
)

// Error is a pipeline error carrying a stable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Error codes
const (
	ErrCodeNoCamera                  = "NO_CAMERA"
	ErrCodeUnsupportedPlatform       = "UNSUPPORTED_PLATFORM"
	ErrCodeBufferAllocation          = "BUFFER_ALLOCATION"
	ErrCodeAcceleratorRegistration   = "ACCELERATOR_REGISTRATION"
	ErrCodeTransformBufferAllocation = "TRANSFORM_BUFFER_ALLOCATION"
	ErrCodeStreamStart               = "STREAM_START"
	ErrCodeTransformFailed           = "TRANSFORM_FAILED"
	ErrCodeInvalidConfig             = "INVALID_CONFIG"
	ErrCodeNotRunning                = "NOT_RUNNING"
)

// NewError creates a new pipeline error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsCode reports whether err, or any error it wraps, is a pipeline error with the given code.
func IsCode(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
