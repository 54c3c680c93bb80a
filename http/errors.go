package http

import (
	"errors"
	"fmt"
)

// ClientError represents structural errors returned by the client.
// Transport and HTTP failures are never ClientErrors; they live in the Envelope.
type ClientError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of client error
type ErrorType string

const (
	ConfigurationError ErrorType = "configuration"
	ValidationError    ErrorType = "validation"
	ReleasedError      ErrorType = "released"
)

var (
	// ErrMissingBaseAddress is returned for a relative target on a client without a base address.
	ErrMissingBaseAddress = NewValidationError("relative target requires a base address", "target")

	// ErrReleased is returned by operations on a released client.
	ErrReleased ClientError = &releasedError{}
)

// configurationError reports a rejected change to locked client settings
type configurationError struct {
	message string
	field   string
}

func (e *configurationError) Error() string {
	return fmt.Sprintf("configuration error: %s (field: %s)", e.message, e.field)
}

func (e *configurationError) Type() ErrorType {
	return ConfigurationError
}

// Field names the rejected setting.
func (e *configurationError) Field() string {
	return e.field
}

// validationError represents request or option validation errors
type validationError struct {
	message string
	field   string
	wrapped error
}

func (e *validationError) Error() string {
	msg := "validation error: " + e.message
	if e.field != "" {
		msg = fmt.Sprintf("%s (field: %s)", msg, e.field)
	}
	if e.wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.wrapped)
	}
	return msg
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

func (e *validationError) Unwrap() error {
	return e.wrapped
}

type releasedError struct{}

func (e *releasedError) Error() string {
	return "client has been released"
}

func (e *releasedError) Type() ErrorType {
	return ReleasedError
}

// NewConfigurationError creates a new configuration error for field
func NewConfigurationError(field, message string) ClientError {
	return &configurationError{
		message: message,
		field:   field,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) ClientError {
	return &validationError{
		message: message,
		field:   field,
	}
}

func wrapValidationError(message, field string, err error) ClientError {
	return &validationError{
		message: message,
		field:   field,
		wrapped: err,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// IsConfigurationError reports whether err rejected a change to field.
// An empty field matches any configuration error.
func IsConfigurationError(err error, field string) bool {
	var cfgErr *configurationError
	if !errors.As(err, &cfgErr) {
		return false
	}
	return field == "" || cfgErr.Field() == field
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// failureError tags an attempt error with the envelope failure it maps to.
type failureError struct {
	kind FailureKind
	err  error
}

func (e *failureError) Error() string {
	return fmt.Sprintf("%s: %v", e.kind, e.err)
}

func (e *failureError) Unwrap() error {
	return e.err
}
