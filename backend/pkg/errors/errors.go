package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeAuthentication represents a missing or invalid caller credential
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeAuthorization represents a valid caller denied by a policy rule
	ErrorTypeAuthorization ErrorType = "authorization"
	// ErrorTypeNotFound represents a reference to an entity that does not exist
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation represents malformed input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeUpstream represents entity store or key endpoint failures
	ErrorTypeUpstream ErrorType = "upstream"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// GraphQL extension codes reported to callers.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Code returns the extension code callers see for this error
func (e *BaseError) Code() string {
	switch e.Type {
	case ErrorTypeAuthentication:
		return CodeUnauthenticated
	case ErrorTypeAuthorization:
		return CodeForbidden
	case ErrorTypeNotFound:
		return CodeNotFound
	case ErrorTypeValidation:
		return CodeBadUserInput
	default:
		return CodeInternal
	}
}

// Extensions is picked up by the GraphQL executor and rendered under
// errors[].extensions.
func (e *BaseError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.Code(),
		"type": string(e.Type),
	}
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Authentication Errors

// ErrUnauthenticated is returned when an operation needs a caller and none was supplied
type ErrUnauthenticated struct {
	*BaseError
	Reason string
}

func NewUnauthenticated(reason string, err error) *ErrUnauthenticated {
	return &ErrUnauthenticated{
		BaseError: NewBaseError(ErrorTypeAuthentication, fmt.Sprintf("unauthenticated: %s", reason), err),
		Reason:    reason,
	}
}

// Authorization Errors

// ErrForbidden is returned when an authenticated caller fails every rule for an operation
type ErrForbidden struct {
	*BaseError
	Entity    string
	Operation string
}

func NewForbidden(entity, operation string) *ErrForbidden {
	return &ErrForbidden{
		BaseError: NewBaseError(ErrorTypeAuthorization, fmt.Sprintf("forbidden: %s on %s", operation, entity), nil),
		Entity:    entity,
		Operation: operation,
	}
}

// Not Found Errors

// ErrNotFound is returned when a referenced node does not exist
type ErrNotFound struct {
	*BaseError
	Entity string
	ID     string
}

func NewNotFound(entity, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", entity, id), nil),
		Entity:    entity,
		ID:        id,
	}
}

// Validation Errors

// ErrValidation is returned when input is malformed
type ErrValidation struct {
	*BaseError
	Field  string
	Reason string
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Upstream Errors

// ErrUpstream is returned when the entity store or the key endpoint fails
type ErrUpstream struct {
	*BaseError
	Service string
}

func NewUpstream(service string, err error) *ErrUpstream {
	return &ErrUpstream{
		BaseError: NewBaseError(ErrorTypeUpstream, fmt.Sprintf("%s unavailable", service), err),
		Service:   service,
	}
}

// Error only surfaces the service name; the wrapped cause stays in logs.
func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// TypeOf returns the category of the first BaseError in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var coded interface{ Code() string }
	if !stderrors.As(err, &coded) {
		return ""
	}
	var base *BaseError
	switch e := coded.(type) {
	case *BaseError:
		base = e
	case *ErrUnauthenticated:
		base = e.BaseError
	case *ErrForbidden:
		base = e.BaseError
	case *ErrNotFound:
		base = e.BaseError
	case *ErrValidation:
		base = e.BaseError
	case *ErrUpstream:
		base = e.BaseError
	case *ErrConfigMissingRequired:
		base = e.BaseError
	}
	if base == nil {
		return ""
	}
	return base.Type
}

// Find returns the first categorized error in err's chain, or nil
func Find(err error) error {
	var coded interface {
		error
		Code() string
	}
	if stderrors.As(err, &coded) {
		return coded
	}
	return nil
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	return err != nil && TypeOf(err) == errType
}

// IsRequestScoped reports whether err belongs to the caller rather than the infrastructure
func IsRequestScoped(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeAuthentication, ErrorTypeAuthorization, ErrorTypeNotFound, ErrorTypeValidation:
		return true
	}
	return false
}
