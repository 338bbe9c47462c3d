package types

import "fmt"

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Validation error codes. These are surfaced before any node runs and are
// never retried.
const (
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCycleDetected ErrorCode = "CYCLE_DETECTED"
)

// Execution error codes.
const (
	ErrConfig              ErrorCode = "CONFIG_ERROR"
	ErrCollaboratorTimeout ErrorCode = "COLLABORATOR_TIMEOUT"
	ErrCollaborator        ErrorCode = "COLLABORATOR_ERROR"
	ErrCancelled           ErrorCode = "CANCELLED"
)

// Transport error codes.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
// NodeID attributes an execution failure to the workflow node that raised it.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	NodeID     string    `json:"node_id,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.NodeID != "" && e.Cause != nil:
		return fmt.Sprintf("[%s] node %s: %s: %v", e.Code, e.NodeID, e.Message, e.Cause)
	case e.NodeID != "":
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithNodeID attributes the error to a workflow node.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// GetNodeID extracts the failing node id from an error, if any.
func GetNodeID(err error) string {
	if e, ok := err.(*Error); ok {
		return e.NodeID
	}
	return ""
}
