// Package protocol provides error envelope classification and error codes
// for the KestrelDB HTTP API
package protocol

import (
	"encoding/json"
	"fmt"
)

// TransportCode represents standardized transport failure codes
type TransportCode int

const (
	// Connection errors (1000-1099)
	TransportCodeConnectionRefused TransportCode = 1001
	TransportCodeTimeout           TransportCode = 1002
	TransportCodeAuthFailed        TransportCode = 1003
	TransportCodeClosed            TransportCode = 1005

	// Response errors (2000-2099)
	TransportCodeBadResponse TransportCode = 2001
)

// TransportError represents a failure below the database protocol: the
// request never reached the server, or the response could not be parsed.
// Distinct from ServerError, which carries a structured error envelope.
type TransportError struct {
	Code        TransportCode          `json:"code"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	IsRetryable bool                   `json:"isRetryable"`
	Cause       error                  `json:"-"`
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if len(e.Details) > 0 {
		detailsJSON, _ := json.Marshal(e.Details)
		return fmt.Sprintf("[%d] %s (details: %s)", e.Code, e.Message, string(detailsJSON))
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new transport error
func NewTransportError(code TransportCode, message string, cause error) *TransportError {
	return &TransportError{
		Code:        code,
		Message:     message,
		Cause:       cause,
		IsRetryable: isRetryable(code),
	}
}

// isRetryable determines if a transport code represents a retryable failure
func isRetryable(code TransportCode) bool {
	switch code {
	case TransportCodeTimeout, TransportCodeConnectionRefused:
		return true
	default:
		return false
	}
}

// ConnectionError creates a connection-related transport error
func ConnectionError(message string, cause error) *TransportError {
	return NewTransportError(TransportCodeConnectionRefused, message, cause)
}

// TimeoutError creates a timeout transport error
func TimeoutError(message string, cause error) *TransportError {
	return NewTransportError(TransportCodeTimeout, message, cause)
}

// AuthError creates an authentication transport error
func AuthError(message string) *TransportError {
	return NewTransportError(TransportCodeAuthFailed, message, nil)
}

// ClosedError creates an error for requests on a closed transport
func ClosedError() *TransportError {
	return NewTransportError(TransportCodeClosed, "transport is closed", nil)
}

// BadResponseError creates an error for unparsable response bodies
func BadResponseError(message string, statusCode int) *TransportError {
	err := NewTransportError(TransportCodeBadResponse, message, nil)
	err.Details = map[string]interface{}{"statusCode": statusCode}
	return err
}
