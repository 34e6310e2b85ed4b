package client

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
)

// ConnectionError represents connection-related failures.
type ConnectionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// DatabaseError represents a structured error envelope returned by the
// server. It carries the server error number and HTTP status verbatim and is
// never retried by the driver.
type DatabaseError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	ErrorNum   int                    `json:"error_num"`
	StatusCode int                    `json:"status_code"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
// When debugMode=false: returns simple "CODE: message" format.
// When debugMode=true: returns full JSON with details, stack trace and timestamp.
func (e *DatabaseError) FormatError(debugMode bool) string {
	if !debugMode {
		return fmt.Sprintf("%s: %s (server error %d, HTTP %d)", e.Code, e.Message, e.ErrorNum, e.StatusCode)
	}

	errorData := map[string]interface{}{
		"code":        e.Code,
		"type":        e.Type,
		"message":     e.Message,
		"error_num":   e.ErrorNum,
		"status_code": e.StatusCode,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// IsNotFound returns whether the server signalled a missing resource.
func (e *DatabaseError) IsNotFound() bool {
	switch e.ErrorNum {
	case protocol.ErrNumDocumentNotFound, protocol.ErrNumCollectionNotFound:
		return true
	}
	return e.StatusCode == 404
}

// databaseError converts a server error envelope into a DatabaseError.
func databaseError(code string, serr *protocol.ServerError) *DatabaseError {
	return &DatabaseError{
		Code:       code,
		Type:       "DATABASE_ERROR",
		Message:    serr.Message,
		ErrorNum:   serr.ErrorNum,
		StatusCode: serr.StatusCode,
		Cause:      serr,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// QueryError represents query execution errors with query context.
type QueryError struct {
	DatabaseError
	Query    string                 `json:"query,omitempty"`
	BindVars map[string]interface{} `json:"bind_vars,omitempty"`
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return e.FormatError(false)
}

// CursorError represents a fetch-next or delete referencing an unknown or
// expired server-side cursor. Terminal for the cursor instance that raised it.
type CursorError struct {
	DatabaseError
	CursorID string `json:"cursor_id,omitempty"`
}

// Error implements the error interface.
func (e *CursorError) Error() string {
	if e.CursorID != "" {
		return fmt.Sprintf("%s: %s (cursor: %s)", e.Code, e.Message, e.CursorID)
	}
	return e.FormatError(false)
}

// BatchError represents failures of the batch executor itself, as opposed to
// per-entry failures which are delivered through the individual jobs.
type BatchError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Position   int                    `json:"position,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *BatchError) Unwrap() error {
	return e.Cause
}

// ErrUnsupportedBatchOperation creates an error for queueing an operation
// kind outside the supported CRUD set. Raised locally, before any request.
func ErrUnsupportedBatchOperation(kind OperationKind, position int) *BatchError {
	return &BatchError{
		Code:     "E_BATCH_UNSUPPORTED_OP",
		Type:     "BATCH_ERROR",
		Message:  fmt.Sprintf("operation %q does not support batch execution", string(kind)),
		Position: position,
		Details: map[string]interface{}{
			"operation": string(kind),
		},
		StackTrace: captureStackTrace(),
	}
}

// errBatchDispatch creates an error for a composite request that failed at
// the transport or parsing level.
func errBatchDispatch(message string, cause error) *BatchError {
	return &BatchError{
		Code:       "E_BATCH_DISPATCH_FAILED",
		Type:       "BATCH_ERROR",
		Message:    message,
		Cause:      cause,
		StackTrace: captureStackTrace(),
	}
}

// TransactionError represents a server-side failure of a transaction,
// including lock-timeout expiry.
type TransactionError struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	ErrorNum   int                    `json:"error_num,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *TransactionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.ErrorNum != 0 {
			return fmt.Sprintf("%s: %s (server error %d)", e.Code, e.Message, e.ErrorNum)
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if e.ErrorNum != 0 {
		errorData["error_num"] = e.ErrorNum
	}

	if e.StatusCode != 0 {
		errorData["status_code"] = e.StatusCode
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error.
func (e *TransactionError) Unwrap() error {
	return e.Cause
}

// StateError represents invalid state for an operation.
type StateError struct {
	Code    string                 `json:"code"`
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrJobPending creates a StateError for reading a batch job result before
// the batch has been committed.
func ErrJobPending(jobID string) *StateError {
	return &StateError{
		Code:    "E_JOB_PENDING",
		Type:    "STATE_ERROR",
		Message: "batch job result is not available before commit",
		Details: map[string]interface{}{
			"job_id": jobID,
		},
	}
}

// ErrBatchCommitted creates a StateError for reusing an already-committed batch.
func ErrBatchCommitted() *StateError {
	return &StateError{
		Code:    "E_BATCH_COMMITTED",
		Type:    "STATE_ERROR",
		Message: "batch has already been committed",
	}
}

// ErrCursorClosed creates a StateError for operations on a closed cursor.
func ErrCursorClosed() *StateError {
	return &StateError{
		Code:    "E_CURSOR_CLOSED",
		Type:    "STATE_ERROR",
		Message: "cursor is closed",
	}
}

// Helper functions

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // Skip captureStackTrace, the error constructor, and runtime.Callers

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()

		frames = append(frames, fmt.Sprintf("%s (%s:%d)",
			frame.Function,
			frame.File,
			frame.Line,
		))

		if !more {
			break
		}
	}

	return frames
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	type debugFormatter interface {
		FormatError(bool) string
	}

	if formatter, ok := err.(debugFormatter); ok {
		return formatter.FormatError(debugMode)
	}

	return err.Error()
}
