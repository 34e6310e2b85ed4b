package protocol

import (
	"fmt"

	"github.com/kestreldb/kestrel-go/transport"
)

// Server error numbers carried in the errorNum field of error envelopes.
const (
	ErrNumLockTimeout             = 18
	ErrNumDocumentNotFound        = 1202
	ErrNumCollectionNotFound      = 1203
	ErrNumDocumentRevConflict     = 1200
	ErrNumUniqueConstraint        = 1210
	ErrNumQueryParse              = 1501
	ErrNumQueryBindParameter      = 1551
	ErrNumCursorNotFound          = 1600
	ErrNumTransactionInternal     = 1651
	ErrNumTransactionUnregistered = 1653
	ErrNumTransactionDisallowed   = 1654
)

// ServerError is the decoded form of a KestrelDB error envelope:
// {"error": true, "errorNum": <int>, "errorMessage": <string>, "code": <int>}.
type ServerError struct {
	ErrorNum   int    `json:"errorNum"`
	Message    string `json:"errorMessage"`
	StatusCode int    `json:"code"`
}

// Error implements the error interface
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s (HTTP %d)", e.ErrorNum, e.Message, e.StatusCode)
}

// IsNotFound returns whether the error signals a missing resource.
func (e *ServerError) IsNotFound() bool {
	switch e.ErrorNum {
	case ErrNumDocumentNotFound, ErrNumCollectionNotFound, ErrNumCursorNotFound:
		return true
	}
	return e.StatusCode == 404
}

// envelope mirrors the wire shape of an error envelope for detection.
type envelope struct {
	Error        bool
	ErrorNum     int
	ErrorMessage string
	Code         int
}

// decodeEnvelope probes a decoded JSON value for the error envelope shape.
// Only object bodies can carry an envelope.
func decodeEnvelope(body interface{}) (*envelope, bool) {
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, false
	}
	flag, ok := obj["error"].(bool)
	if !ok || !flag {
		return nil, false
	}
	env := &envelope{Error: true}
	if num, ok := obj["errorNum"].(float64); ok {
		env.ErrorNum = int(num)
	}
	if msg, ok := obj["errorMessage"].(string); ok {
		env.ErrorMessage = msg
	}
	if code, ok := obj["code"].(float64); ok {
		env.Code = int(code)
	}
	return env, true
}

// Classify inspects a response for an error envelope and returns the decoded
// payload unchanged when the body carries no error indicator. An envelope
// becomes a ServerError; a non-JSON or empty body paired with a non-2xx
// status becomes a TransportError, since the two require different recovery.
func Classify(res *transport.Response) (interface{}, error) {
	if env, ok := decodeEnvelope(res.Body); ok {
		status := env.Code
		if status == 0 {
			status = res.StatusCode
		}
		return nil, &ServerError{
			ErrorNum:   env.ErrorNum,
			Message:    env.ErrorMessage,
			StatusCode: status,
		}
	}

	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res.Body, nil
	}

	// An envelope-less 401/407 means the credentials never made it past the
	// server's auth layer.
	if res.StatusCode == 401 || res.StatusCode == 407 {
		return nil, AuthError(
			fmt.Sprintf("%s %s was rejected with status %d", res.Method, res.URL, res.StatusCode),
		)
	}

	if !res.IsJSON() {
		return nil, BadResponseError(
			fmt.Sprintf("%s %s returned status %d with no parsable body", res.Method, res.URL, res.StatusCode),
			res.StatusCode,
		)
	}

	// JSON body without an envelope on a non-2xx status. The server did
	// answer, so surface it as a server-side failure.
	return nil, &ServerError{
		Message:    fmt.Sprintf("unexpected status %d", res.StatusCode),
		StatusCode: res.StatusCode,
	}
}

// ClassifyValue classifies a decoded JSON value paired with a status code.
// Used for the embedded sub-responses of a batch, which have no transport
// context of their own.
func ClassifyValue(body interface{}, statusCode int) (interface{}, error) {
	if env, ok := decodeEnvelope(body); ok {
		status := env.Code
		if status == 0 {
			status = statusCode
		}
		return nil, &ServerError{
			ErrorNum:   env.ErrorNum,
			Message:    env.ErrorMessage,
			StatusCode: status,
		}
	}
	if statusCode >= 200 && statusCode < 300 {
		return body, nil
	}
	return nil, &ServerError{
		Message:    fmt.Sprintf("unexpected status %d", statusCode),
		StatusCode: statusCode,
	}
}
