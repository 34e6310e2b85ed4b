// Package transport defines the transport layer abstraction for KestrelDB
package transport

import (
	"context"
	"time"
)

// Request describes a single HTTP call against the database server.
// Path is relative to the server root (e.g. "/_db/test/_api/cursor").
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, HEAD)
	Method string

	// Path is the request path relative to the server root
	Path string

	// Params are URL query parameters
	Params map[string]string

	// Headers are additional request headers
	Headers map[string]string

	// Body is JSON-encoded as the request payload when non-nil
	Body interface{}
}

// Response carries the outcome of a single round trip. Raw holds the
// response body bytes; Body holds the decoded JSON value, or nil when the
// body was empty or not valid JSON.
type Response struct {
	// Method is the HTTP method that was executed
	Method string

	// URL is the full URL that was requested
	URL string

	// StatusCode is the HTTP status code returned
	StatusCode int

	// StatusText is the HTTP status description, if any
	StatusText string

	// Raw is the unparsed response body
	Raw []byte

	// Body is the decoded JSON body, or nil if the body was empty or unparsable
	Body interface{}
}

// IsJSON returns whether the response body decoded as JSON.
func (r *Response) IsJSON() bool {
	return r.Body != nil
}

// Transport defines the interface for executing requests against the server
type Transport interface {
	// Send executes a single request and returns the parsed response
	Send(ctx context.Context, req *Request) (*Response, error)

	// Close closes the transport and releases its resources
	Close() error

	// IsHealthy returns whether the transport is healthy
	IsHealthy() bool

	// GetMetrics returns transport performance metrics
	GetMetrics() Metrics
}

// Metrics contains performance and health metrics
type Metrics struct {
	// TotalRequests is the total number of requests sent
	TotalRequests int64

	// TotalErrors is the total number of errors encountered
	TotalErrors int64

	// AverageLatency is the average round-trip latency
	AverageLatency time.Duration

	// LastError is the most recent error encountered
	LastError error

	// LastErrorTime is when the last error occurred
	LastErrorTime time.Time

	// BytesSent is the total bytes sent
	BytesSent int64

	// BytesReceived is the total bytes received
	BytesReceived int64
}

// Factory creates new transport instances
type Factory func(ctx context.Context) (Transport, error)
