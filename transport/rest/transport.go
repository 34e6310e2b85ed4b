// Package rest implements transport.Transport over HTTP+JSON using net/http
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
	"github.com/kestreldb/kestrel-go/transport"
)

// Config configures the REST transport
type Config struct {
	// Endpoint is the server base URL, e.g. "http://localhost:8529"
	Endpoint string

	// Username and Password are sent as HTTP basic auth on every request
	Username string
	Password string

	// Timeout is the per-request timeout. Zero means no timeout beyond the
	// caller's context deadline.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. Used for custom TLS or
	// proxy configuration.
	HTTPClient *http.Client
}

// Transport executes single request/response round trips against the server.
// Safe for concurrent use.
type Transport struct {
	endpoint *url.URL
	username string
	password string
	timeout  time.Duration
	client   *http.Client

	mu     sync.RWMutex
	closed bool

	metrics restMetrics
}

type restMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesSent     atomic.Int64
	bytesReceived atomic.Int64
	latencySum    atomic.Int64

	mu            sync.Mutex
	lastError     error
	lastErrorTime time.Time
}

// New creates a REST transport for the given configuration.
func New(cfg Config) (*Transport, error) {
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, protocol.ConnectionError(fmt.Sprintf("invalid endpoint %q", cfg.Endpoint), err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, protocol.ConnectionError(fmt.Sprintf("unsupported endpoint scheme %q", endpoint.Scheme), nil)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Transport{
		endpoint: endpoint,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  cfg.Timeout,
		client:   client,
	}, nil
}

// Send implements transport.Transport
func (t *Transport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, protocol.ClosedError()
	}

	t.metrics.totalRequests.Add(1)

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	httpReq, err := t.buildRequest(ctx, req)
	if err != nil {
		t.recordError(err)
		return nil, err
	}

	start := time.Now()
	httpRes, err := t.client.Do(httpReq)
	t.metrics.latencySum.Add(int64(time.Since(start)))
	if err != nil {
		terr := classifySendError(req, err)
		t.recordError(terr)
		return nil, terr
	}
	defer httpRes.Body.Close()

	raw, err := io.ReadAll(httpRes.Body)
	if err != nil {
		terr := protocol.ConnectionError("failed to read response body", err)
		t.recordError(terr)
		return nil, terr
	}
	t.metrics.bytesReceived.Add(int64(len(raw)))

	res := &transport.Response{
		Method:     req.Method,
		URL:        httpReq.URL.String(),
		StatusCode: httpRes.StatusCode,
		StatusText: httpRes.Status,
		Raw:        raw,
	}

	// Decode leniently. Classification decides whether a missing body is a
	// failure for this status code.
	if len(raw) > 0 {
		var body interface{}
		if err := json.Unmarshal(raw, &body); err == nil {
			res.Body = body
		}
	}

	return res, nil
}

// buildRequest converts a transport.Request into an *http.Request.
func (t *Transport) buildRequest(ctx context.Context, req *transport.Request) (*http.Request, error) {
	u := *t.endpoint
	u.Path = req.Path
	if len(req.Params) > 0 {
		q := u.Query()
		for key, value := range req.Params {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, protocol.BadResponseError(fmt.Sprintf("failed to encode request body: %v", err), 0)
		}
		t.metrics.bytesSent.Add(int64(len(encoded)))
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, protocol.ConnectionError("failed to build request", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if t.username != "" {
		httpReq.SetBasicAuth(t.username, t.password)
	}

	return httpReq, nil
}

// classifySendError maps net/http failures onto transport error codes.
func classifySendError(req *transport.Request, err error) *protocol.TransportError {
	if errors.Is(err, context.DeadlineExceeded) {
		return protocol.TimeoutError(fmt.Sprintf("%s %s timed out", req.Method, req.Path), err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return protocol.TimeoutError(fmt.Sprintf("%s %s timed out", req.Method, req.Path), err)
	}
	return protocol.ConnectionError(fmt.Sprintf("%s %s failed", req.Method, req.Path), err)
}

func (t *Transport) recordError(err error) {
	t.metrics.totalErrors.Add(1)
	t.metrics.mu.Lock()
	t.metrics.lastError = err
	t.metrics.lastErrorTime = time.Now()
	t.metrics.mu.Unlock()
}

// Close implements transport.Transport
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	t.client.CloseIdleConnections()
	return nil
}

// IsHealthy implements transport.Transport
func (t *Transport) IsHealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.closed
}

// GetMetrics implements transport.Transport
func (t *Transport) GetMetrics() transport.Metrics {
	totalReqs := t.metrics.totalRequests.Load()
	avgLatency := time.Duration(0)
	if totalReqs > 0 {
		avgLatency = time.Duration(t.metrics.latencySum.Load() / totalReqs)
	}

	t.metrics.mu.Lock()
	lastError := t.metrics.lastError
	lastErrorTime := t.metrics.lastErrorTime
	t.metrics.mu.Unlock()

	return transport.Metrics{
		TotalRequests:  totalReqs,
		TotalErrors:    t.metrics.totalErrors.Load(),
		AverageLatency: avgLatency,
		LastError:      lastError,
		LastErrorTime:  lastErrorTime,
		BytesSent:      t.metrics.bytesSent.Load(),
		BytesReceived:  t.metrics.bytesReceived.Load(),
	}
}
