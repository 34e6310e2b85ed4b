// Package mock implements transport.Transport for testing
package mock

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
	"github.com/kestreldb/kestrel-go/transport"
)

// step is one scripted round trip: either a response or an error.
type step struct {
	res *transport.Response
	err error
}

// MockTransport implements transport.Transport with scripted responses.
// Responses are consumed in FIFO order, one per Send call; every request is
// recorded for later inspection.
type MockTransport struct {
	mu      sync.Mutex
	script  []step
	history []*transport.Request
	closed  bool

	// Behavior configuration
	sendErr   error
	sendDelay time.Duration

	// Call tracking
	sendCalls  atomic.Int32
	closeCalls atomic.Int32

	// Metrics
	metrics mockMetrics
}

type mockMetrics struct {
	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	bytesReceived atomic.Int64
}

// NewMockTransport creates a new mock transport with an empty script
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Enqueue appends a scripted response
func (m *MockTransport) Enqueue(res *transport.Response) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{res: res})
	return m
}

// EnqueueJSON appends a scripted response with the given status code and a
// body decoded from the JSON string
func (m *MockTransport) EnqueueJSON(statusCode int, body string) *MockTransport {
	res := &transport.Response{
		StatusCode: statusCode,
		Raw:        []byte(body),
	}
	if len(body) > 0 {
		var decoded interface{}
		if err := json.Unmarshal([]byte(body), &decoded); err == nil {
			res.Body = decoded
		}
	}
	return m.Enqueue(res)
}

// EnqueueError appends a scripted transport failure
func (m *MockTransport) EnqueueError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, step{err: err})
	return m
}

// WithSendError configures the transport to return an error on every Send,
// regardless of the script
func (m *MockTransport) WithSendError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
	return m
}

// WithSendDelay adds a delay to Send operations
func (m *MockTransport) WithSendDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
	return m
}

// Send implements transport.Transport
func (m *MockTransport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	m.sendCalls.Add(1)
	m.metrics.totalRequests.Add(1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, protocol.ClosedError()
	}
	m.history = append(m.history, req)
	delay := m.sendDelay
	sendErr := m.sendErr
	var next step
	hasNext := len(m.script) > 0
	if hasNext && sendErr == nil {
		next = m.script[0]
		m.script = m.script[1:]
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if sendErr != nil {
		m.metrics.totalErrors.Add(1)
		return nil, sendErr
	}

	if !hasNext {
		m.metrics.totalErrors.Add(1)
		return nil, protocol.ConnectionError("mock transport: script exhausted", nil)
	}

	if next.err != nil {
		m.metrics.totalErrors.Add(1)
		return nil, next.err
	}

	res := next.res
	res.Method = req.Method
	if res.URL == "" {
		res.URL = req.Path
	}
	m.metrics.bytesReceived.Add(int64(len(res.Raw)))
	return res, nil
}

// Close implements transport.Transport
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsHealthy implements transport.Transport
func (m *MockTransport) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// GetMetrics implements transport.Transport
func (m *MockTransport) GetMetrics() transport.Metrics {
	return transport.Metrics{
		TotalRequests: m.metrics.totalRequests.Load(),
		TotalErrors:   m.metrics.totalErrors.Load(),
		BytesReceived: m.metrics.bytesReceived.Load(),
	}
}

// GetSendCallCount returns the number of times Send was called
func (m *MockTransport) GetSendCallCount() int {
	return int(m.sendCalls.Load())
}

// GetCloseCallCount returns the number of times Close was called
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// GetHistory returns all requests sent through this transport
func (m *MockTransport) GetHistory() []*transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return a copy to prevent external modifications
	history := make([]*transport.Request, len(m.history))
	copy(history, m.history)
	return history
}

// RequestAt returns the i-th recorded request, or nil if out of range
func (m *MockTransport) RequestAt(i int) *transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.history) {
		return nil
	}
	return m.history[i]
}

// PendingSteps returns the number of scripted responses not yet consumed
func (m *MockTransport) PendingSteps() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

// Reset clears the script, history, and call counts
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.script = nil
	m.history = nil
	m.closed = false
	m.sendErr = nil
	m.sendDelay = 0

	m.sendCalls.Store(0)
	m.closeCalls.Store(0)
	m.metrics.totalRequests.Store(0)
	m.metrics.totalErrors.Store(0)
	m.metrics.bytesReceived.Store(0)
}

// IsClosed returns whether the transport has been closed
func (m *MockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
