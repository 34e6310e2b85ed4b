package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kestreldb/kestrel-go/protocol"
	"github.com/kestreldb/kestrel-go/transport"
)

// traceHeader carries the per-request trace ID so server logs can be
// correlated with driver logs.
const traceHeader = "X-Kestrel-Trace-Id"

// Connection executes database-scoped API calls. Every operation runs in the
// context of exactly one database, so paths are prefixed with
// /_db/{database}/_api.
type Connection struct {
	database  string
	transport transport.Transport
	logger    Logger
}

func newConnection(database string, tr transport.Transport, logger Logger) *Connection {
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &Connection{
		database:  database,
		transport: tr,
		logger:    logger,
	}
}

// Database returns the database this connection is scoped to.
func (c *Connection) Database() string {
	return c.database
}

func (c *Connection) apiPath(path string) string {
	return "/_db/" + c.database + "/_api" + path
}

// send executes one round trip without envelope classification. Callers that
// tolerate specific non-2xx statuses (document get, cursor delete) use this
// directly; everything else goes through request.
func (c *Connection) send(ctx context.Context, method, path string, params map[string]string, body interface{}, headers map[string]string) (*transport.Response, error) {
	traceID := uuid.New().String()
	if headers == nil {
		headers = map[string]string{}
	}
	headers[traceHeader] = traceID

	req := &transport.Request{
		Method:  method,
		Path:    c.apiPath(path),
		Params:  params,
		Headers: headers,
		Body:    body,
	}

	start := time.Now()
	res, err := c.transport.Send(ctx, req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("request failed",
			String("trace_id", traceID),
			String("method", method),
			String("path", req.Path),
			Duration("duration", duration),
			Error("error", err))
		return nil, err
	}

	c.logger.Debug("request completed",
		String("trace_id", traceID),
		String("method", method),
		String("path", req.Path),
		Int("status", res.StatusCode),
		Duration("duration", duration))

	return res, nil
}

// request executes one round trip and classifies the response, returning the
// decoded payload or a typed error.
func (c *Connection) request(ctx context.Context, method, path string, params map[string]string, body interface{}, headers map[string]string) (*transport.Response, interface{}, error) {
	res, err := c.send(ctx, method, path, params, body, headers)
	if err != nil {
		return nil, nil, err
	}
	payload, err := protocol.Classify(res)
	if err != nil {
		return res, nil, err
	}
	return res, payload, nil
}

func (c *Connection) get(ctx context.Context, path string, params map[string]string) (*transport.Response, interface{}, error) {
	return c.request(ctx, "GET", path, params, nil, nil)
}

func (c *Connection) post(ctx context.Context, path string, params map[string]string, body interface{}) (*transport.Response, interface{}, error) {
	return c.request(ctx, "POST", path, params, body, nil)
}

func (c *Connection) put(ctx context.Context, path string, params map[string]string, body interface{}) (*transport.Response, interface{}, error) {
	return c.request(ctx, "PUT", path, params, body, nil)
}

func (c *Connection) patch(ctx context.Context, path string, params map[string]string, body interface{}) (*transport.Response, interface{}, error) {
	return c.request(ctx, "PATCH", path, params, body, nil)
}

func (c *Connection) delete(ctx context.Context, path string, params map[string]string) (*transport.Response, interface{}, error) {
	return c.request(ctx, "DELETE", path, params, nil, nil)
}
