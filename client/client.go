// Package client implements the KestrelDB driver: query cursors, batched and
// transactional operations, and thin wrappers over the HTTP+JSON API.
package client

import (
	"context"
	"encoding/json"

	"github.com/kestreldb/kestrel-go/protocol"
	"github.com/kestreldb/kestrel-go/transport"
	"github.com/kestreldb/kestrel-go/transport/rest"
)

// Client is a handle to one database on one server. All operations are
// single request/response round trips driven by the calling goroutine; the
// client spawns no background work.
type Client struct {
	conn      *Connection
	transport transport.Transport
	logger    Logger
	options   ClientOptions
	validated *validationCache
}

// NewClient creates a client for the configured endpoint and database and
// verifies the server is reachable with a version probe.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	defaults := DefaultOptions()
	if opts.Endpoint == "" {
		opts.Endpoint = defaults.Endpoint
	}
	if opts.Database == "" {
		opts.Database = defaults.Database
	}
	if opts.DefaultTimeout == 0 {
		opts.DefaultTimeout = defaults.DefaultTimeout
	}
	if opts.LogLevel == "" {
		opts.LogLevel = defaults.LogLevel
	}
	if opts.QueryValidationCacheSize == 0 {
		opts.QueryValidationCacheSize = defaults.QueryValidationCacheSize
	}
	if opts.QueryValidationCacheTTL == 0 {
		opts.QueryValidationCacheTTL = defaults.QueryValidationCacheTTL
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(opts.LogLevel, nil)
	}

	tr := opts.Transport
	if tr == nil {
		var err error
		tr, err = rest.New(rest.Config{
			Endpoint: opts.Endpoint,
			Username: opts.Username,
			Password: opts.Password,
			Timeout:  opts.DefaultTimeout,
		})
		if err != nil {
			return nil, &ConnectionError{
				Code:       "E_CONNECT_FAILED",
				Type:       "CONNECTION_ERROR",
				Message:    "failed to create transport for " + opts.Endpoint,
				Cause:      err,
				StackTrace: captureStackTrace(),
			}
		}
	}

	c := &Client{
		conn:      newConnection(opts.Database, tr, logger),
		transport: tr,
		logger:    logger,
		options:   opts,
		validated: newValidationCache(opts.QueryValidationCacheSize, opts.QueryValidationCacheTTL),
	}

	if !opts.SkipVersionCheck {
		version, err := c.Version(ctx)
		if err != nil {
			tr.Close()
			return nil, &ConnectionError{
				Code:       "E_CONNECT_FAILED",
				Type:       "CONNECTION_ERROR",
				Message:    "server is not reachable at " + opts.Endpoint,
				Cause:      err,
				StackTrace: captureStackTrace(),
			}
		}
		logger.Info("connected",
			String("endpoint", opts.Endpoint),
			String("database", opts.Database),
			String("server_version", version))
	}

	return c, nil
}

// Database returns the database this client is scoped to.
func (c *Client) Database() string {
	return c.conn.Database()
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, _, err := c.conn.get(ctx, "/version", nil)
	if err != nil {
		return "", wrapServerError(err, "E_VERSION_GET_FAILED")
	}

	var decoded struct {
		Server  string `json:"server"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(res.Raw, &decoded); err != nil {
		return "", protocol.BadResponseError("version response was unparsable", res.StatusCode)
	}
	return decoded.Version, nil
}

// DatabaseProperties returns the properties of the current database.
func (c *Client) DatabaseProperties(ctx context.Context) (map[string]interface{}, error) {
	_, payload, err := c.conn.get(ctx, "/database/current", nil)
	if err != nil {
		return nil, wrapServerError(err, "E_DATABASE_PROPERTIES_FAILED")
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		if result, ok := obj["result"].(map[string]interface{}); ok {
			return result, nil
		}
	}
	return nil, protocol.BadResponseError("database properties response carried no result", 0)
}

// Metrics returns the transport metrics accumulated so far.
func (c *Client) Metrics() transport.Metrics {
	return c.transport.GetMetrics()
}

// Close releases the transport. The client must not be used afterwards.
func (c *Client) Close() error {
	return c.transport.Close()
}
