package client

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator"
	"github.com/joho/godotenv"

	"github.com/kestreldb/kestrel-go/transport"
)

// ClientOptions configures the KestrelDB client behavior.
type ClientOptions struct {
	// Endpoint is the server base URL.
	// Default: "http://localhost:8529"
	Endpoint string `validate:"required,url"`

	// Database is the database all operations are executed against.
	// Default: "_system"
	Database string `validate:"required"`

	// Username and Password are used for HTTP basic auth.
	Username string
	Password string

	// DefaultTimeout is the per-round-trip timeout. Zero disables the
	// transport-level timeout; the caller's context still applies.
	// Default: 10s
	DefaultTimeout time.Duration

	// DebugMode enables verbose error serialization with full cause chains.
	// Default: false
	DebugMode bool

	// CursorBatchSize is the default page size for query cursors when the
	// query options do not specify one. Zero leaves the page size to the server.
	CursorBatchSize int

	// DisableCursorCleanup turns off the best-effort server-side delete for
	// cursors that are garbage collected without being exhausted or closed,
	// leaving cleanup to the server's cursor TTL. Cleanup is on by default.
	DisableCursorCleanup bool

	// QueryValidationCacheSize is the maximum number of validated query
	// fingerprints to remember. Zero picks the default; a negative value
	// disables the cache.
	// Default: 256
	QueryValidationCacheSize int

	// QueryValidationCacheTTL is how long a validated query fingerprint
	// stays fresh.
	// Default: 5 minutes
	QueryValidationCacheTTL time.Duration

	// Logger is the logger implementation to use.
	// If nil, a default logger is used.
	Logger Logger

	// LogLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR).
	// Default: "INFO"
	LogLevel string

	// Transport overrides the transport implementation. If nil, an HTTP
	// transport for Endpoint is created. Used by tests.
	Transport transport.Transport

	// SkipVersionCheck disables the version probe on connect.
	// Default: false
	SkipVersionCheck bool
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		Endpoint:                 "http://localhost:8529",
		Database:                 "_system",
		DefaultTimeout:           10 * time.Second,
		DebugMode:                false,
		QueryValidationCacheSize: 256,
		QueryValidationCacheTTL:  5 * time.Minute,
		LogLevel:                 "INFO",
	}
}

// OptionsFromEnv builds options from KESTREL_* environment variables on top
// of the defaults. When envFile is non-empty it is loaded first (dotenv
// format); a missing file is not an error so the same code path works in
// development and production.
func OptionsFromEnv(envFile string) (ClientOptions, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return ClientOptions{}, err
		}
	}

	opts := DefaultOptions()
	if v := os.Getenv("KESTREL_ENDPOINT"); v != "" {
		opts.Endpoint = v
	}
	if v := os.Getenv("KESTREL_DATABASE"); v != "" {
		opts.Database = v
	}
	if v := os.Getenv("KESTREL_USERNAME"); v != "" {
		opts.Username = v
	}
	if v := os.Getenv("KESTREL_PASSWORD"); v != "" {
		opts.Password = v
	}
	if v := os.Getenv("KESTREL_LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}
	if v := os.Getenv("KESTREL_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return ClientOptions{}, &StateError{
				Code:    "E_INVALID_OPTION",
				Type:    "STATE_ERROR",
				Message: "KESTREL_TIMEOUT_MS must be an integer",
				Details: map[string]interface{}{"value": v},
			}
		}
		opts.DefaultTimeout = time.Duration(ms) * time.Millisecond
	}
	return opts, nil
}

// Validate checks the options for structural problems before a connection
// attempt is made.
func (o *ClientOptions) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return &StateError{
			Code:    "E_INVALID_OPTIONS",
			Type:    "STATE_ERROR",
			Message: err.Error(),
		}
	}
	return nil
}
