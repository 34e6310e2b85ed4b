package client

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/cespare/xxhash"

	"github.com/kestreldb/kestrel-go/protocol"
)

// QueryOptions configures query execution.
type QueryOptions struct {
	// Count requests the full result count alongside the first page.
	Count bool

	// BatchSize is the maximum number of documents per round trip. Zero
	// falls back to the client default, then to the server default.
	BatchSize int

	// TTL is the server-side cursor time-to-live. Zero uses the server default.
	TTL time.Duration

	// BindVars are the bind parameters referenced by the query.
	BindVars map[string]interface{}

	// FullCount requests the count before the last LIMIT is applied.
	FullCount bool

	// MaxPlans limits the number of plans the optimizer generates.
	MaxPlans int

	// OptimizerRules are optimizer rules to include or exclude.
	OptimizerRules []string
}

func (o *QueryOptions) body(query string, defaultBatchSize int) map[string]interface{} {
	data := map[string]interface{}{
		"query": query,
		"count": o.Count,
	}
	batchSize := o.BatchSize
	if batchSize == 0 {
		batchSize = defaultBatchSize
	}
	if batchSize > 0 {
		data["batchSize"] = batchSize
	}
	if o.TTL > 0 {
		data["ttl"] = int(o.TTL / time.Second)
	}
	if len(o.BindVars) > 0 {
		data["bindVars"] = o.BindVars
	}

	options := map[string]interface{}{}
	if o.FullCount {
		options["fullCount"] = true
	}
	if o.MaxPlans > 0 {
		options["maxNumberOfPlans"] = o.MaxPlans
	}
	if len(o.OptimizerRules) > 0 {
		options["optimizer"] = map[string]interface{}{"rules": o.OptimizerRules}
	}
	if len(options) > 0 {
		data["options"] = options
	}
	return data
}

// Query executes the query and returns a cursor over its result set. The
// first page travels with the create response; further pages are fetched
// lazily as the cursor is iterated.
func (c *Client) Query(ctx context.Context, query string, opts *QueryOptions) (*Cursor, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}

	res, _, err := c.conn.post(ctx, "/cursor", nil, opts.body(query, c.options.CursorBatchSize))
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, &QueryError{
				DatabaseError: *databaseError("E_QUERY_EXECUTE_FAILED", serr),
				Query:         query,
				BindVars:      opts.BindVars,
			}
		}
		return nil, err
	}

	var page cursorPage
	if err := json.Unmarshal(res.Raw, &page); err != nil {
		return nil, protocol.BadResponseError("query returned an unparsable result page", res.StatusCode)
	}

	return newCursor(c.conn, &page, !c.options.DisableCursorCleanup), nil
}

// Explain inspects the query without executing it and returns the optimal
// execution plan, or all candidate plans when allPlans is set.
func (c *Client) Explain(ctx context.Context, query string, allPlans bool) (interface{}, error) {
	body := map[string]interface{}{
		"query":   query,
		"options": map[string]interface{}{"allPlans": allPlans},
	}
	_, payload, err := c.conn.post(ctx, "/explain", nil, body)
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, &QueryError{
				DatabaseError: *databaseError("E_QUERY_EXPLAIN_FAILED", serr),
				Query:         query,
			}
		}
		return nil, err
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		if plan, ok := obj["plan"]; ok {
			return plan, nil
		}
		if plans, ok := obj["plans"]; ok {
			return plans, nil
		}
	}
	return payload, nil
}

// Validate parses the query server-side without executing it. Fingerprints
// of successfully validated queries are cached so hot query text is not
// re-validated on every call.
func (c *Client) Validate(ctx context.Context, query string) error {
	key := xxhash.Sum64String(query)
	if c.validated.seen(key) {
		return nil
	}

	_, _, err := c.conn.post(ctx, "/query", nil, map[string]interface{}{"query": query})
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return &QueryError{
				DatabaseError: *databaseError("E_QUERY_INVALID", serr),
				Query:         query,
			}
		}
		return err
	}

	c.validated.add(key)
	return nil
}

// ValidationCacheStats returns a snapshot of the validation cache counters.
func (c *Client) ValidationCacheStats() CacheStats {
	return c.validated.snapshot()
}

// CacheStats is a point-in-time snapshot of validation cache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

func (s CacheStats) String() string {
	return "hits=" + strconv.FormatInt(s.Hits, 10) +
		" misses=" + strconv.FormatInt(s.Misses, 10) +
		" evictions=" + strconv.FormatInt(s.Evictions, 10) +
		" size=" + strconv.Itoa(s.Size)
}
