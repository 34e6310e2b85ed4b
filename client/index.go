package client

import (
	"context"
	"encoding/json"

	"github.com/kestreldb/kestrel-go/protocol"
)

// IndexInfo describes an index on a collection.
type IndexInfo struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Fields []string `json:"fields"`
	Unique bool     `json:"unique"`
	Sparse bool     `json:"sparse"`
}

// EnsureIndexOptions configures index creation.
type EnsureIndexOptions struct {
	Type   string // "hash", "skiplist", "persistent", "geo", "fulltext"
	Fields []string
	Unique bool
	Sparse bool
}

// EnsureIndex creates the index if it does not exist yet and returns its
// description either way.
func (c *Client) EnsureIndex(ctx context.Context, collection string, opts EnsureIndexOptions) (*IndexInfo, error) {
	body := map[string]interface{}{
		"type":   opts.Type,
		"fields": opts.Fields,
		"unique": opts.Unique,
		"sparse": opts.Sparse,
	}

	res, _, err := c.conn.post(ctx, "/index", map[string]string{"collection": collection}, body)
	if err != nil {
		return nil, wrapServerError(err, "E_INDEX_CREATE_FAILED")
	}

	var info IndexInfo
	if err := json.Unmarshal(res.Raw, &info); err != nil {
		return nil, protocol.BadResponseError("index response was unparsable", res.StatusCode)
	}
	return &info, nil
}

// Indexes lists the indexes of a collection.
func (c *Client) Indexes(ctx context.Context, collection string) ([]IndexInfo, error) {
	res, _, err := c.conn.get(ctx, "/index", map[string]string{"collection": collection})
	if err != nil {
		return nil, wrapServerError(err, "E_INDEX_LIST_FAILED")
	}

	var decoded struct {
		Indexes []IndexInfo `json:"indexes"`
	}
	if err := json.Unmarshal(res.Raw, &decoded); err != nil {
		return nil, protocol.BadResponseError("index list response was unparsable", res.StatusCode)
	}
	return decoded.Indexes, nil
}

// DeleteIndex removes an index by its handle ("collection/id").
func (c *Client) DeleteIndex(ctx context.Context, handle string) error {
	_, _, err := c.conn.delete(ctx, "/index/"+handle, nil)
	return wrapServerError(err, "E_INDEX_DELETE_FAILED")
}
