package client

import (
	"context"
	"encoding/json"

	"github.com/kestreldb/kestrel-go/protocol"
)

// CollectionType distinguishes document from edge collections.
type CollectionType int

const (
	CollectionTypeDocument CollectionType = 2
	CollectionTypeEdge     CollectionType = 3
)

// CollectionInfo describes a collection.
type CollectionInfo struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     CollectionType `json:"type"`
	IsSystem bool           `json:"isSystem"`
	Status   int            `json:"status"`
}

// CreateCollectionOptions configures collection creation.
type CreateCollectionOptions struct {
	Type        CollectionType
	WaitForSync bool
}

// CreateCollection creates a collection with the given name.
func (c *Client) CreateCollection(ctx context.Context, name string, opts *CreateCollectionOptions) (*CollectionInfo, error) {
	body := map[string]interface{}{"name": name}
	if opts != nil {
		if opts.Type != 0 {
			body["type"] = int(opts.Type)
		}
		if opts.WaitForSync {
			body["waitForSync"] = true
		}
	}

	res, _, err := c.conn.post(ctx, "/collection", nil, body)
	if err != nil {
		return nil, wrapServerError(err, "E_COLLECTION_CREATE_FAILED")
	}

	var info CollectionInfo
	if err := json.Unmarshal(res.Raw, &info); err != nil {
		return nil, protocol.BadResponseError("collection create response was unparsable", res.StatusCode)
	}
	return &info, nil
}

// Collections lists the non-system collections in the database.
func (c *Client) Collections(ctx context.Context) ([]CollectionInfo, error) {
	res, _, err := c.conn.get(ctx, "/collection", map[string]string{"excludeSystem": "true"})
	if err != nil {
		return nil, wrapServerError(err, "E_COLLECTION_LIST_FAILED")
	}

	var decoded struct {
		Result []CollectionInfo `json:"result"`
	}
	if err := json.Unmarshal(res.Raw, &decoded); err != nil {
		return nil, protocol.BadResponseError("collection list response was unparsable", res.StatusCode)
	}
	return decoded.Result, nil
}

// Collection returns information about one collection.
func (c *Client) Collection(ctx context.Context, name string) (*CollectionInfo, error) {
	res, _, err := c.conn.get(ctx, "/collection/"+name, nil)
	if err != nil {
		return nil, wrapServerError(err, "E_COLLECTION_GET_FAILED")
	}

	var info CollectionInfo
	if err := json.Unmarshal(res.Raw, &info); err != nil {
		return nil, protocol.BadResponseError("collection response was unparsable", res.StatusCode)
	}
	return &info, nil
}

// TruncateCollection removes all documents but keeps the collection.
func (c *Client) TruncateCollection(ctx context.Context, name string) error {
	_, _, err := c.conn.put(ctx, "/collection/"+name+"/truncate", nil, nil)
	return wrapServerError(err, "E_COLLECTION_TRUNCATE_FAILED")
}

// DeleteCollection removes the collection and all its documents.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	_, _, err := c.conn.delete(ctx, "/collection/"+name, nil)
	return wrapServerError(err, "E_COLLECTION_DELETE_FAILED")
}
