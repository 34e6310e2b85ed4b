package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kestreldb/kestrel-go/protocol"
)

// DocumentID is a collection-qualified document handle of the form
// "collection/key". The key is unique within its collection.
type DocumentID string

// NewDocumentID builds a handle from its parts.
func NewDocumentID(collection, key string) DocumentID {
	return DocumentID(collection + "/" + key)
}

// Collection returns the collection part of the handle.
func (id DocumentID) Collection() string {
	parts := strings.SplitN(string(id), "/", 2)
	return parts[0]
}

// Key returns the key part of the handle, or "" for a malformed handle.
func (id DocumentID) Key() string {
	parts := strings.SplitN(string(id), "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Validate checks the handle has both parts.
func (id DocumentID) Validate() error {
	parts := strings.SplitN(string(id), "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return &StateError{
			Code:    "E_INVALID_DOCUMENT_ID",
			Type:    "STATE_ERROR",
			Message: fmt.Sprintf("malformed document handle %q, want collection/key", string(id)),
		}
	}
	return nil
}

// DocumentMeta holds the identifying fields the server returns for every
// document mutation. The revision changes on every successful mutation.
type DocumentMeta struct {
	ID  DocumentID `json:"_id"`
	Key string     `json:"_key"`
	Rev string     `json:"_rev"`
}

// GetOptions configures document retrieval.
type GetOptions struct {
	// Rev is compared against the revision of the stored document.
	Rev string

	// MatchRev controls the comparison: true sends If-Match (revisions must
	// match), false sends If-None-Match.
	MatchRev bool
}

// Request builders, shared between the direct wrappers below and the batch
// executor so both produce identical wire requests.

func buildCreateDocument(collection string, doc interface{}, waitForSync bool) apiRequest {
	return apiRequest{
		method: "POST",
		path:   "/document",
		params: map[string]string{
			"collection":  collection,
			"waitForSync": boolParam(waitForSync),
		},
		body: doc,
	}
}

func buildReplaceDocument(collection, key string, doc interface{}, waitForSync bool) apiRequest {
	return apiRequest{
		method: "PUT",
		path:   "/document/" + collection + "/" + key,
		params: map[string]string{"waitForSync": boolParam(waitForSync)},
		body:   doc,
	}
}

func buildUpdateDocument(collection, key string, patch interface{}, waitForSync bool) apiRequest {
	return apiRequest{
		method: "PATCH",
		path:   "/document/" + collection + "/" + key,
		params: map[string]string{"waitForSync": boolParam(waitForSync)},
		body:   patch,
	}
}

func buildDeleteDocument(collection, key string, waitForSync bool) apiRequest {
	return apiRequest{
		method: "DELETE",
		path:   "/document/" + collection + "/" + key,
		params: map[string]string{"waitForSync": boolParam(waitForSync)},
	}
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// dispatch runs a built request through the connection and decodes the
// returned metadata.
func (c *Client) dispatch(ctx context.Context, req apiRequest, failCode string) (*DocumentMeta, error) {
	res, _, err := c.conn.request(ctx, req.method, req.path, req.params, req.body, nil)
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, databaseError(failCode, serr)
		}
		return nil, err
	}

	var meta DocumentMeta
	if err := json.Unmarshal(res.Raw, &meta); err != nil {
		return nil, protocol.BadResponseError("mutation response carried no document metadata", res.StatusCode)
	}
	return &meta, nil
}

// CreateDocument adds a new document to the collection and returns its meta.
// When doc carries a _key field its value must be free.
func (c *Client) CreateDocument(ctx context.Context, collection string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatch(ctx, buildCreateDocument(collection, doc, false), "E_DOCUMENT_CREATE_FAILED")
}

// ReplaceDocument replaces the document body wholesale.
func (c *Client) ReplaceDocument(ctx context.Context, collection, key string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatch(ctx, buildReplaceDocument(collection, key, doc, false), "E_DOCUMENT_REPLACE_FAILED")
}

// UpdateDocument partially updates the document with the given patch.
func (c *Client) UpdateDocument(ctx context.Context, collection, key string, patch interface{}) (*DocumentMeta, error) {
	return c.dispatch(ctx, buildUpdateDocument(collection, key, patch, false), "E_DOCUMENT_UPDATE_FAILED")
}

// DeleteDocument removes the document.
func (c *Client) DeleteDocument(ctx context.Context, collection, key string) (*DocumentMeta, error) {
	return c.dispatch(ctx, buildDeleteDocument(collection, key, false), "E_DOCUMENT_DELETE_FAILED")
}

// GetDocument retrieves a document. A missing document returns (nil, nil). A
// failed revision precondition returns a DatabaseError with the revision
// conflict error number.
func (c *Client) GetDocument(ctx context.Context, collection, key string, opts *GetOptions) (json.RawMessage, error) {
	var headers map[string]string
	if opts != nil && opts.Rev != "" {
		name := "If-None-Match"
		if opts.MatchRev {
			name = "If-Match"
		}
		headers = map[string]string{name: opts.Rev}
	}

	res, err := c.conn.send(ctx, "GET", "/document/"+collection+"/"+key, nil, nil, headers)
	if err != nil {
		return nil, err
	}

	switch res.StatusCode {
	case 404:
		return nil, nil
	case 412, 304:
		return nil, &DatabaseError{
			Code:       "E_DOCUMENT_REV_CONFLICT",
			Type:       "DATABASE_ERROR",
			Message:    fmt.Sprintf("revision precondition failed for %s/%s", collection, key),
			ErrorNum:   protocol.ErrNumDocumentRevConflict,
			StatusCode: res.StatusCode,
		}
	}

	if _, err := protocol.Classify(res); err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, databaseError("E_DOCUMENT_GET_FAILED", serr)
		}
		return nil, err
	}
	return json.RawMessage(res.Raw), nil
}
