package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/kestreldb/kestrel-go/protocol"
)

// OperationKind identifies a deferred batch operation.
type OperationKind string

const (
	OpCreateDocument  OperationKind = "create_document"
	OpReplaceDocument OperationKind = "replace_document"
	OpUpdateDocument  OperationKind = "update_document"
	OpDeleteDocument  OperationKind = "delete_document"
	OpCreateVertex    OperationKind = "create_vertex"
	OpReplaceVertex   OperationKind = "replace_vertex"
	OpUpdateVertex    OperationKind = "update_vertex"
	OpDeleteVertex    OperationKind = "delete_vertex"
	OpCreateEdge      OperationKind = "create_edge"
	OpReplaceEdge     OperationKind = "replace_edge"
	OpUpdateEdge      OperationKind = "update_edge"
	OpDeleteEdge      OperationKind = "delete_edge"
)

// Operation describes one deferred CRUD call. Use the constructor functions;
// operations built by hand with an unknown Kind are rejected at Add time.
type Operation struct {
	Kind       OperationKind
	Collection string
	Graph      string // vertex and edge operations only
	Key        string
	Document   interface{}
}

// Document operations

func CreateDocument(collection string, doc interface{}) Operation {
	return Operation{Kind: OpCreateDocument, Collection: collection, Document: doc}
}

func ReplaceDocument(collection, key string, doc interface{}) Operation {
	return Operation{Kind: OpReplaceDocument, Collection: collection, Key: key, Document: doc}
}

func UpdateDocument(collection, key string, patch interface{}) Operation {
	return Operation{Kind: OpUpdateDocument, Collection: collection, Key: key, Document: patch}
}

func DeleteDocument(collection, key string) Operation {
	return Operation{Kind: OpDeleteDocument, Collection: collection, Key: key}
}

// Vertex operations

func CreateVertex(graph, collection string, doc interface{}) Operation {
	return Operation{Kind: OpCreateVertex, Graph: graph, Collection: collection, Document: doc}
}

func ReplaceVertex(graph, collection, key string, doc interface{}) Operation {
	return Operation{Kind: OpReplaceVertex, Graph: graph, Collection: collection, Key: key, Document: doc}
}

func UpdateVertex(graph, collection, key string, patch interface{}) Operation {
	return Operation{Kind: OpUpdateVertex, Graph: graph, Collection: collection, Key: key, Document: patch}
}

func DeleteVertex(graph, collection, key string) Operation {
	return Operation{Kind: OpDeleteVertex, Graph: graph, Collection: collection, Key: key}
}

// Edge operations

func CreateEdge(graph, collection string, doc interface{}) Operation {
	return Operation{Kind: OpCreateEdge, Graph: graph, Collection: collection, Document: doc}
}

func ReplaceEdge(graph, collection, key string, doc interface{}) Operation {
	return Operation{Kind: OpReplaceEdge, Graph: graph, Collection: collection, Key: key, Document: doc}
}

func UpdateEdge(graph, collection, key string, patch interface{}) Operation {
	return Operation{Kind: OpUpdateEdge, Graph: graph, Collection: collection, Key: key, Document: patch}
}

func DeleteEdge(graph, collection, key string) Operation {
	return Operation{Kind: OpDeleteEdge, Graph: graph, Collection: collection, Key: key}
}

// Job is the write-once result placeholder returned by Add. It is empty
// until Commit demultiplexes the composite response; reading it before then
// returns a StateError.
type Job struct {
	id     string
	kind   OperationKind
	done   bool
	result json.RawMessage
	err    error
}

// ID returns the job identifier.
func (j *Job) ID() string {
	return j.id
}

// Kind returns the operation kind this job was queued for.
func (j *Job) Kind() OperationKind {
	return j.kind
}

// Done returns whether the batch containing this job has been committed.
func (j *Job) Done() bool {
	return j.done
}

// Result returns the raw sub-response for this job, or the typed error the
// server delivered for it.
func (j *Job) Result() (json.RawMessage, error) {
	if !j.done {
		return nil, ErrJobPending(j.id)
	}
	return j.result, j.err
}

// Decode unmarshals the job result into v.
func (j *Job) Decode(v interface{}) error {
	result, err := j.Result()
	if err != nil {
		return err
	}
	return json.Unmarshal(result, v)
}

// batchEntry pairs a queued request with its placeholder. Order is
// significant: the composite response is demultiplexed by position, never by
// content, because duplicate operations are legal and indistinguishable.
type batchEntry struct {
	job *Job
	req apiRequest
}

// batchPart is one element of the composite request body.
type batchPart struct {
	Method string      `json:"method"`
	Path   string      `json:"path"`
	Body   interface{} `json:"body,omitempty"`
}

// batchPartResult is one element of the composite response body.
type batchPartResult struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Batch collapses independent CRUD calls into one HTTP round trip while
// preserving per-call success/failure granularity. Descriptors accumulate in
// the calling goroutine only; Commit is a single blocking call.
type Batch struct {
	conn      *Connection
	entries   []*batchEntry
	committed bool
}

// NewBatch creates an empty batch.
func (c *Client) NewBatch() *Batch {
	return &Batch{conn: c.conn}
}

// Add queues an operation and immediately returns its result placeholder.
// No request is issued. Operation kinds outside the supported CRUD set are
// rejected here, before any network traffic.
func (b *Batch) Add(op Operation) (*Job, error) {
	if b.committed {
		return nil, ErrBatchCommitted()
	}

	req, err := buildBatchRequest(op, len(b.entries))
	if err != nil {
		return nil, err
	}

	job := &Job{
		id:   uuid.New().String(),
		kind: op.Kind,
	}
	b.entries = append(b.entries, &batchEntry{job: job, req: req})
	return job, nil
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.entries)
}

// Jobs returns the placeholders in queueing order.
func (b *Batch) Jobs() []*Job {
	jobs := make([]*Job, len(b.entries))
	for i, entry := range b.entries {
		jobs[i] = entry.job
	}
	return jobs
}

// Commit serializes the queued operations into one composite request,
// dispatches it, and fills every placeholder from the positionally matching
// sub-response. A per-entry failure is captured in its job, not returned;
// Commit itself fails only when the composite round trip fails outright or
// the response cannot be parsed.
func (b *Batch) Commit(ctx context.Context) error {
	if b.committed {
		return ErrBatchCommitted()
	}
	if len(b.entries) == 0 {
		b.committed = true
		return nil
	}

	parts := make([]batchPart, len(b.entries))
	for i, entry := range b.entries {
		parts[i] = batchPart{
			Method: entry.req.method,
			Path:   entry.req.encodedPath(),
			Body:   entry.req.body,
		}
	}

	res, err := b.conn.send(ctx, "POST", "/batch", nil, parts, nil)
	if err != nil {
		return errBatchDispatch("composite batch request failed", err)
	}
	if _, err := protocol.Classify(res); err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return errBatchDispatch("server rejected the composite batch request", serr)
		}
		return errBatchDispatch("composite batch response was unparsable", err)
	}

	var results []batchPartResult
	if err := json.Unmarshal(res.Raw, &results); err != nil {
		return errBatchDispatch("composite batch response was unparsable", err)
	}
	if len(results) != len(b.entries) {
		return errBatchDispatch(
			fmt.Sprintf("composite response has %d parts, expected %d", len(results), len(b.entries)),
			nil,
		)
	}

	for i, part := range results {
		job := b.entries[i].job
		var body interface{}
		if len(part.Body) > 0 {
			// Tolerate unparsable sub-bodies; classification by status
			// still applies.
			_ = json.Unmarshal(part.Body, &body)
		}
		if _, err := protocol.ClassifyValue(body, part.Status); err != nil {
			var serr *protocol.ServerError
			if errors.As(err, &serr) {
				job.err = databaseError("E_BATCH_OP_FAILED", serr)
			} else {
				job.err = err
			}
		} else {
			job.result = part.Body
		}
		job.done = true
	}

	b.committed = true
	return nil
}

// buildBatchRequest maps an operation descriptor onto its HTTP method, path
// and payload. Unknown kinds fail with a BatchError.
func buildBatchRequest(op Operation, position int) (apiRequest, error) {
	malformed := func(field string) (apiRequest, error) {
		return apiRequest{}, &BatchError{
			Code:     "E_BATCH_MALFORMED_OP",
			Type:     "BATCH_ERROR",
			Message:  fmt.Sprintf("operation %q is missing %s", string(op.Kind), field),
			Position: position,
		}
	}

	switch op.Kind {
	case OpCreateDocument:
		if op.Collection == "" {
			return malformed("a collection")
		}
		return buildCreateDocument(op.Collection, op.Document, false), nil
	case OpReplaceDocument:
		if op.Collection == "" || op.Key == "" {
			return malformed("a collection and key")
		}
		return buildReplaceDocument(op.Collection, op.Key, op.Document, false), nil
	case OpUpdateDocument:
		if op.Collection == "" || op.Key == "" {
			return malformed("a collection and key")
		}
		return buildUpdateDocument(op.Collection, op.Key, op.Document, false), nil
	case OpDeleteDocument:
		if op.Collection == "" || op.Key == "" {
			return malformed("a collection and key")
		}
		return buildDeleteDocument(op.Collection, op.Key, false), nil
	case OpCreateVertex:
		if op.Graph == "" || op.Collection == "" {
			return malformed("a graph and collection")
		}
		return buildCreateVertex(op.Graph, op.Collection, op.Document), nil
	case OpReplaceVertex:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildReplaceVertex(op.Graph, op.Collection, op.Key, op.Document), nil
	case OpUpdateVertex:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildUpdateVertex(op.Graph, op.Collection, op.Key, op.Document), nil
	case OpDeleteVertex:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildDeleteVertex(op.Graph, op.Collection, op.Key), nil
	case OpCreateEdge:
		if op.Graph == "" || op.Collection == "" {
			return malformed("a graph and collection")
		}
		return buildCreateEdge(op.Graph, op.Collection, op.Document), nil
	case OpReplaceEdge:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildReplaceEdge(op.Graph, op.Collection, op.Key, op.Document), nil
	case OpUpdateEdge:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildUpdateEdge(op.Graph, op.Collection, op.Key, op.Document), nil
	case OpDeleteEdge:
		if op.Graph == "" || op.Collection == "" || op.Key == "" {
			return malformed("a graph, collection and key")
		}
		return buildDeleteEdge(op.Graph, op.Collection, op.Key), nil
	default:
		return apiRequest{}, ErrUnsupportedBatchOperation(op.Kind, position)
	}
}

// apiRequest is a not-yet-dispatched API call, with its path relative to the
// database API prefix. Shared between the direct thin wrappers and the batch
// executor so both produce identical wire requests.
type apiRequest struct {
	method string
	path   string
	params map[string]string
	body   interface{}
}

// encodedPath folds the query parameters into the path, as required by the
// composite batch wire shape.
func (r apiRequest) encodedPath() string {
	if len(r.params) == 0 {
		return r.path
	}
	values := url.Values{}
	for key, value := range r.params {
		values.Set(key, value)
	}
	return r.path + "?" + values.Encode()
}
