package client

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kestreldb/kestrel-go/testutil"
	"github.com/kestreldb/kestrel-go/transport/mock"
)

func TestBatchPositionalDemux(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, testutil.BatchResponse(
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r1")),
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r2")),
		testutil.BatchPart(200, testutil.DocumentMeta("users", "bob", "r3")),
	))

	c := newTestClient(t, tr)
	batch := c.NewBatch()

	// The first two operations are byte-identical on the wire; only position
	// can tell their results apart.
	doc := map[string]interface{}{"_key": "alice"}
	job1, err := batch.Add(CreateDocument("users", doc))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job2, err := batch.Add(CreateDocument("users", doc))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	job3, err := batch.Add(DeleteDocument("users", "bob"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if got := tr.GetSendCallCount(); got != 1 {
		t.Fatalf("expected exactly 1 round trip, got %d", got)
	}

	var meta1, meta2, meta3 DocumentMeta
	if err := job1.Decode(&meta1); err != nil {
		t.Fatalf("job1 failed: %v", err)
	}
	if err := job2.Decode(&meta2); err != nil {
		t.Fatalf("job2 failed: %v", err)
	}
	if err := job3.Decode(&meta3); err != nil {
		t.Fatalf("job3 failed: %v", err)
	}
	if meta1.Rev != "r1" || meta2.Rev != "r2" || meta3.Rev != "r3" {
		t.Errorf("results not matched by position: %s %s %s", meta1.Rev, meta2.Rev, meta3.Rev)
	}
}

func TestBatchWireShape(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, testutil.BatchResponse(
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r1")),
		testutil.BatchPart(202, `{"vertex":`+testutil.DocumentMeta("people", "carol", "r2")+`}`),
	))

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	batch.Add(CreateDocument("users", map[string]interface{}{"_key": "alice"}))
	batch.Add(CreateVertex("social", "people", map[string]interface{}{"_key": "carol"}))

	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	req := tr.RequestAt(0)
	if req.Method != "POST" || req.Path != "/_db/test/_api/batch" {
		t.Fatalf("unexpected composite request: %s %s", req.Method, req.Path)
	}

	parts, ok := req.Body.([]batchPart)
	if !ok {
		t.Fatalf("expected []batchPart body, got %T", req.Body)
	}
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if parts[0].Method != "POST" || !strings.HasPrefix(parts[0].Path, "/document?") {
		t.Errorf("unexpected first part: %s %s", parts[0].Method, parts[0].Path)
	}
	if !strings.Contains(parts[0].Path, "collection=users") {
		t.Errorf("query parameters not folded into the part path: %s", parts[0].Path)
	}
	if parts[1].Method != "POST" || parts[1].Path != "/gharial/social/vertex/people" {
		t.Errorf("unexpected second part: %s %s", parts[1].Method, parts[1].Path)
	}
}

func TestBatchPerEntryFailure(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, testutil.BatchResponse(
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r1")),
		testutil.BatchPart(404, testutil.ErrorEnvelope(1202, "document not found", 404)),
		testutil.BatchPart(200, testutil.DocumentMeta("users", "bob", "r2")),
	))

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	job1, _ := batch.Add(CreateDocument("users", map[string]interface{}{"_key": "alice"}))
	job2, _ := batch.Add(UpdateDocument("users", "ghost", map[string]interface{}{"n": 1}))
	job3, _ := batch.Add(ReplaceDocument("users", "bob", map[string]interface{}{"n": 2}))

	// A per-entry failure does not fail the commit.
	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := job1.Result(); err != nil {
		t.Errorf("job1 should have succeeded: %v", err)
	}
	if _, err := job3.Result(); err != nil {
		t.Errorf("job3 should have succeeded: %v", err)
	}

	_, err := job2.Result()
	derr, ok := err.(*DatabaseError)
	if !ok {
		t.Fatalf("expected *DatabaseError for job2, got %T", err)
	}
	if derr.Code != "E_BATCH_OP_FAILED" || derr.ErrorNum != 1202 {
		t.Errorf("unexpected job2 error: code=%s errorNum=%d", derr.Code, derr.ErrorNum)
	}
	if !derr.IsNotFound() {
		t.Error("expected a not-found classification")
	}
}

func TestBatchRejectsUnknownKind(t *testing.T) {
	tr := mock.NewMockTransport()
	c := newTestClient(t, tr)
	batch := c.NewBatch()

	_, err := batch.Add(Operation{Kind: "truncate_collection", Collection: "users"})
	berr, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if berr.Code != "E_BATCH_UNSUPPORTED_OP" {
		t.Errorf("expected E_BATCH_UNSUPPORTED_OP, got %s", berr.Code)
	}
	if batch.Len() != 0 {
		t.Errorf("rejected operation must not be queued, len=%d", batch.Len())
	}
	if got := tr.GetSendCallCount(); got != 0 {
		t.Errorf("rejection must happen before any traffic, %d round trips", got)
	}
}

func TestBatchRejectsMalformedOperations(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
	}{
		{"create without collection", Operation{Kind: OpCreateDocument}},
		{"replace without key", Operation{Kind: OpReplaceDocument, Collection: "users"}},
		{"delete without key", Operation{Kind: OpDeleteDocument, Collection: "users"}},
		{"vertex without graph", Operation{Kind: OpCreateVertex, Collection: "people"}},
		{"edge without key", Operation{Kind: OpDeleteEdge, Graph: "social", Collection: "knows"}},
	}

	c := newTestClient(t, mock.NewMockTransport())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.NewBatch().Add(tt.op)
			berr, ok := err.(*BatchError)
			if !ok {
				t.Fatalf("expected *BatchError, got %T", err)
			}
			if berr.Code != "E_BATCH_MALFORMED_OP" {
				t.Errorf("expected E_BATCH_MALFORMED_OP, got %s", berr.Code)
			}
		})
	}
}

func TestBatchEmptyCommit(t *testing.T) {
	tr := mock.NewMockTransport()
	c := newTestClient(t, tr)
	batch := c.NewBatch()

	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("empty Commit failed: %v", err)
	}
	if got := tr.GetSendCallCount(); got != 0 {
		t.Errorf("empty batch must not talk to the server, %d round trips", got)
	}

	// The batch is still spent.
	if _, err := batch.Add(CreateDocument("users", nil)); !errors.As(err, new(*StateError)) {
		t.Errorf("expected a StateError adding to a committed batch, got %v", err)
	}
}

func TestBatchOneShot(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, testutil.BatchResponse(
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r1")),
	))

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	batch.Add(CreateDocument("users", map[string]interface{}{"_key": "alice"}))

	if err := batch.Commit(context.Background()); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	err := batch.Commit(context.Background())
	serr, ok := err.(*StateError)
	if !ok {
		t.Fatalf("expected *StateError on double commit, got %T", err)
	}
	if serr.Code != "E_BATCH_COMMITTED" {
		t.Errorf("expected E_BATCH_COMMITTED, got %s", serr.Code)
	}

	if _, err := batch.Add(DeleteDocument("users", "alice")); err == nil {
		t.Error("Add after commit must fail")
	}
	if got := tr.GetSendCallCount(); got != 1 {
		t.Errorf("expected 1 round trip, got %d", got)
	}
}

func TestBatchResultBeforeCommit(t *testing.T) {
	c := newTestClient(t, mock.NewMockTransport())
	batch := c.NewBatch()
	job, err := batch.Add(DeleteDocument("users", "alice"))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if job.Done() {
		t.Error("job must not be done before commit")
	}
	_, err = job.Result()
	serr, ok := err.(*StateError)
	if !ok {
		t.Fatalf("expected *StateError, got %T", err)
	}
	if serr.Code != "E_JOB_PENDING" {
		t.Errorf("expected E_JOB_PENDING, got %s", serr.Code)
	}
}

func TestBatchDispatchFailure(t *testing.T) {
	tr := mock.NewMockTransport() // empty script: the composite request fails

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	job, _ := batch.Add(CreateDocument("users", nil))

	err := batch.Commit(context.Background())
	berr, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if berr.Code != "E_BATCH_DISPATCH_FAILED" {
		t.Errorf("expected E_BATCH_DISPATCH_FAILED, got %s", berr.Code)
	}

	// No job was filled.
	if job.Done() {
		t.Error("job must stay pending after a dispatch failure")
	}
}

func TestBatchCompositeRejection(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(400, testutil.ErrorEnvelope(600, "invalid JSON object", 400))

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	batch.Add(CreateDocument("users", nil))

	err := batch.Commit(context.Background())
	berr, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if berr.Cause == nil {
		t.Error("composite rejection should carry the server error as cause")
	}
}

func TestBatchPartCountMismatch(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, testutil.BatchResponse(
		testutil.BatchPart(202, testutil.DocumentMeta("users", "alice", "r1")),
	))

	c := newTestClient(t, tr)
	batch := c.NewBatch()
	batch.Add(CreateDocument("users", nil))
	batch.Add(DeleteDocument("users", "bob"))

	err := batch.Commit(context.Background())
	berr, ok := err.(*BatchError)
	if !ok {
		t.Fatalf("expected *BatchError, got %T", err)
	}
	if berr.Code != "E_BATCH_DISPATCH_FAILED" {
		t.Errorf("expected E_BATCH_DISPATCH_FAILED, got %s", berr.Code)
	}
}

func TestBatchJobs(t *testing.T) {
	c := newTestClient(t, mock.NewMockTransport())
	batch := c.NewBatch()
	job1, _ := batch.Add(CreateDocument("users", nil))
	job2, _ := batch.Add(DeleteDocument("users", "bob"))

	jobs := batch.Jobs()
	if len(jobs) != 2 || jobs[0] != job1 || jobs[1] != job2 {
		t.Error("Jobs must return the placeholders in queueing order")
	}
	if job1.ID() == job2.ID() {
		t.Error("job identifiers must be distinct")
	}
	if job1.Kind() != OpCreateDocument || job2.Kind() != OpDeleteDocument {
		t.Error("job kinds must reflect the queued operations")
	}
}
