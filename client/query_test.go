package client

import (
	"context"
	"testing"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
	"github.com/kestreldb/kestrel-go/testutil"
	"github.com/kestreldb/kestrel-go/transport/mock"
)

func TestQuerySendsOptions(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(201, testutil.CursorPage(testutil.Docs(0, 1), false, ""))

	c := newTestClient(t, tr)
	_, err := c.Query(context.Background(), "FOR d IN docs FILTER d.v == @v RETURN d", &QueryOptions{
		Count:     true,
		BatchSize: 100,
		TTL:       30 * time.Second,
		BindVars:  map[string]interface{}{"v": 7},
		FullCount: true,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	req := tr.RequestAt(0)
	body, ok := req.Body.(map[string]interface{})
	if !ok {
		t.Fatalf("expected a map body, got %T", req.Body)
	}
	if body["count"] != true || body["batchSize"] != 100 || body["ttl"] != 30 {
		t.Errorf("unexpected body: %v", body)
	}
	bindVars, ok := body["bindVars"].(map[string]interface{})
	if !ok || bindVars["v"] != 7 {
		t.Errorf("bind vars not forwarded: %v", body["bindVars"])
	}
	options, ok := body["options"].(map[string]interface{})
	if !ok || options["fullCount"] != true {
		t.Errorf("options not forwarded: %v", body["options"])
	}
}

func TestQueryDefaultBatchSize(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(201, testutil.CursorPage(testutil.Docs(0, 1), false, ""))

	c := newTestClientOpts(t, tr, ClientOptions{CursorBatchSize: 250})
	if _, err := c.Query(context.Background(), "FOR d IN docs RETURN d", nil); err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	body := tr.RequestAt(0).Body.(map[string]interface{})
	if body["batchSize"] != 250 {
		t.Errorf("expected client default batch size 250, got %v", body["batchSize"])
	}
}

func TestQueryServerError(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(400, testutil.ErrorEnvelope(protocol.ErrNumQueryParse, "syntax error near 'RETRUN'", 400))

	c := newTestClient(t, tr)
	query := "FOR d IN docs RETRUN d"
	_, err := c.Query(context.Background(), query, &QueryOptions{
		BindVars: map[string]interface{}{"v": 1},
	})

	qerr, ok := err.(*QueryError)
	if !ok {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qerr.Code != "E_QUERY_EXECUTE_FAILED" {
		t.Errorf("expected E_QUERY_EXECUTE_FAILED, got %s", qerr.Code)
	}
	if qerr.ErrorNum != protocol.ErrNumQueryParse {
		t.Errorf("expected errorNum %d, got %d", protocol.ErrNumQueryParse, qerr.ErrorNum)
	}
	if qerr.Query != query {
		t.Errorf("query text not preserved: %q", qerr.Query)
	}
	if qerr.BindVars["v"] != 1 {
		t.Errorf("bind vars not preserved: %v", qerr.BindVars)
	}
}

func TestExplain(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"plan":{"nodes":[],"estimatedCost":4},"warnings":[]}`)

	c := newTestClient(t, tr)
	plan, err := c.Explain(context.Background(), "FOR d IN docs RETURN d", false)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}

	obj, ok := plan.(map[string]interface{})
	if !ok || obj["estimatedCost"] != float64(4) {
		t.Errorf("unexpected plan: %v", plan)
	}

	req := tr.RequestAt(0)
	if req.Path != "/_db/test/_api/explain" {
		t.Errorf("unexpected path %s", req.Path)
	}
}

func TestValidateCachesFingerprint(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"error":false,"code":200,"parsed":true}`)

	c := newTestClient(t, tr)
	query := "FOR d IN docs RETURN d"
	ctx := context.Background()

	if err := c.Validate(ctx, query); err != nil {
		t.Fatalf("first Validate failed: %v", err)
	}
	// Second validation of the same text is served from the cache.
	if err := c.Validate(ctx, query); err != nil {
		t.Fatalf("second Validate failed: %v", err)
	}
	if got := tr.GetSendCallCount(); got != 1 {
		t.Errorf("expected 1 round trip for a cached query, got %d", got)
	}

	stats := c.ValidationCacheStats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 {
		t.Errorf("unexpected cache stats: %+v", stats)
	}
}

func TestValidateRejectedNotCached(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(400, testutil.ErrorEnvelope(protocol.ErrNumQueryParse, "syntax error", 400))
	tr.EnqueueJSON(400, testutil.ErrorEnvelope(protocol.ErrNumQueryParse, "syntax error", 400))

	c := newTestClient(t, tr)
	query := "FOR d IN"
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := c.Validate(ctx, query)
		qerr, ok := err.(*QueryError)
		if !ok {
			t.Fatalf("expected *QueryError, got %T", err)
		}
		if qerr.Code != "E_QUERY_INVALID" {
			t.Errorf("expected E_QUERY_INVALID, got %s", qerr.Code)
		}
	}
	// Rejections are never cached.
	if got := tr.GetSendCallCount(); got != 2 {
		t.Errorf("expected 2 round trips, got %d", got)
	}
}

func TestValidateCacheDisabled(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"error":false,"code":200,"parsed":true}`)
	tr.EnqueueJSON(200, `{"error":false,"code":200,"parsed":true}`)

	c := newTestClientOpts(t, tr, ClientOptions{QueryValidationCacheSize: -1})
	ctx := context.Background()

	c.Validate(ctx, "FOR d IN docs RETURN d")
	c.Validate(ctx, "FOR d IN docs RETURN d")
	if got := tr.GetSendCallCount(); got != 2 {
		t.Errorf("a disabled cache must validate every call, got %d round trips", got)
	}
}
