package client

import (
	"context"
	"testing"

	"github.com/kestreldb/kestrel-go/transport/mock"
)

func TestEnsureIndex(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(201, `{"id":"users/456","type":"persistent","fields":["email"],"unique":true,"sparse":false}`)

	c := newTestClient(t, tr)
	info, err := c.EnsureIndex(context.Background(), "users", EnsureIndexOptions{
		Type:   "persistent",
		Fields: []string{"email"},
		Unique: true,
	})
	if err != nil {
		t.Fatalf("EnsureIndex failed: %v", err)
	}
	if info.ID != "users/456" || !info.Unique {
		t.Errorf("unexpected info: %+v", info)
	}

	req := tr.RequestAt(0)
	if req.Method != "POST" || req.Path != "/_db/test/_api/index" {
		t.Errorf("unexpected request: %s %s", req.Method, req.Path)
	}
	if req.Params["collection"] != "users" {
		t.Errorf("unexpected params: %v", req.Params)
	}
	body := req.Body.(map[string]interface{})
	if body["type"] != "persistent" || body["unique"] != true {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestIndexes(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"indexes":[{"id":"users/0","type":"primary","fields":["_key"]},{"id":"users/456","type":"persistent","fields":["email"]}]}`)

	c := newTestClient(t, tr)
	indexes, err := c.Indexes(context.Background(), "users")
	if err != nil {
		t.Fatalf("Indexes failed: %v", err)
	}
	if len(indexes) != 2 || indexes[1].Type != "persistent" {
		t.Errorf("unexpected result: %+v", indexes)
	}
	if req := tr.RequestAt(0); req.Params["collection"] != "users" {
		t.Errorf("unexpected params: %v", req.Params)
	}
}

func TestDeleteIndex(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"error":false,"code":200,"id":"users/456"}`)

	c := newTestClient(t, tr)
	if err := c.DeleteIndex(context.Background(), "users/456"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	req := tr.RequestAt(0)
	if req.Method != "DELETE" || req.Path != "/_db/test/_api/index/users/456" {
		t.Errorf("unexpected request: %s %s", req.Method, req.Path)
	}
}
