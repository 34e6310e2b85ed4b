package client

import (
	"context"
	"testing"

	"github.com/kestreldb/kestrel-go/testutil"
	"github.com/kestreldb/kestrel-go/transport/mock"
)

func TestCreateGraph(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(202, `{"error":false,"code":202}`)

	c := newTestClient(t, tr)
	err := c.CreateGraph(context.Background(), "social", []EdgeDefinition{
		{Collection: "knows", From: []string{"people"}, To: []string{"people"}},
	})
	if err != nil {
		t.Fatalf("CreateGraph failed: %v", err)
	}

	req := tr.RequestAt(0)
	if req.Method != "POST" || req.Path != "/_db/test/_api/gharial" {
		t.Errorf("unexpected request: %s %s", req.Method, req.Path)
	}
	body := req.Body.(map[string]interface{})
	if body["name"] != "social" || body["edgeDefinitions"] == nil {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestGraphs(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(200, `{"graphs":[{"name":"social","edgeDefinitions":[{"collection":"knows","from":["people"],"to":["people"]}]}]}`)

	c := newTestClient(t, tr)
	graphs, err := c.Graphs(context.Background())
	if err != nil {
		t.Fatalf("Graphs failed: %v", err)
	}
	if len(graphs) != 1 || graphs[0].Name != "social" {
		t.Errorf("unexpected result: %+v", graphs)
	}
	if len(graphs[0].EdgeDefinitions) != 1 || graphs[0].EdgeDefinitions[0].Collection != "knows" {
		t.Errorf("edge definitions not decoded: %+v", graphs[0])
	}
}

func TestDeleteGraph(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(202, `{"error":false,"code":202}`)

	c := newTestClient(t, tr)
	if err := c.DeleteGraph(context.Background(), "social"); err != nil {
		t.Fatalf("DeleteGraph failed: %v", err)
	}
	req := tr.RequestAt(0)
	if req.Method != "DELETE" || req.Path != "/_db/test/_api/gharial/social" {
		t.Errorf("unexpected request: %s %s", req.Method, req.Path)
	}
}

func TestCreateVertexDocument(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(202, `{"vertex":`+testutil.DocumentMeta("people", "carol", "r1")+`}`)

	c := newTestClient(t, tr)
	meta, err := c.CreateVertexDocument(context.Background(), "social", "people", map[string]interface{}{"_key": "carol"})
	if err != nil {
		t.Fatalf("CreateVertexDocument failed: %v", err)
	}
	if meta.Key != "carol" || meta.Rev != "r1" {
		t.Errorf("vertex envelope not unwrapped: %+v", meta)
	}

	req := tr.RequestAt(0)
	if req.Method != "POST" || req.Path != "/_db/test/_api/gharial/social/vertex/people" {
		t.Errorf("unexpected request: %s %s", req.Method, req.Path)
	}
}

func TestCreateEdgeDocument(t *testing.T) {
	tr := mock.NewMockTransport()
	tr.EnqueueJSON(202, `{"edge":`+testutil.DocumentMeta("knows", "e1", "r1")+`}`)

	c := newTestClient(t, tr)
	meta, err := c.CreateEdgeDocument(context.Background(), "social", "knows", map[string]interface{}{
		"_from": "people/carol",
		"_to":   "people/dave",
	})
	if err != nil {
		t.Fatalf("CreateEdgeDocument failed: %v", err)
	}
	if meta.Key != "e1" {
		t.Errorf("edge envelope not unwrapped: %+v", meta)
	}

	req := tr.RequestAt(0)
	if req.Path != "/_db/test/_api/gharial/social/edge/knows" {
		t.Errorf("unexpected path %s", req.Path)
	}
}

func TestVertexAndEdgeMutationPaths(t *testing.T) {
	tests := []struct {
		name   string
		call   func(*Client) error
		method string
		path   string
	}{
		{
			name: "replace vertex",
			call: func(c *Client) error {
				_, err := c.ReplaceVertexDocument(context.Background(), "social", "people", "carol", map[string]interface{}{"n": 1})
				return err
			},
			method: "PUT",
			path:   "/_db/test/_api/gharial/social/vertex/people/carol",
		},
		{
			name: "update vertex",
			call: func(c *Client) error {
				_, err := c.UpdateVertexDocument(context.Background(), "social", "people", "carol", map[string]interface{}{"n": 2})
				return err
			},
			method: "PATCH",
			path:   "/_db/test/_api/gharial/social/vertex/people/carol",
		},
		{
			name: "delete vertex",
			call: func(c *Client) error {
				return c.DeleteVertexDocument(context.Background(), "social", "people", "carol")
			},
			method: "DELETE",
			path:   "/_db/test/_api/gharial/social/vertex/people/carol",
		},
		{
			name: "replace edge",
			call: func(c *Client) error {
				_, err := c.ReplaceEdgeDocument(context.Background(), "social", "knows", "e1", map[string]interface{}{"n": 3})
				return err
			},
			method: "PUT",
			path:   "/_db/test/_api/gharial/social/edge/knows/e1",
		},
		{
			name: "update edge",
			call: func(c *Client) error {
				_, err := c.UpdateEdgeDocument(context.Background(), "social", "knows", "e1", map[string]interface{}{"n": 4})
				return err
			},
			method: "PATCH",
			path:   "/_db/test/_api/gharial/social/edge/knows/e1",
		},
		{
			name: "delete edge",
			call: func(c *Client) error {
				return c.DeleteEdgeDocument(context.Background(), "social", "knows", "e1")
			},
			method: "DELETE",
			path:   "/_db/test/_api/gharial/social/edge/knows/e1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := mock.NewMockTransport()
			tr.EnqueueJSON(202, `{"vertex":`+testutil.DocumentMeta("people", "carol", "r2")+`}`)

			c := newTestClient(t, tr)
			if err := tt.call(c); err != nil {
				t.Fatalf("call failed: %v", err)
			}
			req := tr.RequestAt(0)
			if req.Method != tt.method || req.Path != tt.path {
				t.Errorf("got %s %s, want %s %s", req.Method, req.Path, tt.method, tt.path)
			}
		})
	}
}
