package client

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kestreldb/kestrel-go/protocol"
)

// EdgeDefinition declares which vertex collections an edge collection connects.
type EdgeDefinition struct {
	Collection string   `json:"collection"`
	From       []string `json:"from"`
	To         []string `json:"to"`
}

// GraphInfo describes a named graph.
type GraphInfo struct {
	Name            string           `json:"name"`
	EdgeDefinitions []EdgeDefinition `json:"edgeDefinitions"`
}

// Request builders for vertex and edge CRUD, shared with the batch executor.

func buildCreateVertex(graph, collection string, doc interface{}) apiRequest {
	return apiRequest{
		method: "POST",
		path:   "/gharial/" + graph + "/vertex/" + collection,
		body:   doc,
	}
}

func buildReplaceVertex(graph, collection, key string, doc interface{}) apiRequest {
	return apiRequest{
		method: "PUT",
		path:   "/gharial/" + graph + "/vertex/" + collection + "/" + key,
		body:   doc,
	}
}

func buildUpdateVertex(graph, collection, key string, patch interface{}) apiRequest {
	return apiRequest{
		method: "PATCH",
		path:   "/gharial/" + graph + "/vertex/" + collection + "/" + key,
		body:   patch,
	}
}

func buildDeleteVertex(graph, collection, key string) apiRequest {
	return apiRequest{
		method: "DELETE",
		path:   "/gharial/" + graph + "/vertex/" + collection + "/" + key,
	}
}

func buildCreateEdge(graph, collection string, doc interface{}) apiRequest {
	return apiRequest{
		method: "POST",
		path:   "/gharial/" + graph + "/edge/" + collection,
		body:   doc,
	}
}

func buildReplaceEdge(graph, collection, key string, doc interface{}) apiRequest {
	return apiRequest{
		method: "PUT",
		path:   "/gharial/" + graph + "/edge/" + collection + "/" + key,
		body:   doc,
	}
}

func buildUpdateEdge(graph, collection, key string, patch interface{}) apiRequest {
	return apiRequest{
		method: "PATCH",
		path:   "/gharial/" + graph + "/edge/" + collection + "/" + key,
		body:   patch,
	}
}

func buildDeleteEdge(graph, collection, key string) apiRequest {
	return apiRequest{
		method: "DELETE",
		path:   "/gharial/" + graph + "/edge/" + collection + "/" + key,
	}
}

// CreateGraph creates a named graph with the given edge definitions.
func (c *Client) CreateGraph(ctx context.Context, name string, edgeDefinitions []EdgeDefinition) error {
	body := map[string]interface{}{"name": name}
	if len(edgeDefinitions) > 0 {
		body["edgeDefinitions"] = edgeDefinitions
	}
	_, _, err := c.conn.post(ctx, "/gharial", nil, body)
	return wrapServerError(err, "E_GRAPH_CREATE_FAILED")
}

// Graphs lists the graphs in the database.
func (c *Client) Graphs(ctx context.Context) ([]GraphInfo, error) {
	res, _, err := c.conn.get(ctx, "/gharial", nil)
	if err != nil {
		return nil, wrapServerError(err, "E_GRAPH_LIST_FAILED")
	}

	var decoded struct {
		Graphs []GraphInfo `json:"graphs"`
	}
	if err := json.Unmarshal(res.Raw, &decoded); err != nil {
		return nil, protocol.BadResponseError("graph list response was unparsable", res.StatusCode)
	}
	return decoded.Graphs, nil
}

// DeleteGraph removes a named graph. The underlying collections are kept.
func (c *Client) DeleteGraph(ctx context.Context, name string) error {
	_, _, err := c.conn.delete(ctx, "/gharial/"+name, nil)
	return wrapServerError(err, "E_GRAPH_DELETE_FAILED")
}

// vertexMeta decodes the envelope the server wraps around vertex and edge
// mutation metadata.
type vertexMeta struct {
	Vertex *DocumentMeta `json:"vertex"`
	Edge   *DocumentMeta `json:"edge"`
}

func (c *Client) dispatchGraph(ctx context.Context, req apiRequest, failCode string) (*DocumentMeta, error) {
	res, _, err := c.conn.request(ctx, req.method, req.path, req.params, req.body, nil)
	if err != nil {
		return nil, wrapServerError(err, failCode)
	}

	var meta vertexMeta
	if err := json.Unmarshal(res.Raw, &meta); err != nil {
		return nil, protocol.BadResponseError("graph mutation response was unparsable", res.StatusCode)
	}
	if meta.Vertex != nil {
		return meta.Vertex, nil
	}
	if meta.Edge != nil {
		return meta.Edge, nil
	}
	return &DocumentMeta{}, nil
}

// CreateVertexDocument adds a vertex to a graph's vertex collection.
func (c *Client) CreateVertexDocument(ctx context.Context, graph, collection string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildCreateVertex(graph, collection, doc), "E_VERTEX_CREATE_FAILED")
}

// ReplaceVertexDocument replaces a vertex body wholesale.
func (c *Client) ReplaceVertexDocument(ctx context.Context, graph, collection, key string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildReplaceVertex(graph, collection, key, doc), "E_VERTEX_REPLACE_FAILED")
}

// UpdateVertexDocument partially updates a vertex.
func (c *Client) UpdateVertexDocument(ctx context.Context, graph, collection, key string, patch interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildUpdateVertex(graph, collection, key, patch), "E_VERTEX_UPDATE_FAILED")
}

// DeleteVertexDocument removes a vertex.
func (c *Client) DeleteVertexDocument(ctx context.Context, graph, collection, key string) error {
	_, _, err := c.conn.delete(ctx, "/gharial/"+graph+"/vertex/"+collection+"/"+key, nil)
	return wrapServerError(err, "E_VERTEX_DELETE_FAILED")
}

// CreateEdgeDocument adds an edge to a graph's edge collection. The document
// must carry _from and _to with valid vertex handles.
func (c *Client) CreateEdgeDocument(ctx context.Context, graph, collection string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildCreateEdge(graph, collection, doc), "E_EDGE_CREATE_FAILED")
}

// ReplaceEdgeDocument replaces an edge body wholesale.
func (c *Client) ReplaceEdgeDocument(ctx context.Context, graph, collection, key string, doc interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildReplaceEdge(graph, collection, key, doc), "E_EDGE_REPLACE_FAILED")
}

// UpdateEdgeDocument partially updates an edge.
func (c *Client) UpdateEdgeDocument(ctx context.Context, graph, collection, key string, patch interface{}) (*DocumentMeta, error) {
	return c.dispatchGraph(ctx, buildUpdateEdge(graph, collection, key, patch), "E_EDGE_UPDATE_FAILED")
}

// DeleteEdgeDocument removes an edge.
func (c *Client) DeleteEdgeDocument(ctx context.Context, graph, collection, key string) error {
	_, _, err := c.conn.delete(ctx, "/gharial/"+graph+"/edge/"+collection+"/"+key, nil)
	return wrapServerError(err, "E_EDGE_DELETE_FAILED")
}

// wrapServerError converts a server error envelope into a DatabaseError with
// the given code, passing transport failures through untouched.
func wrapServerError(err error, code string) error {
	if err == nil {
		return nil
	}
	var serr *protocol.ServerError
	if errors.As(err, &serr) {
		return databaseError(code, serr)
	}
	return err
}
