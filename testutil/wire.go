// Package testutil provides wire-shape factories shared by package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kestreldb/kestrel-go/transport"
)

// Response builds a transport response with the given status and JSON body.
// The body is decoded the same way the REST transport decodes it.
func Response(statusCode int, body string) *transport.Response {
	res := &transport.Response{
		StatusCode: statusCode,
		Raw:        []byte(body),
	}
	if len(body) > 0 {
		var decoded interface{}
		if err := json.Unmarshal([]byte(body), &decoded); err == nil {
			res.Body = decoded
		}
	}
	return res
}

// ErrorEnvelope builds a server error envelope body.
func ErrorEnvelope(errorNum int, message string, statusCode int) string {
	return fmt.Sprintf(
		`{"error":true,"errorNum":%d,"errorMessage":%q,"code":%d}`,
		errorNum, message, statusCode,
	)
}

// CursorPage builds a create-cursor or fetch-next response body. Each doc is
// a JSON value. The cursor id is included only when given, mirroring the
// server behavior of carrying an id only while more pages remain.
func CursorPage(docs []string, hasMore bool, id string) string {
	var b strings.Builder
	b.WriteString(`{"result":[`)
	b.WriteString(strings.Join(docs, ","))
	b.WriteString(`],"hasMore":`)
	if hasMore {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
	if id != "" {
		b.WriteString(`,"id":"` + id + `"`)
	}
	b.WriteString("}")
	return b.String()
}

// Docs builds n numbered documents {"_key":"k<i>","value":<i>} starting at
// the given offset.
func Docs(offset, n int) []string {
	docs := make([]string, n)
	for i := 0; i < n; i++ {
		docs[i] = fmt.Sprintf(`{"_key":"k%d","value":%d}`, offset+i, offset+i)
	}
	return docs
}

// BatchPart builds one element of a composite batch response body.
func BatchPart(status int, body string) string {
	if body == "" {
		return fmt.Sprintf(`{"status":%d}`, status)
	}
	return fmt.Sprintf(`{"status":%d,"body":%s}`, status, body)
}

// BatchResponse joins parts into a composite batch response body.
func BatchResponse(parts ...string) string {
	return "[" + strings.Join(parts, ",") + "]"
}

// DocumentMeta builds the metadata payload of a successful mutation.
func DocumentMeta(collection, key, rev string) string {
	return fmt.Sprintf(`{"_id":"%s/%s","_key":%q,"_rev":%q}`, collection, key, key, rev)
}
