package client

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
)

// cursorState tracks the cursor lifecycle:
// Open -> (fetching) -> Exhausted -> Closed, with Closed reachable from any
// state via Close. There is no transition out of Closed.
type cursorState int

const (
	cursorOpen cursorState = iota
	cursorExhausted
	cursorClosed
)

// cursorPage mirrors the wire shape of a create-cursor or fetch-next response.
type cursorPage struct {
	Result  []json.RawMessage `json:"result"`
	HasMore bool              `json:"hasMore"`
	ID      string            `json:"id"`
	Count   int64             `json:"count"`
}

// Cursor presents a forward-only, lazily-fetched sequence of result
// documents backed by a possibly multi-page server-side result set. It is not
// restartable; a new query must be issued to iterate again.
//
// A Cursor is exclusively owned by its creator. Concurrent use from multiple
// goroutines must be serialized by the caller.
type Cursor struct {
	conn    *Connection
	id      string // server cursor identifier, "" when the first page was the only one
	page    []json.RawMessage
	pos     int
	hasMore bool
	count   int64
	state   cursorState
	current json.RawMessage
	err     error
}

func newCursor(conn *Connection, page *cursorPage, closeOnAbandon bool) *Cursor {
	c := &Cursor{
		conn:    conn,
		id:      page.ID,
		page:    page.Result,
		hasMore: page.HasMore,
		count:   page.Count,
		state:   cursorOpen,
	}
	// A server-side cursor only exists when more pages remain. Abandoned
	// cursors either get a best-effort delete from the finalizer or expire
	// via the server TTL, depending on configuration.
	if closeOnAbandon && c.id != "" {
		runtime.SetFinalizer(c, finalizeCursor)
	}
	return c
}

func finalizeCursor(c *Cursor) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Close(ctx)
	}()
}

// Next advances the cursor to the next document, fetching the next page from
// the server when the current one is exhausted. It returns false when no
// further documents are available or an error occurred; Err distinguishes
// the two. Once hasMore is false no further fetch request is ever issued,
// and once a fetch has failed the cursor stops: no retry is attempted.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.state != cursorOpen || c.err != nil {
		return false
	}

	// The server may deliver an empty page while still reporting more.
	for c.pos >= len(c.page) {
		if !c.hasMore {
			c.state = cursorExhausted
			return false
		}
		if err := c.fetchNext(ctx); err != nil {
			c.err = err
			return false
		}
	}

	c.current = c.page[c.pos]
	c.pos++
	return true
}

// fetchNext replaces the current page using the stored cursor identifier.
func (c *Cursor) fetchNext(ctx context.Context) error {
	res, _, err := c.conn.put(ctx, "/cursor/"+c.id, nil, nil)
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) && serr.ErrorNum == protocol.ErrNumCursorNotFound {
			// Expired server-side. Terminal: the server state is gone, so
			// there is nothing left to delete either.
			c.state = cursorClosed
			runtime.SetFinalizer(c, nil)
			return &CursorError{
				DatabaseError: *databaseError("E_CURSOR_EXPIRED", serr),
				CursorID:      c.id,
			}
		}
		if errors.As(err, &serr) {
			return databaseError("E_CURSOR_FETCH_FAILED", serr)
		}
		return err
	}

	var page cursorPage
	if err := json.Unmarshal(res.Raw, &page); err != nil {
		return protocol.BadResponseError("cursor fetch returned an unparsable page", res.StatusCode)
	}

	c.page = page.Result
	c.pos = 0
	c.hasMore = page.HasMore
	return nil
}

// Document returns the document the cursor currently points to. Only valid
// after a Next call that returned true.
func (c *Cursor) Document() json.RawMessage {
	return c.current
}

// Decode unmarshals the current document into v.
func (c *Cursor) Decode(v interface{}) error {
	if c.current == nil {
		return ErrCursorClosed()
	}
	return json.Unmarshal(c.current, v)
}

// Err returns the error that terminated iteration, if any.
func (c *Cursor) Err() error {
	return c.err
}

// Count returns the full result count when the query was executed with the
// count option, zero otherwise.
func (c *Cursor) Count() int64 {
	return c.count
}

// HasMore returns whether another Next call may yield a document.
func (c *Cursor) HasMore() bool {
	return c.state == cursorOpen && (c.pos < len(c.page) || c.hasMore)
}

// ID returns the server-side cursor identifier, or "" when the result set
// fit in a single page.
func (c *Cursor) ID() string {
	return c.id
}

// Close releases the server-side cursor. It is idempotent and never fails:
// errors from the delete call are swallowed because server-side cursors
// expire on their own via TTL. After natural exhaustion the server has
// already dropped the cursor, so no delete request is issued.
func (c *Cursor) Close(ctx context.Context) error {
	runtime.SetFinalizer(c, nil)

	switch c.state {
	case cursorClosed:
		return nil
	case cursorExhausted:
		c.state = cursorClosed
		return nil
	}

	if c.id != "" && c.hasMore {
		res, err := c.conn.send(ctx, "DELETE", "/cursor/"+c.id, nil, nil, nil)
		switch {
		case err != nil:
			c.conn.logger.Warn("cursor delete failed",
				String("cursor_id", c.id),
				Error("error", err))
		case res.StatusCode >= 300 && res.StatusCode != 404:
			// 404 means the cursor already expired, which is fine.
			c.conn.logger.Warn("cursor delete rejected",
				String("cursor_id", c.id),
				Int("status", res.StatusCode))
		}
	}

	c.state = cursorClosed
	return nil
}

// All consumes the remaining documents into results, which must be a pointer
// to a slice, and closes the cursor.
func (c *Cursor) All(ctx context.Context, results interface{}) error {
	defer c.Close(ctx)

	docs := make([]json.RawMessage, 0, len(c.page))
	for c.Next(ctx) {
		docs = append(docs, c.Document())
	}
	if c.err != nil {
		return c.err
	}

	joined, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	return json.Unmarshal(joined, results)
}
