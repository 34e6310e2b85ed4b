package client

import (
	"context"
	"errors"
	"time"

	"github.com/kestreldb/kestrel-go/protocol"
)

// Transaction describes one server-side transaction: an opaque procedure
// body executed atomically against a declared set of collections. The
// procedure body is forwarded verbatim; the driver neither parses nor
// validates it. Stateless: one Transaction value is one call.
type Transaction struct {
	// Action is the procedure body executed by the server.
	Action string

	// ReadCollections and WriteCollections declare the collection-level
	// access the procedure needs. Access outside the declared sets is
	// rejected by the server.
	ReadCollections  []string
	WriteCollections []string

	// Params are bind parameters passed to the procedure.
	Params interface{}

	// WaitForSync makes the call return only after the transaction has been
	// synced to disk.
	WaitForSync bool

	// LockTimeout bounds the wait for collection locks. Nil uses the server
	// default; zero waits without timeout.
	LockTimeout *int
}

// ErrEmptyTransaction creates an error for a transaction with no procedure body.
func ErrEmptyTransaction() *TransactionError {
	return &TransactionError{
		Code:       "E_TX_EMPTY_ACTION",
		Type:       "TRANSACTION_ERROR",
		Message:    "transaction has no procedure body",
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ExecuteTransaction runs the transaction in a single synchronous call and
// returns the procedure's return value. Atomicity across the declared
// collections is entirely the server's responsibility; the driver marshals
// the parameters faithfully and propagates the single result or error.
// Nothing is retried locally, including lock-timeout expiry.
func (c *Client) ExecuteTransaction(ctx context.Context, tx *Transaction) (interface{}, error) {
	if tx == nil || tx.Action == "" {
		return nil, ErrEmptyTransaction()
	}

	collections := map[string]interface{}{}
	if tx.ReadCollections != nil {
		collections["read"] = tx.ReadCollections
	}
	if tx.WriteCollections != nil {
		collections["write"] = tx.WriteCollections
	}

	body := map[string]interface{}{
		"collections": collections,
		"action":      tx.Action,
		"waitForSync": tx.WaitForSync,
	}
	if tx.Params != nil {
		body["params"] = tx.Params
	}
	if tx.LockTimeout != nil {
		body["lockTimeout"] = *tx.LockTimeout
	}

	_, payload, err := c.conn.post(ctx, "/transaction", nil, body)
	if err != nil {
		var serr *protocol.ServerError
		if errors.As(err, &serr) {
			return nil, &TransactionError{
				Code:       "E_TX_FAILED",
				Type:       "TRANSACTION_ERROR",
				Message:    serr.Message,
				ErrorNum:   serr.ErrorNum,
				StatusCode: serr.StatusCode,
				Cause:      serr,
				StackTrace: captureStackTrace(),
				Timestamp:  time.Now(),
			}
		}
		return nil, err
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		return obj["result"], nil
	}
	return payload, nil
}
