// Package docstore is a small collection-oriented document store: JSON
// documents addressed by (collection, id), equality queries and optimistic
// atomic transactions. The storefront keeps products and orders in it.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("document not found")

	// ErrTxConflict is returned by RunTransaction after the retry budget
	// for commit-time write conflicts is exhausted.
	ErrTxConflict = errors.New("transaction conflict: retries exhausted")
)

// maxTxAttempts bounds the optimistic retry loop of RunTransaction.
const maxTxAttempts = 5

type Document struct {
	ID   string
	Data json.RawMessage
}

func (d Document) DataTo(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Where is a single field-equality predicate. Multiple predicates AND.
type Where struct {
	Field string
	Value any
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	Query(ctx context.Context, collection string, where ...Where) ([]Document, error)
	Add(ctx context.Context, collection string, v any) (string, error)
	Update(ctx context.Context, collection, id string, v any) error

	// RunTransaction runs fn atomically. All reads made through the Tx see a
	// consistent snapshot; writes are applied all-or-nothing at commit. On a
	// commit-time conflict fn is re-invoked with fresh state, up to
	// maxTxAttempts times, then ErrTxConflict is returned. An error returned
	// by fn aborts immediately without retrying and is returned as-is.
	RunTransaction(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the handle passed to a RunTransaction callback.
type Tx interface {
	Get(collection, id string) (Document, error)
	Update(collection, id string, v any) error
}
