package output

import (
	"context"

	"lerngruppe/pkg/document"
)

// DocumentStore is the consumed document store: a network service holding
// collections of schemaless documents addressed by store-assigned row keys.
type DocumentStore interface {
	// Create writes a new document and returns its row key.
	Create(ctx context.Context, collection string, fields document.Fields) (string, error)
	// List returns every document of the collection in store order.
	List(ctx context.Context, collection string) ([]document.Document, error)
	// Delete removes the document with the given row key. A missing key is
	// not an error.
	Delete(ctx context.Context, collection, key string) error
	// Watch invokes fn with the full collection once established and again
	// after every change, until the returned stop function is called or ctx
	// is done. fn runs on a store-owned goroutine, never from Watch itself,
	// and calls are serialized. A feed failure is reported as fn(nil, err)
	// and ends the watch. stop is idempotent and does not wait for an
	// in-flight fn.
	Watch(ctx context.Context, collection string, fn func([]document.Document, error)) (stop func(), err error)
}
