// Package store defines the document store handle used by export and import.
//
// A store holds documents addressed by slash-delimited paths whose segments alternate
// collection name and document id, for example "users/u1/orders/o1".
package store

import (
	"context"

	"github.com/percona/percona-doctree-migrate/errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// Data is the field contents of one document. Values are opaque to this module.
type Data = map[string]any

// Document is a document listed from a collection.
type Document struct {
	ID   string
	Data Data
}

// Store is a connection to one document database instance.
type Store interface {
	// ListDocuments returns all documents directly under the collection path.
	ListDocuments(ctx context.Context, collection string) ([]Document, error)
	// GetDocument returns the contents of the document at path or [ErrNotFound].
	GetDocument(ctx context.Context, path string) (Data, error)
	// ListCollections returns the names of sub-collections nested under the document path.
	ListCollections(ctx context.Context, document string) ([]string, error)
	// NewBatch creates an empty atomic write batch.
	NewBatch() Batch
	// Close releases the connection.
	Close(ctx context.Context) error
}

// Batch is a set of writes committed as one atomic unit.
type Batch interface {
	// Set fully overwrites (or creates) the document at path.
	Set(path string, data Data)
	// Len returns the number of queued writes.
	Len() int
	// Commit applies every queued write or none of them.
	Commit(ctx context.Context) error
}
