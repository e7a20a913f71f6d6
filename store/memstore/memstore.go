// Package memstore is an in-process [store.Store] keeping documents in a map.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/store"
)

// ErrBatchTooLarge is returned when a batch exceeds the configured operation limit.
var ErrBatchTooLarge = errors.New("batch exceeds the maximum number of writes")

// Option configures a [Store].
type Option func(*Store)

// WithMaxBatchOps limits the number of writes a single batch may commit. Zero means no limit.
func WithMaxBatchOps(n int) Option {
	return func(s *Store) {
		s.maxBatchOps = n
	}
}

// Store is a [store.Store] backed by memory. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]store.Data

	maxBatchOps int
	commits     int
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{docs: make(map[string]store.Data)}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Put writes a document outside of a batch.
func (s *Store) Put(path string, data store.Data) error {
	err := store.ValidateDocumentPath(path)
	if err != nil {
		return err //nolint:wrapcheck
	}

	s.mu.Lock()
	s.docs[path] = deepCopy(data)
	s.mu.Unlock()

	return nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.docs)
}

// Commits returns the number of successfully committed batches.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.commits
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	err = store.ValidateCollectionPath(collection)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	prefix := collection + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []store.Document

	for _, path := range slices.Sorted(maps.Keys(s.docs)) {
		id, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(id, "/") {
			continue
		}

		docs = append(docs, store.Document{ID: id, Data: deepCopy(s.docs[path])})
	}

	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, path string) (store.Data, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	err = store.ValidateDocumentPath(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[path]
	if !ok {
		return nil, errors.Wrap(store.ErrNotFound, path)
	}

	return deepCopy(data), nil
}

// ListCollections returns the sub-collections of document. As in Firestore, the document
// itself does not need to exist.
func (s *Store) ListCollections(ctx context.Context, document string) ([]string, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	err = store.ValidateDocumentPath(document)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	prefix := document + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})

	for path := range s.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}

		name, _, _ := strings.Cut(rest, "/")
		seen[name] = struct{}{}
	}

	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *Store) NewBatch() store.Batch { //nolint:ireturn
	return &batch{s: s}
}

func (s *Store) Close(context.Context) error {
	return nil
}

type write struct {
	path string
	data store.Data
}

type batch struct {
	s      *Store
	writes []write
}

func (b *batch) Set(path string, data store.Data) {
	b.writes = append(b.writes, write{path: path, data: deepCopy(data)})
}

func (b *batch) Len() int {
	return len(b.writes)
}

func (b *batch) Commit(ctx context.Context) error {
	err := ctx.Err()
	if err != nil {
		return err //nolint:wrapcheck
	}

	if b.s.maxBatchOps > 0 && len(b.writes) > b.s.maxBatchOps {
		return errors.Wrapf(ErrBatchTooLarge, "%d > %d", len(b.writes), b.s.maxBatchOps)
	}

	for _, w := range b.writes {
		err := store.ValidateDocumentPath(w.path)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}

	b.s.mu.Lock()
	defer b.s.mu.Unlock()

	for _, w := range b.writes {
		b.s.docs[w.path] = w.data
	}

	b.s.commits++

	return nil
}

func deepCopy(data store.Data) store.Data {
	if data == nil {
		return store.Data{}
	}

	rv := make(store.Data, len(data))
	for k, v := range data {
		rv[k] = copyValue(v)
	}

	return rv
}

func copyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return deepCopy(v)
	case []any:
		rv := make([]any, len(v))
		for i, e := range v {
			rv[i] = copyValue(e)
		}

		return rv
	case []byte:
		return slices.Clone(v)
	default:
		return v
	}
}
