package migrate_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/store/memstore"
)

// hookStore wraps a memstore and injects failures through per-call hooks.
type hookStore struct {
	*memstore.Store

	onListDocuments   func(collection string) error
	onListCollections func(document string) error
	onCommit          func(attempt int, paths []string) error

	listDocumentsCalls   atomic.Int32
	listCollectionsCalls atomic.Int32

	mu             sync.Mutex
	commitAttempts int
}

func newHookStore(t *testing.T, docs map[string]store.Data) *hookStore {
	t.Helper()

	s := &hookStore{Store: memstore.New()}
	for path, data := range docs {
		require.NoError(t, s.Put(path, data))
	}

	return s
}

func (s *hookStore) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	s.listDocumentsCalls.Add(1)

	if s.onListDocuments != nil {
		err := s.onListDocuments(collection)
		if err != nil {
			return nil, err
		}
	}

	return s.Store.ListDocuments(ctx, collection) //nolint:wrapcheck
}

func (s *hookStore) ListCollections(ctx context.Context, document string) ([]string, error) {
	s.listCollectionsCalls.Add(1)

	if s.onListCollections != nil {
		err := s.onListCollections(document)
		if err != nil {
			return nil, err
		}
	}

	return s.Store.ListCollections(ctx, document) //nolint:wrapcheck
}

func (s *hookStore) NewBatch() store.Batch { //nolint:ireturn
	return &hookBatch{Batch: s.Store.NewBatch(), s: s}
}

func (s *hookStore) CommitAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commitAttempts
}

type hookBatch struct {
	store.Batch

	s     *hookStore
	paths []string
}

func (b *hookBatch) Set(path string, data store.Data) {
	b.paths = append(b.paths, path)
	b.Batch.Set(path, data)
}

func (b *hookBatch) Commit(ctx context.Context) error {
	b.s.mu.Lock()
	b.s.commitAttempts++
	attempt := b.s.commitAttempts
	b.s.mu.Unlock()

	if b.s.onCommit != nil {
		err := b.s.onCommit(attempt, b.paths)
		if err != nil {
			return err
		}
	}

	return b.Batch.Commit(ctx) //nolint:wrapcheck
}

// dupStore lists every document of a collection twice.
type dupStore struct {
	*memstore.Store
}

func (s dupStore) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	docs, err := s.Store.ListDocuments(ctx, collection)

	return append(docs, docs...), err //nolint:wrapcheck
}

// dump returns every document of s keyed by path.
func dump(t *testing.T, s store.Store, paths ...string) map[string]store.Data {
	t.Helper()

	rv := make(map[string]store.Data, len(paths))
	for _, path := range paths {
		data, err := s.GetDocument(t.Context(), path)
		require.NoError(t, err, path)

		rv[path] = data
	}

	return rv
}
