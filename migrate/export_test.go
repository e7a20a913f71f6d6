package migrate_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/migrate"
	"github.com/percona/percona-doctree-migrate/sel"
	"github.com/percona/percona-doctree-migrate/snapshot"
	"github.com/percona/percona-doctree-migrate/store"
)

// treeDocs builds a tree of width documents per collection and two sub-collections per
// document down to depth collection levels under root.
func treeDocs(root string, width, depth int) map[string]store.Data {
	docs := make(map[string]store.Data)

	var walk func(coll string, level int)
	walk = func(coll string, level int) {
		for i := range width {
			path := fmt.Sprintf("%s/d%d", coll, i)
			docs[path] = store.Data{"path": path, "level": int64(level)}

			if level < depth {
				walk(path+"/a", level+1)
				walk(path+"/b", level+1)
			}
		}
	}

	walk(root, 1)

	return docs
}

func TestExportCompleteness(t *testing.T) {
	t.Parallel()

	docs := treeDocs("users", 3, 3)

	// a branch with exactly one sub-collection per level, four levels deep
	for _, path := range []string{
		"users/solo",
		"users/solo/orders/o1",
		"users/solo/orders/o1/items/i1",
		"users/solo/orders/o1/items/i1/notes/n1",
	} {
		docs[path] = store.Data{"path": path}
	}

	src := newHookStore(t, docs)
	require.NoError(t, src.Put("other/x", store.Data{"n": int64(1)}))
	require.NoError(t, src.Put("users2/y", store.Data{"n": int64(2)}))
	require.NoError(t, src.Put("other/x/users/z", store.Data{"n": int64(3)}))

	snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{})
	require.NoError(t, err)

	assert.Len(t, snap, len(docs))

	for path, data := range docs {
		assert.Equal(t, data, snap[path], path)
	}
}

func TestExportParallelism(t *testing.T) {
	t.Parallel()

	docs := treeDocs("root", 4, 3)
	src := newHookStore(t, docs)

	want, err := migrate.Export(t.Context(), src, "root", migrate.ExportOptions{Parallelism: 1})
	require.NoError(t, err)
	require.Len(t, want, len(docs))

	for _, parallelism := range []int{2, 8, 64} {
		t.Run(fmt.Sprint(parallelism), func(t *testing.T) {
			t.Parallel()

			got, err := migrate.Export(t.Context(), src, "root",
				migrate.ExportOptions{Parallelism: parallelism})
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExportNestedRoot(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, map[string]store.Data{
		"users/u1":               {"name": "A"},
		"users/u1/orders/o1":     {"total": int64(5)},
		"users/u1/orders/o1/x/1": {"k": "v"},
		"users/u2/orders/o2":     {"total": int64(7)},
	})

	snap, err := migrate.Export(t.Context(), src, "users/u1/orders", migrate.ExportOptions{})
	require.NoError(t, err)

	assert.Equal(t, snapshot.Snapshot{
		"users/u1/orders/o1":     {"total": int64(5)},
		"users/u1/orders/o1/x/1": {"k": "v"},
	}, snap)
}

func TestExportMissingParentDocument(t *testing.T) {
	t.Parallel()

	// a sub-collection below a document that does not exist is not listed
	src := newHookStore(t, map[string]store.Data{
		"users/u1":           {"name": "A"},
		"users/u2/orders/o1": {"total": int64(5)},
	})

	snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"users/u1"}, snap.Paths())
}

func TestExportEmptyCollection(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, map[string]store.Data{"other/x": {}})

	snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{})
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.EqualValues(t, 1, src.listDocumentsCalls.Load())
	assert.EqualValues(t, 0, src.listCollectionsCalls.Load())
}

func TestExportInvalidRoot(t *testing.T) {
	t.Parallel()

	for _, root := range []string{"", "users/u1", "/users", "users//orders"} {
		t.Run(root, func(t *testing.T) {
			t.Parallel()

			src := newHookStore(t, nil)

			_, err := migrate.Export(t.Context(), src, root, migrate.ExportOptions{})
			require.ErrorIs(t, err, store.ErrInvalidPath)
			assert.EqualValues(t, 0, src.listDocumentsCalls.Load())
		})
	}
}

func TestExportStoreAccessError(t *testing.T) {
	t.Parallel()

	errRead := errors.New("permission denied")

	tests := []struct {
		name     string
		setup    func(*hookStore)
		wantOp   string
		wantPath string
	}{
		{
			name: "list documents of root",
			setup: func(s *hookStore) {
				s.onListDocuments = func(string) error { return errRead }
			},
			wantOp:   "list documents",
			wantPath: "users",
		},
		{
			name: "list documents of nested collection",
			setup: func(s *hookStore) {
				s.onListDocuments = func(coll string) error {
					if coll == "users/u1/orders" {
						return errRead
					}

					return nil
				}
			},
			wantOp:   "list documents",
			wantPath: "users/u1/orders",
		},
		{
			name: "list collections",
			setup: func(s *hookStore) {
				s.onListCollections = func(doc string) error {
					if doc == "users/u1" {
						return errRead
					}

					return nil
				}
			},
			wantOp:   "list collections",
			wantPath: "users/u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newHookStore(t, map[string]store.Data{
				"users/u1":           {"name": "A"},
				"users/u1/orders/o1": {"total": int64(5)},
				"users/u2":           {"name": "B"},
			})
			tt.setup(src)

			snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{})
			require.ErrorIs(t, err, errRead)
			assert.Nil(t, snap)

			var sae *migrate.StoreAccessError
			require.ErrorAs(t, err, &sae)
			assert.Equal(t, tt.wantOp, sae.Op)
			assert.Equal(t, tt.wantPath, sae.Path)
		})
	}
}

func TestExportDuplicatePath(t *testing.T) {
	t.Parallel()

	src := dupStore{Store: newHookStore(t, map[string]store.Data{"users/u1": {}}).Store}

	_, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{})
	require.ErrorIs(t, err, snapshot.ErrDuplicatePath)
}

func TestExportFilter(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, map[string]store.Data{
		"users/u1":                {"name": "A"},
		"users/u1/audit/a1":       {"op": "login"},
		"users/u1/audit/a1/raw/1": {"b": []byte("x")},
		"users/u1/orders/o1":      {"total": int64(5)},
		"users/u2/audit/a2":       {"op": "logout"},
	})

	filter, err := sel.MakeFilter([]string{"users/*/audit"})
	require.NoError(t, err)

	snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{Filter: filter})
	require.NoError(t, err)

	assert.Equal(t, []string{"users/u1", "users/u1/orders/o1"}, snap.Paths())
}

func TestExportFilterKeepsRoot(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, map[string]store.Data{"users/u1": {"name": "A"}})

	filter, err := sel.MakeFilter([]string{"users"})
	require.NoError(t, err)

	snap, err := migrate.Export(t.Context(), src, "users", migrate.ExportOptions{Filter: filter})
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestExportRetry(t *testing.T) {
	t.Parallel()

	errFlaky := errors.New("unavailable")

	tests := []struct {
		name       string
		failures   int
		transient  bool
		maxRetries int
		wantErr    bool
		wantCalls  int32
	}{
		{name: "transient recovered", failures: 2, transient: true, maxRetries: 3, wantCalls: 3},
		{name: "transient exhausted", failures: 5, transient: true, maxRetries: 2, wantErr: true, wantCalls: 3},
		{name: "terminal not retried", failures: 1, transient: false, maxRetries: 3, wantErr: true, wantCalls: 1},
		{name: "retries disabled", failures: 1, transient: true, maxRetries: 0, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newHookStore(t, map[string]store.Data{"users/u1": {"name": "A"}})

			var calls int32
			src.onListDocuments = func(string) error {
				calls++
				if int(calls) > tt.failures {
					return nil
				}

				if tt.transient {
					return store.Transient(errFlaky)
				}

				return errFlaky
			}

			opts := migrate.ExportOptions{
				Parallelism: 1,
				Retry:       migrate.RetryOptions{Interval: 1, MaxRetries: tt.maxRetries},
			}

			snap, err := migrate.Export(t.Context(), src, "users", opts)
			assert.Equal(t, tt.wantCalls, calls)

			if tt.wantErr {
				require.ErrorIs(t, err, errFlaky)

				return
			}

			require.NoError(t, err)
			assert.Len(t, snap, 1)
		})
	}
}

func TestExportCanceled(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, treeDocs("users", 2, 2))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := migrate.Export(ctx, src, "users", migrate.ExportOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportCanceledMidWalk(t *testing.T) {
	t.Parallel()

	src := newHookStore(t, treeDocs("users", 3, 3))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	src.onListCollections = func(string) error {
		cancel()

		return nil
	}

	_, err := migrate.Export(ctx, src, "users", migrate.ExportOptions{Parallelism: 2})
	require.ErrorIs(t, err, context.Canceled)
}
