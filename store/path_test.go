package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-doctree-migrate/store"
)

func TestValidatePaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path       string
		collection bool
		document   bool
	}{
		{path: "users", collection: true},
		{path: "users/u1", document: true},
		{path: "users/u1/orders", collection: true},
		{path: "users/u1/orders/o1", document: true},
		{path: ""},
		{path: "/users"},
		{path: "users/"},
		{path: "users//orders"},
		{path: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			err := store.ValidateCollectionPath(tt.path)
			if tt.collection {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, store.ErrInvalidPath)
			}

			err = store.ValidateDocumentPath(tt.path)
			if tt.document {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, store.ErrInvalidPath)
			}
		})
	}
}

func TestPathHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "users/u1/orders", store.Join("users", "u1", "orders"))
	assert.Equal(t, []string{"users", "u1"}, store.Segments("/users/u1/"))
	assert.Nil(t, store.Segments(""))

	assert.Equal(t, "users/u1/orders", store.CollectionOf("users/u1/orders/o1"))
	assert.Equal(t, "users", store.CollectionOf("users/u1"))
	assert.Empty(t, store.CollectionOf("users"))

	assert.Equal(t, "o1", store.ID("users/u1/orders/o1"))
	assert.Equal(t, "users", store.ID("users"))
}

func TestEstimateSize(t *testing.T) {
	t.Parallel()

	base := store.EstimateSize("c/d", nil)
	require.Positive(t, base)

	small := store.EstimateSize("c/d", store.Data{"k": "v"})
	large := store.EstimateSize("c/d", store.Data{"k": "a much longer string value"})
	assert.Greater(t, small, base)
	assert.Greater(t, large, small)

	nested := store.EstimateSize("c/d", store.Data{
		"m": map[string]any{"a": int64(1), "b": []any{"x", true, nil}},
	})
	assert.Greater(t, nested, base)

	// typed containers are sized like their generic forms
	assert.Equal(t,
		store.EstimateSize("c/d", store.Data{"l": []any{"ab", "cd"}}),
		store.EstimateSize("c/d", store.Data{"l": []string{"ab", "cd"}}))
}
