package topo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/topo"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{
			name: "shutdown in progress",
			err: mongo.WriteException{
				WriteErrors: []mongo.WriteError{{Code: 91, Message: "shutdown"}},
			},
			want: true,
		},
		{
			name: "write conflict",
			err: mongo.CommandError{
				Code:    112,
				Message: "write conflict",
			},
			want: true,
		},
		{
			name: "transient transaction label",
			err: mongo.CommandError{
				Code:   251,
				Labels: []string{"TransientTransactionError"},
			},
			want: true,
		},
		{
			name: "duplicate key",
			err: mongo.WriteException{
				WriteErrors: []mongo.WriteError{{Code: 11000, Message: "dup"}},
			},
			want: false,
		},
		{
			name: "unauthorized",
			err:  mongo.CommandError{Code: 13, Message: "unauthorized"},
			want: false,
		},
		{
			name: "wrapped",
			err: errors.Wrap(mongo.CommandError{
				Code: 189,
			}, "commit"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, topo.IsTransient(tt.err))
		})
	}
}

func TestDatabaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri  string
		want string
	}{
		{uri: "mongodb://localhost:27017", want: "pdtm"},
		{uri: "mongodb://localhost:27017/", want: "pdtm"},
		{uri: "mongodb://localhost:27017/docs", want: "docs"},
		{uri: "mongodb://user:pass@a:1,b:2/docs?replicaSet=rs0", want: "docs"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()

			got, err := topo.DatabaseName(tt.uri, "pdtm")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := topo.DatabaseName("http://localhost", "pdtm")
	require.Error(t, err)
}

func TestRedact(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "mongodb://a:1,b:2", topo.Redact("mongodb://user:secret@a:1,b:2/docs"))
	assert.Equal(t, "<invalid uri>", topo.Redact("nope"))
}

func TestServerVersion(t *testing.T) {
	t.Parallel()

	v := topo.ServerVersion{7, 0, 12}
	assert.Equal(t, "7.0", v.String())
	assert.Equal(t, "7.0.12", v.FullString())
}
