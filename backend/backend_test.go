package backend_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-doctree-migrate/backend"
	"github.com/percona/percona-doctree-migrate/store/fsstore"
	"github.com/percona/percona-doctree-migrate/store/memstore"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		descriptor string
		want       backend.Descriptor
		wantStr    string
	}{
		{
			name:       "mongodb",
			descriptor: "mongodb://user:pw@localhost:27017/docs",
			want:       backend.Descriptor{Kind: backend.KindMongoDB, URI: "mongodb://user:pw@localhost:27017/docs"},
			wantStr:    "mongodb://localhost:27017",
		},
		{
			name:       "mongodb srv",
			descriptor: "mongodb+srv://cluster.example.com",
			want:       backend.Descriptor{Kind: backend.KindMongoDB, URI: "mongodb+srv://cluster.example.com"},
		},
		{
			name:       "firestore project",
			descriptor: "firestore://my-proj",
			want: backend.Descriptor{
				Kind:      backend.KindFirestore,
				Firestore: fsstore.Options{ProjectID: "my-proj"},
			},
			wantStr: "firestore://my-proj/(default)",
		},
		{
			name:       "firestore database and credentials",
			descriptor: "firestore://my-proj/eu-db?credentials=/keys/sa.json",
			want: backend.Descriptor{
				Kind: backend.KindFirestore,
				Firestore: fsstore.Options{
					ProjectID:       "my-proj",
					DatabaseID:      "eu-db",
					CredentialsFile: "/keys/sa.json",
				},
			},
			wantStr: "firestore://my-proj/eu-db",
		},
		{
			name:       "service account file",
			descriptor: "./keys/source.json",
			want: backend.Descriptor{
				Kind:      backend.KindFirestore,
				Firestore: fsstore.Options{CredentialsFile: "./keys/source.json"},
			},
			wantStr: "firestore://<detected>/(default)",
		},
		{
			name:       "memory",
			descriptor: "mem://",
			want:       backend.Descriptor{Kind: backend.KindMemory},
			wantStr:    "mem://",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := backend.Parse(tt.descriptor)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			if tt.wantStr != "" {
				assert.Equal(t, tt.wantStr, got.String())
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, descriptor := range []string{
		"",
		"   ",
		"firestore://",
		"firestore://proj/a/b",
		"postgres://localhost/db",
	} {
		t.Run(descriptor, func(t *testing.T) {
			t.Parallel()

			_, err := backend.Parse(descriptor)
			require.ErrorIs(t, err, backend.ErrInvalidDescriptor)
		})
	}
}

func TestOpenMemory(t *testing.T) {
	t.Parallel()

	s, err := backend.Open(t.Context(), "mem://", backend.Options{})
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s)
	require.NoError(t, s.Close(t.Context()))
}

func TestOpenMissingCredentials(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.json")

	_, err := backend.Open(t.Context(), missing, backend.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials file")
}

func TestOpenFailureReturnsNilStore(t *testing.T) {
	t.Parallel()

	badCreds := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(badCreds, []byte("not json"), 0o600))

	tests := []struct {
		name       string
		descriptor string
	}{
		{name: "mongodb", descriptor: "mongodb://%zz"},
		{name: "firestore", descriptor: "firestore://proj?credentials=" + badCreds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := backend.Open(t.Context(), tt.descriptor, backend.Options{})
			require.Error(t, err)
			assert.True(t, s == nil, "store interface holds %T", s)
		})
	}
}
