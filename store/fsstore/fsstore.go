// Package fsstore is a [store.Store] over Google Cloud Firestore.
package fsstore

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/store"
)

// Options configures [Open].
type Options struct {
	// ProjectID is the Google Cloud project. Empty detects it from the credentials.
	ProjectID string
	// DatabaseID defaults to the "(default)" database.
	DatabaseID string
	// CredentialsFile is a service-account JSON key. Empty uses Application Default Credentials.
	CredentialsFile string
}

// Store is a [store.Store] backed by a Firestore database.
type Store struct {
	client *firestore.Client
	// docPrefix is the resource prefix of document names in this database
	docPrefix string
}

var _ store.Store = (*Store)(nil)

// Open creates a client for the configured database.
func Open(ctx context.Context, opts Options) (*Store, error) {
	projectID := opts.ProjectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	databaseID := opts.DatabaseID
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "new firestore client")
	}

	s := New(client)

	log.Ctx(ctx).Infof("Connected to Firestore: %s", strings.TrimSuffix(s.docPrefix, "/documents/"))

	return s, nil
}

// New wraps an established client.
func New(client *firestore.Client) *Store {
	// Doc("c/d").Path is "projects/P/databases/D/documents/c/d"
	probe := client.Doc("c/d").Path

	return &Store{
		client:    client,
		docPrefix: strings.TrimSuffix(probe, "c/d"),
	}
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	err := store.ValidateCollectionPath(collection)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []store.Document

	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return nil, classify(errors.Wrap(err, "next document"))
		}

		docs = append(docs, store.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}

	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, path string) (store.Data, error) {
	err := store.ValidateDocumentPath(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	snap, err := s.client.Doc(path).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.Wrap(store.ErrNotFound, path)
		}

		return nil, classify(errors.Wrap(err, "get"))
	}

	return snap.Data(), nil
}

// ListCollections returns the sub-collection ids of document, which does not need to exist.
func (s *Store) ListCollections(ctx context.Context, document string) ([]string, error) {
	err := store.ValidateDocumentPath(document)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	iter := s.client.Doc(document).Collections(ctx)

	var names []string

	for {
		coll, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return nil, classify(errors.Wrap(err, "next collection"))
		}

		names = append(names, coll.ID)
	}

	return names, nil
}

func (s *Store) NewBatch() store.Batch { //nolint:ireturn
	return &batch{s: s}
}

func (s *Store) Close(context.Context) error {
	return s.client.Close() //nolint:wrapcheck
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
	b.writes = append(b.writes, write{path: path, data: data})
}

func (b *batch) Len() int {
	return len(b.writes)
}

// Commit writes the batch atomically. Firestore limits a batch to 500 writes.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.writes) == 0 {
		return nil
	}

	wb := b.s.client.Batch() //nolint:staticcheck

	for _, w := range b.writes {
		err := store.ValidateDocumentPath(w.path)
		if err != nil {
			return err //nolint:wrapcheck
		}

		data := w.data
		if data == nil {
			data = store.Data{}
		}

		wb.Set(b.s.client.Doc(w.path), b.s.retarget(data))
	}

	_, err := wb.Commit(ctx)
	if err != nil {
		return classify(errors.Wrap(err, "commit"))
	}

	return nil
}

// retarget rewrites document references read from another database to point at the same
// path in this one.
func (s *Store) retarget(v any) any {
	switch v := v.(type) {
	case *firestore.DocumentRef:
		if v == nil || strings.HasPrefix(v.Path, s.docPrefix) {
			return v
		}

		_, rel, ok := strings.Cut(v.Path, "/documents/")
		if !ok {
			return v
		}

		return s.client.Doc(rel)
	case map[string]any:
		rv := make(map[string]any, len(v))
		for k, e := range v {
			rv[k] = s.retarget(e)
		}

		return rv
	case []any:
		rv := make([]any, len(v))
		for i, e := range v {
			rv[i] = s.retarget(e)
		}

		return rv
	default:
		return v
	}
}

// classify marks retryable RPC failures as transient.
func classify(err error) error {
	switch status.Code(err) { //nolint:exhaustive
	case codes.Unavailable,
		codes.DeadlineExceeded,
		codes.Aborted,
		codes.ResourceExhausted,
		codes.Internal:
		return store.Transient(err)
	default:
		return err
	}
}
