// Package mongostore is a [store.Store] keeping a document tree in one MongoDB collection.
//
// Every document is stored as {_id: path, parent: collectionPath, data: {...}}. Sub-collections
// exist implicitly through the parent of their documents, the same way Firestore treats them.
// Batches commit in a multi-document transaction, so the deployment must be a replica set
// or a sharded cluster.
package mongostore

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/log"
	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/store/bsonval"
	"github.com/percona/percona-doctree-migrate/topo"
)

const (
	// DefaultDatabase is used when the connection string names no database.
	DefaultDatabase = "pdtm"
	// DefaultCollection holds the documents of every path.
	DefaultCollection = "documents"
)

// Options configures [Open].
type Options struct {
	// Database overrides the database from the connection string.
	Database string
	// Collection defaults to [DefaultCollection].
	Collection string

	Connect topo.ConnectOptions
}

// Store is a [store.Store] backed by a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Store = (*Store)(nil)

type record struct {
	ID     string         `bson:"_id"`
	Parent string         `bson:"parent"`
	Data   map[string]any `bson:"data"`
}

// Open connects to the deployment at uri and ensures the parent index exists.
func Open(ctx context.Context, uri string, opts Options) (*Store, error) {
	dbName := opts.Database
	if dbName == "" {
		var err error

		dbName, err = topo.DatabaseName(uri, DefaultDatabase)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	collName := opts.Collection
	if collName == "" {
		collName = DefaultCollection
	}

	client, err := topo.Connect(ctx, uri, opts.Connect)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	s := New(client, dbName, collName)

	_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "parent", Value: 1}, {Key: "_id", Value: 1}},
		Options: options.Index().SetName("parent_1__id_1"),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())

		return nil, errors.Wrap(err, "create parent index")
	}

	lg := log.Ctx(ctx)

	ver, err := topo.Version(ctx, client)
	if err != nil {
		lg.Warn("Unknown server version: " + err.Error())
	}

	lg.Infof("Connected to MongoDB [%s]: %s (%s.%s)",
		ver.FullString(), topo.Redact(uri), dbName, collName)

	return s, nil
}

// New wraps an established client.
func New(client *mongo.Client, database, collection string) *Store {
	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

func (s *Store) ListDocuments(ctx context.Context, collection string) ([]store.Document, error) {
	err := store.ValidateCollectionPath(collection)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	cur, err := s.coll.Find(ctx,
		bson.D{{Key: "parent", Value: collection}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify(errors.Wrap(err, "find"))
	}

	var records []record

	err = cur.All(ctx, &records)
	if err != nil {
		return nil, classify(errors.Wrap(err, "cursor"))
	}

	docs := make([]store.Document, len(records))
	for i, rec := range records {
		docs[i] = store.Document{ID: store.ID(rec.ID), Data: bsonval.Document(rec.Data)}
	}

	return docs, nil
}

func (s *Store) GetDocument(ctx context.Context, path string) (store.Data, error) {
	err := store.ValidateDocumentPath(path)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var rec record

	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: path}}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrap(store.ErrNotFound, path)
		}

		return nil, classify(errors.Wrap(err, "find one"))
	}

	return bsonval.Document(rec.Data), nil
}

// ListCollections returns the names of collections holding any descendant of document.
// The document itself does not need to exist.
func (s *Store) ListCollections(ctx context.Context, document string) ([]string, error) {
	err := store.ValidateDocumentPath(document)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	prefix := document + "/"
	filter := bson.D{{Key: "parent", Value: bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(prefix)}}}}

	var parents []string

	err = s.coll.Distinct(ctx, "parent", filter).Decode(&parents)
	if err != nil {
		return nil, classify(errors.Wrap(err, "distinct"))
	}

	names := make([]string, 0, len(parents))
	for _, parent := range parents {
		name, _, _ := strings.Cut(strings.TrimPrefix(parent, prefix), "/")
		names = append(names, name)
	}

	slices.Sort(names)

	return slices.Compact(names), nil
}

func (s *Store) NewBatch() store.Batch { //nolint:ireturn
	return &batch{s: s}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx) //nolint:wrapcheck
}

type batch struct {
	s       *Store
	records []record
}

func (b *batch) Set(path string, data store.Data) {
	if data == nil {
		data = store.Data{}
	}

	b.records = append(b.records, record{ID: path, Parent: store.CollectionOf(path), Data: data})
}

func (b *batch) Len() int {
	return len(b.records)
}

// Commit writes the batch in one transaction.
func (b *batch) Commit(ctx context.Context) error {
	if len(b.records) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, len(b.records))
	for i, rec := range b.records {
		err := store.ValidateDocumentPath(rec.ID)
		if err != nil {
			return err //nolint:wrapcheck
		}

		models[i] = mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: rec.ID}}).
			SetReplacement(rec).
			SetUpsert(true)
	}

	sess, err := b.s.client.StartSession()
	if err != nil {
		return classify(errors.Wrap(err, "start session"))
	}
	defer sess.EndSession(context.Background())

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return b.s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return classify(errors.Wrap(err, "transaction"))
	}

	return nil
}

func classify(err error) error {
	if topo.IsTransient(err) {
		return store.Transient(err)
	}

	return err
}
