// Package backend opens a [store.Store] from a credential descriptor.
//
// Supported descriptors:
//
//	mongodb://... or mongodb+srv://...             MongoDB deployment
//	firestore://PROJECT[/DATABASE][?credentials=F]  Firestore database
//	mem://                                          empty in-process store
//	anything else                                   path to a service-account JSON key (Firestore)
package backend

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/store/fsstore"
	"github.com/percona/percona-doctree-migrate/store/memstore"
	"github.com/percona/percona-doctree-migrate/store/mongostore"
	"github.com/percona/percona-doctree-migrate/topo"
)

// ErrInvalidDescriptor is returned for a descriptor that names no usable backend.
var ErrInvalidDescriptor = errors.New("invalid store descriptor")

// Kind identifies a store implementation.
type Kind string

const (
	KindMongoDB   Kind = "mongodb"
	KindFirestore Kind = "firestore"
	KindMemory    Kind = "memory"
)

// Options holds backend settings that do not come from the descriptor.
type Options struct {
	Mongo topo.ConnectOptions
}

// Descriptor is a parsed store descriptor.
type Descriptor struct {
	Kind Kind

	// URI is the MongoDB connection string.
	URI string
	// Firestore is the Firestore client configuration.
	Firestore fsstore.Options
}

func (d Descriptor) String() string {
	switch d.Kind {
	case KindMongoDB:
		return topo.Redact(d.URI)
	case KindFirestore:
		db := d.Firestore.DatabaseID
		if db == "" {
			db = "(default)"
		}

		project := d.Firestore.ProjectID
		if project == "" {
			project = "<detected>"
		}

		return "firestore://" + project + "/" + db
	case KindMemory:
		return "mem://"
	}

	return string(d.Kind)
}

// Parse parses a store descriptor.
func Parse(descriptor string) (Descriptor, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return Descriptor{}, errors.Wrap(ErrInvalidDescriptor, "empty")
	}

	switch {
	case strings.HasPrefix(descriptor, "mongodb://"), strings.HasPrefix(descriptor, "mongodb+srv://"):
		return Descriptor{Kind: KindMongoDB, URI: descriptor}, nil

	case strings.HasPrefix(descriptor, "mem://"):
		return Descriptor{Kind: KindMemory}, nil

	case strings.HasPrefix(descriptor, "firestore://"):
		u, err := url.Parse(descriptor)
		if err != nil {
			return Descriptor{}, errors.Wrap(ErrInvalidDescriptor, err.Error())
		}

		if u.Host == "" {
			return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "%q: missing project", descriptor)
		}

		db := strings.Trim(u.Path, "/")
		if strings.Contains(db, "/") {
			return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "%q: bad database %q", descriptor, db)
		}

		return Descriptor{
			Kind: KindFirestore,
			Firestore: fsstore.Options{
				ProjectID:       u.Host,
				DatabaseID:      db,
				CredentialsFile: u.Query().Get("credentials"),
			},
		}, nil

	case strings.Contains(descriptor, "://"):
		return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "%q: unknown scheme", descriptor)
	}

	return Descriptor{
		Kind:      KindFirestore,
		Firestore: fsstore.Options{CredentialsFile: descriptor},
	}, nil
}

// Open parses descriptor and connects to the store it names.
func Open(ctx context.Context, descriptor string, opts Options) (store.Store, error) { //nolint:ireturn
	d, err := Parse(descriptor)
	if err != nil {
		return nil, err
	}

	switch d.Kind {
	case KindMongoDB:
		s, err := mongostore.Open(ctx, d.URI, mongostore.Options{Connect: opts.Mongo})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return s, nil

	case KindFirestore:
		if f := d.Firestore.CredentialsFile; f != "" {
			_, err := os.Stat(f)
			if err != nil {
				return nil, errors.Wrap(err, "credentials file")
			}
		}

		s, err := fsstore.Open(ctx, d.Firestore)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return s, nil

	case KindMemory:
		return memstore.New(), nil
	}

	return nil, errors.Wrapf(ErrInvalidDescriptor, "%q", descriptor)
}
