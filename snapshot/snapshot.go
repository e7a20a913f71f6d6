// Package snapshot holds the documents captured by one export pass and their file encoding.
package snapshot

import (
	"maps"
	"slices"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/store"
)

// ErrDuplicatePath is returned when a document path is added twice.
var ErrDuplicatePath = errors.New("duplicate document path")

// Snapshot maps full document paths to document contents.
type Snapshot map[string]store.Data

// New creates an empty snapshot.
func New() Snapshot {
	return make(Snapshot)
}

// Add records the document at path. Paths must be unique within a snapshot.
func (s Snapshot) Add(path string, data store.Data) error {
	if _, ok := s[path]; ok {
		return errors.Wrap(ErrDuplicatePath, path)
	}

	s[path] = data

	return nil
}

// Paths returns the document paths in lexicographic order.
func (s Snapshot) Paths() []string {
	return slices.Sorted(maps.Keys(s))
}

// SizeBytes returns the estimated stored size of all documents.
func (s Snapshot) SizeBytes() uint64 {
	var total uint64
	for path, data := range s {
		total += store.EstimateSize(path, data)
	}

	return total
}
