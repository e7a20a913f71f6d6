// Package sel selects which collections of a document tree are walked.
package sel

import (
	"path"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/store"
)

// PathFilter returns true if a collection path is allowed.
type PathFilter func(collection string) bool

func AllowAllFilter(string) bool {
	return true
}

// MakeFilter builds a filter denying every collection matched by an exclude pattern.
//
// A pattern is a collection path whose segments may use [path.Match] syntax, so "*" matches
// exactly one segment: "users/*/audit" excludes the audit sub-collection of every user.
func MakeFilter(exclude []string) (PathFilter, error) {
	if len(exclude) == 0 {
		return AllowAllFilter, nil
	}

	patterns := make([][]string, 0, len(exclude))

	for _, p := range exclude {
		err := store.ValidateCollectionPath(p)
		if err != nil {
			return nil, errors.Wrapf(err, "exclude pattern %q", p)
		}

		segs := store.Segments(p)
		for _, seg := range segs {
			_, err := path.Match(seg, "")
			if err != nil {
				return nil, errors.Wrapf(err, "exclude pattern %q", p)
			}
		}

		patterns = append(patterns, segs)
	}

	return func(collection string) bool {
		segs := store.Segments(collection)

		for _, pattern := range patterns {
			if matchSegments(pattern, segs) {
				return false
			}
		}

		return true
	}, nil
}

func matchSegments(pattern, segs []string) bool {
	if len(pattern) != len(segs) {
		return false
	}

	for i, p := range pattern {
		ok, _ := path.Match(p, segs[i])
		if !ok {
			return false
		}
	}

	return true
}
