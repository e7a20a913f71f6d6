package store

import (
	"strings"

	"github.com/percona/percona-doctree-migrate/errors"
)

// ErrInvalidPath is returned for malformed collection or document paths.
var ErrInvalidPath = errors.New("invalid path")

// Segments splits a path into its segments. Leading and trailing slashes are ignored.
func Segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}

	return strings.Split(path, "/")
}

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidateCollectionPath checks that path names a collection (odd number of segments).
func ValidateCollectionPath(path string) error {
	segs, err := checkSegments(path)
	if err != nil {
		return err
	}

	if len(segs)%2 != 1 {
		return errors.Wrapf(ErrInvalidPath, "%q is not a collection path", path)
	}

	return nil
}

// ValidateDocumentPath checks that path names a document (even number of segments).
func ValidateDocumentPath(path string) error {
	segs, err := checkSegments(path)
	if err != nil {
		return err
	}

	if len(segs)%2 != 0 {
		return errors.Wrapf(ErrInvalidPath, "%q is not a document path", path)
	}

	return nil
}

// CollectionOf returns the collection path of a document path.
func CollectionOf(document string) string {
	i := strings.LastIndexByte(document, '/')
	if i == -1 {
		return ""
	}

	return document[:i]
}

// ID returns the last segment of a path.
func ID(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

func checkSegments(path string) ([]string, error) {
	if path == "" {
		return nil, errors.Wrap(ErrInvalidPath, "empty path")
	}

	if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return nil, errors.Wrapf(ErrInvalidPath, "%q has a leading or trailing slash", path)
	}

	segs := strings.Split(path, "/")
	for i, seg := range segs {
		if seg == "" {
			return nil, errors.Wrapf(ErrInvalidPath, "%q has an empty segment at %d", path, i)
		}
	}

	return segs, nil
}
