package snapshot

import (
	"bufio"
	"bytes"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/percona/percona-doctree-migrate/errors"
	"github.com/percona/percona-doctree-migrate/store"
	"github.com/percona/percona-doctree-migrate/store/bsonval"
)

// MaxRecordSize bounds a single encoded line.
const MaxRecordSize = 64 << 20

type record struct {
	Path string `bson:"path"`
	Data bson.M `bson:"data"`
}

// Write encodes the snapshot as one canonical Extended JSON record per line, in path order.
// Timestamps, geo points and Firestore references are written in tagged form (see value.go)
// so [Read] restores them exactly.
func Write(w io.Writer, s Snapshot) error {
	bw := bufio.NewWriter(w)

	for _, path := range s.Paths() {
		line, err := bson.MarshalExtJSON(bson.D{
			{Key: "path", Value: path},
			{Key: "data", Value: encodeMap(s[path])},
		}, true, false)
		if err != nil {
			return errors.Wrapf(err, "encode %q", path)
		}

		_, err = bw.Write(line)
		if err == nil {
			err = bw.WriteByte('\n')
		}

		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return errors.Wrap(bw.Flush(), "flush")
}

// Read decodes a snapshot written by [Write]. Blank lines are skipped.
func Read(r io.Reader) (Snapshot, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxRecordSize)

	s := New()

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec record

		err := bson.UnmarshalExtJSON(line, true, &rec)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: decode", lineNo)
		}

		err = store.ValidateDocumentPath(rec.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}

		data, err := decodeMap(bsonval.Document(rec.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: %s", lineNo, rec.Path)
		}

		err = s.Add(rec.Path, data)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
	}

	err := scanner.Err()
	if err != nil {
		return nil, errors.Wrap(err, "read")
	}

	return s, nil
}
