// Package topo connects to MongoDB deployments and classifies their errors.
package topo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/percona/percona-doctree-migrate/errors"
)

// AppName is reported to the server in the client metadata.
const AppName = "pdtm"

// ConnectOptions configures a client connection.
type ConnectOptions struct {
	// Timeout bounds every client operation. 0 leaves the driver default.
	Timeout time.Duration
	// Compressors lists wire compressors ("zstd", "zlib", "snappy").
	Compressors []string
}

// Connect creates a client for uri and checks that the primary is reachable.
func Connect(ctx context.Context, uri string, opts ConnectOptions) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("invalid MongoDB URI")
	}

	clientOpts := options.Client().ApplyURI(uri).
		SetAppName(AppName).
		SetReadPreference(readpref.Primary())

	if opts.Timeout > 0 {
		clientOpts.SetTimeout(opts.Timeout)
	}

	if len(opts.Compressors) != 0 {
		clientOpts.SetCompressors(opts.Compressors)
	}

	conn, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}

	err = conn.Ping(ctx, readpref.Primary())
	if err != nil {
		_ = conn.Disconnect(context.Background())

		return nil, errors.Wrap(err, "ping")
	}

	return conn, nil
}

// DatabaseName returns the database named in the path of uri, or def.
func DatabaseName(uri, def string) (string, error) {
	cs, err := connstring.Parse(uri)
	if err != nil {
		return "", errors.Wrap(err, "parse connection string")
	}

	if cs.Database == "" {
		return def, nil
	}

	return cs.Database, nil
}

// Redact returns the scheme and hosts of uri without credentials.
func Redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return "<invalid uri>"
	}

	return u.Scheme + "://" + u.Host
}

// ServerVersion is the version reported by buildInfo.
type ServerVersion [3]int

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d", v[0], v[1])
}

// FullString returns the version with the patch number.
func (v ServerVersion) FullString() string {
	return fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
}

// Version returns the server version of the deployment.
func Version(ctx context.Context, m *mongo.Client) (ServerVersion, error) {
	raw, err := m.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Raw()
	if err != nil {
		return ServerVersion{}, errors.Wrap(err, "buildInfo")
	}

	var info struct {
		VersionArray []int32 `bson:"versionArray"`
	}

	err = bson.Unmarshal(raw, &info)
	if err != nil {
		return ServerVersion{}, errors.Wrap(err, "decode buildInfo")
	}

	var ver ServerVersion
	for i := range min(len(info.VersionArray), len(ver)) {
		ver[i] = int(info.VersionArray[i])
	}

	return ver, nil
}

// transientCodes are server error codes of conditions that usually clear on retry.
//
//nolint:gochecknoglobals
var transientCodes = []int{
	6,     // HostUnreachable
	7,     // HostNotFound
	24,    // LockTimeout
	89,    // NetworkTimeout
	91,    // ShutdownInProgress
	112,   // WriteConflict
	189,   // PrimarySteppedDown
	262,   // ExceededTimeLimit
	10107, // NotWritablePrimary
	11600, // InterruptedAtShutdown
	11602, // InterruptedDueToReplStateChange
	13435, // NotPrimaryNoSecondaryOk
	13436, // NotPrimaryOrSecondary
}

// IsTransient reports whether err is a network failure, a timeout or a server error
// that may succeed on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.IsCanceled(err) && !mongo.IsTimeout(err) {
		return false
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") ||
			se.HasErrorLabel("RetryableWriteError") {
			return true
		}

		for _, code := range transientCodes {
			if se.HasErrorCode(code) {
				return true
			}
		}
	}

	return false
}
