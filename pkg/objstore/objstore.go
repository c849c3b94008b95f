package objstore

import (
	"context"
	"io"

	"github.com/thanos-io/objstore"
)

type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// Bucket is an object store bucket that can also serve random access reads,
// which parquet sheets require.
type Bucket interface {
	objstore.Bucket
	ReaderAt(ctx context.Context, name string) (ReaderAtCloser, error)
}

// BucketReader is the read-only subset of Bucket.
type BucketReader interface {
	objstore.BucketReader
	ReaderAt(ctx context.Context, name string) (ReaderAtCloser, error)
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(b objstore.BucketReader, err error) bool {
	return b.IsObjNotFoundErr(err)
}
