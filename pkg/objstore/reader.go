package objstore

import (
	"context"
	"io"

	"github.com/thanos-io/objstore"
)

// NewBucket adds ReaderAt support to a plain object store bucket by issuing
// range reads.
func NewBucket(bkt objstore.Bucket) Bucket {
	if bucket, ok := bkt.(Bucket); ok {
		return bucket
	}
	return &ReaderAtBucket{
		Bucket: bkt,
	}
}

// NewPrefixedBucket scopes every object name of bkt under prefix.
func NewPrefixedBucket(bkt Bucket, prefix string) Bucket {
	if prefix == "" {
		return bkt
	}
	return &ReaderAtBucket{Bucket: objstore.NewPrefixedBucket(bkt, prefix)}
}

type ReaderAtBucket struct {
	objstore.Bucket
}

func (b *ReaderAtBucket) ReaderAt(ctx context.Context, name string) (ReaderAtCloser, error) {
	return &ReaderAt{
		GetRangeReader: b.Bucket,
		name:           name,
		ctx:            ctx,
	}, nil
}

type GetRangeReader interface {
	GetRange(ctx context.Context, name string, off, length int64) (io.ReadCloser, error)
}

type ReaderAt struct {
	GetRangeReader
	name string
	ctx  context.Context
}

func (b *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	rc, err := b.GetRangeReader.GetRange(b.ctx, b.name, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	totalBytes := 0
	for {
		byteCount, err := rc.Read(p[totalBytes:])
		totalBytes += byteCount
		if err == io.EOF {
			if totalBytes < len(p) {
				return totalBytes, io.EOF
			}
			return totalBytes, nil
		}
		if err != nil {
			return totalBytes, err
		}
		if totalBytes == len(p) {
			return totalBytes, nil
		}
	}
}

func (b *ReaderAt) Close() error {
	return nil
}

// ReadAll returns the full content of an object.
func ReadAll(ctx context.Context, b objstore.BucketReader, name string) ([]byte, error) {
	rc, err := b.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()
	return io.ReadAll(rc)
}
