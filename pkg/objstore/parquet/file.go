package parquet

import (
	"bytes"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/san11tools/memscope/pkg/objstore"
)

// ReadRows reads every row of the parquet object name into T.
func ReadRows[T any](ctx context.Context, b objstore.BucketReader, name string) ([]T, error) {
	attrs, err := b.Attributes(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("getting attributes: %w", err)
	}
	ra, err := b.ReaderAt(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("creating reader: %w", err)
	}
	defer func() {
		_ = ra.Close()
	}()

	rows, err := parquet.Read[T](ra, attrs.Size)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return rows, nil
}

// WriteRows encodes rows as a parquet object named name.
func WriteRows[T any](ctx context.Context, b objstore.Bucket, name string, rows []T) error {
	var buf bytes.Buffer
	if err := parquet.Write(&buf, rows); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := b.Upload(ctx, name, &buf); err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	return nil
}
