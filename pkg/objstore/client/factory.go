package client

import (
	"context"

	"github.com/go-kit/log/level"
	"github.com/thanos-io/objstore"

	memobj "github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/objstore/providers/filesystem"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

// NewBucket creates a new bucket client based on the configured backend.
func NewBucket(ctx context.Context, cfg Config, name string) (memobj.Bucket, error) {
	logger := memcontext.Logger(ctx)

	var bkt memobj.Bucket
	switch cfg.Backend {
	case Filesystem:
		// Filesystem reads go straight to the files, bypassing range requests.
		fs, err := filesystem.NewBucket(cfg.Filesystem.Directory)
		if err != nil {
			return nil, err
		}
		bkt = fs
	case Memory:
		bkt = memobj.NewBucket(objstore.NewInMemBucket())
	default:
		return nil, ErrUnsupportedStorageBackend
	}
	_ = level.Debug(logger).Log("msg", "created bucket client", "name", name, "backend", cfg.Backend, "prefix", cfg.StoragePrefix)

	return memobj.NewPrefixedBucket(bkt, cfg.StoragePrefix), nil
}
