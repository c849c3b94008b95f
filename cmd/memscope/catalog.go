package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/objstore/client"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

const bucketName = "layouts"

func newBucket(ctx context.Context) (objstore.Bucket, error) {
	bkt, err := client.NewBucket(ctx, config(ctx).Storage, bucketName)
	if err != nil {
		return nil, errors.Wrap(err, "opening storage")
	}
	return bkt, nil
}

// loadCatalog opens the storage and builds every configured version.
func loadCatalog(ctx context.Context, reg prometheus.Registerer) (*catalog.Catalog, error) {
	bkt, err := newBucket(ctx)
	if err != nil {
		return nil, err
	}
	c := config(ctx)
	cat := catalog.New(c.Catalog, c.Descriptions, bkt, memcontext.Logger(ctx), reg)
	if err := cat.Reload(ctx); err != nil {
		return nil, errors.Wrap(err, "loading layouts")
	}
	return cat, nil
}
