package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	thanosobjstore "github.com/thanos-io/objstore"

	"github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/objstore/client"
)

func NewFilesystemBucket(t testing.TB, ctx context.Context, storageDir string) (objstore.Bucket, string) {
	cfg := client.Config{StorageBackendConfig: client.StorageBackendConfig{Backend: client.Filesystem}}
	cfg.Filesystem.Directory = storageDir
	bkt, err := client.NewBucket(ctx, cfg, "test")
	require.NoError(t, err)

	return bkt, storageDir
}

// NewMemBucket returns an in-memory bucket preloaded with objects.
func NewMemBucket(t testing.TB, objects map[string]string) objstore.Bucket {
	mem := thanosobjstore.NewInMemBucket()
	for name, content := range objects {
		require.NoError(t, mem.Upload(context.Background(), name, bytes.NewReader([]byte(content))))
	}
	return objstore.NewBucket(mem)
}
