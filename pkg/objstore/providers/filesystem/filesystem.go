package filesystem

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"

	"github.com/thanos-io/objstore/providers/filesystem"

	"github.com/san11tools/memscope/pkg/objstore"
)

var _ objstore.Bucket = (*Bucket)(nil)

// Config holds the configuration for a filesystem bucket.
type Config struct {
	Directory string `yaml:"dir"`
}

// RegisterFlagsWithPrefix registers the flags for filesystem storage with the provided prefix.
func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Directory, prefix+"filesystem.dir", "./layouts", "Local filesystem directory holding layout workbooks.")
}

type Bucket struct {
	*filesystem.Bucket
	rootDir string
}

// NewBucket returns a new filesystem.Bucket rooted at rootDir.
func NewBucket(rootDir string) (*Bucket, error) {
	if rootDir == "" {
		return nil, errors.New("missing directory for filesystem bucket")
	}
	b, err := filesystem.NewBucket(rootDir)
	if err != nil {
		return nil, err
	}
	return &Bucket{Bucket: b, rootDir: rootDir}, nil
}

// RootDir is the directory objects are stored under.
func (b *Bucket) RootDir() string { return b.rootDir }

// ReaderAt opens the file directly instead of issuing range requests.
func (b *Bucket) ReaderAt(_ context.Context, filename string) (objstore.ReaderAtCloser, error) {
	f, err := os.Open(filepath.Join(b.rootDir, filename))
	if err != nil {
		return nil, err
	}
	return f, nil
}
