// Package description loads the extended descriptions of code units from
// object storage.
package description

import (
	"context"
	"flag"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/resolver"
)

type Config struct {
	Prefix    string `yaml:"prefix"`
	CacheSize int    `yaml:"cache_size"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Prefix, "descriptions.prefix", "descriptions", "Object prefix holding extended descriptions of code units.")
	f.IntVar(&cfg.CacheSize, "descriptions.cache-size", 1024, "Number of extended descriptions kept in memory per version.")
}

func (cfg *Config) Validate() error {
	if cfg.CacheSize <= 0 {
		return fmt.Errorf("descriptions.cache-size must be positive, got %d", cfg.CacheSize)
	}
	return nil
}

// ObjectName is the object holding the description of u in version:
// <prefix>/<version>/<StructType>/<offset-hex>.txt
func ObjectName(prefix, version string, u *layout.Unit) string {
	return path.Join(prefix, version, u.Owner, fmt.Sprintf("%x.txt", u.Offset))
}

// NewLoader returns a description hook reading from bkt. A missing object
// is an empty description, not an error.
func NewLoader(bkt objstore.BucketReader, prefix, version string) resolver.DescriptionFunc {
	return func(ctx context.Context, u *layout.Unit) (string, error) {
		name := ObjectName(prefix, version, u)
		buf, err := objstore.ReadAll(ctx, bkt, name)
		if err != nil {
			if bkt.IsObjNotFoundErr(err) {
				return "", nil
			}
			return "", errors.Wrapf(err, "reading %s", name)
		}
		return strings.TrimSpace(string(buf)), nil
	}
}
