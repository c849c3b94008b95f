package resolver

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/san11tools/memscope/pkg/layout"
)

// DescriptionFunc loads the extended description of a Code unit.
type DescriptionFunc func(ctx context.Context, u *layout.Unit) (string, error)

// Descriptions is a side cache of extended descriptions keyed by unit
// identity. Units are never mutated; a failed load yields an empty
// description and is retried on the next access.
type Descriptions struct {
	logger log.Logger
	load   DescriptionFunc
	cache  *lru.Cache[*layout.Unit, string]
	group  singleflight.Group
}

func NewDescriptions(logger log.Logger, load DescriptionFunc, size int) (*Descriptions, error) {
	cache, err := lru.New[*layout.Unit, string](size)
	if err != nil {
		return nil, fmt.Errorf("create description cache: %w", err)
	}
	return &Descriptions{logger: logger, load: load, cache: cache}, nil
}

// Extended returns the extended description of u. Only Code units have one.
func (d *Descriptions) Extended(ctx context.Context, u *layout.Unit) string {
	if d == nil || u.Kind != layout.Code {
		return ""
	}
	if text, ok := d.cache.Get(u); ok {
		return text
	}
	key := fmt.Sprintf("%s@%x", u.Owner, u.Offset)
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		text, err := d.load(ctx, u)
		if err != nil {
			return "", err
		}
		d.cache.Add(u, text)
		return text, nil
	})
	if err != nil {
		_ = level.Warn(d.logger).Log("msg", "loading extended description", "struct", u.Owner, "offset", fmt.Sprintf("0x%X", u.Offset), "err", err)
		return ""
	}
	return v.(string)
}
