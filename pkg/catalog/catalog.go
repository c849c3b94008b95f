// Package catalog serves resolution queries against every configured layout
// version and rebuilds them when their workbooks change.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/san11tools/memscope/pkg/declaration"
	"github.com/san11tools/memscope/pkg/description"
	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/resolver"
	"github.com/san11tools/memscope/pkg/util"
)

var (
	ErrUnknownVersion = errors.New("unknown version")
	ErrNotLoaded      = errors.New("catalog is not loaded")
)

// Version is one built schema version.
type Version struct {
	Name        string
	Resolver    *resolver.Resolver
	Diagnostics layout.Diagnostics
	BuiltAt     time.Time
}

func (v *Version) Schema() *layout.Schema { return v.Resolver.Schema() }

type snapshot struct {
	versions map[string]*Version
}

type Catalog struct {
	cfg     Config
	descCfg description.Config
	bkt     objstore.BucketReader
	logger  log.Logger
	metrics *metrics

	reloadMu sync.Mutex
	current  atomic.Pointer[snapshot]
}

func New(cfg Config, descCfg description.Config, bkt objstore.BucketReader, logger log.Logger, reg prometheus.Registerer) *Catalog {
	return &Catalog{
		cfg:     cfg,
		descCfg: descCfg,
		bkt:     bkt,
		logger:  logger,
		metrics: newMetrics(reg),
	}
}

// Reload rebuilds every version concurrently. The new versions replace the
// served ones only if all of them build; otherwise the previous set stays.
func (c *Catalog) Reload(ctx context.Context) error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	built := make([]*Version, len(c.cfg.Versions))
	g, ctx := errgroup.WithContext(ctx)
	for i, vc := range c.cfg.Versions {
		g.Go(util.RecoverPanic(func() error {
			v, err := c.build(ctx, vc)
			if err != nil {
				return fmt.Errorf("version %s: %w", vc.Name, err)
			}
			built[i] = v
			return nil
		}))
	}
	if err := g.Wait(); err != nil {
		c.metrics.reloads.WithLabelValues("failure").Inc()
		c.metrics.lastReloadSuccessful.Set(0)
		return err
	}

	c.current.Store(&snapshot{
		versions: lo.KeyBy(built, func(v *Version) string { return v.Name }),
	})
	for _, v := range built {
		c.observe(v)
	}
	c.metrics.reloads.WithLabelValues("success").Inc()
	c.metrics.lastReloadSuccessful.Set(1)
	_ = level.Info(c.logger).Log("msg", "catalog loaded", "versions", len(built))
	return nil
}

func (c *Catalog) build(ctx context.Context, vc VersionConfig) (*Version, error) {
	start := time.Now()
	defer func() {
		c.metrics.buildDuration.Observe(time.Since(start).Seconds())
	}()
	logger := log.With(c.logger, "version", vc.Name)

	format, err := declaration.ParseFormat(vc.Format)
	if err != nil {
		return nil, err
	}
	wb, err := declaration.Load(ctx, c.bkt, vc.WorkbookPrefix(), format)
	if err != nil {
		return nil, err
	}
	root, err := vc.Root.Decl()
	if err != nil {
		return nil, err
	}
	var opts []layout.Option
	if vc.AddressBase != 0 {
		opts = append(opts, layout.WithAddressBase(vc.AddressBase))
	}
	schema, diags, err := layout.Build(logger, root, wb, opts...)
	if err != nil {
		return nil, err
	}

	descriptions, err := resolver.NewDescriptions(logger, description.NewLoader(c.bkt, c.descCfg.Prefix, vc.Name), c.descCfg.CacheSize)
	if err != nil {
		return nil, err
	}
	_ = level.Debug(logger).Log("msg", "version built", "structs", len(schema.Structs()), "diagnostics", len(diags), "duration", time.Since(start))
	return &Version{
		Name:        vc.Name,
		Resolver:    resolver.New(schema, descriptions),
		Diagnostics: diags,
		BuiltAt:     time.Now(),
	}, nil
}

func (c *Catalog) observe(v *Version) {
	c.metrics.structs.WithLabelValues(v.Name).Set(float64(len(v.Schema().Structs())))
	c.metrics.diagnostics.DeletePartialMatch(prometheus.Labels{"version": v.Name})
	for kind, n := range lo.CountValuesBy(v.Diagnostics, layout.Diagnostic.Kind) {
		c.metrics.diagnostics.WithLabelValues(v.Name, kind).Set(float64(n))
	}
}

// Versions returns the configured version names in configuration order.
func (c *Catalog) Versions() []string {
	return lo.Map(c.cfg.Versions, func(v VersionConfig, _ int) string { return v.Name })
}

// DefaultVersion is the version used when a query names none.
func (c *Catalog) DefaultVersion() string { return c.cfg.defaultVersion() }

// Version returns a built version. An empty name selects the default.
func (c *Catalog) Version(name string) (*Version, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	if name == "" {
		name = c.cfg.defaultVersion()
	}
	v, ok := snap.versions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, name)
	}
	return v, nil
}

// ResolveAddress resolves address in version. A nil error with ok false
// means the address is not covered by the layout.
func (c *Catalog) ResolveAddress(version string, address uint64) (*resolver.Path, bool, error) {
	v, err := c.Version(version)
	if err != nil {
		c.metrics.queries.WithLabelValues(version, "address", "error").Inc()
		return nil, false, err
	}
	p, ok := v.Resolver.ResolveAddress(address)
	c.metrics.queries.WithLabelValues(v.Name, "address", outcome(ok)).Inc()
	return p, ok, nil
}

// ResolveName returns every node of version whose name contains needle.
func (c *Catalog) ResolveName(version, needle string) ([]resolver.NameMatch, error) {
	v, err := c.Version(version)
	if err != nil {
		c.metrics.queries.WithLabelValues(version, "name", "error").Inc()
		return nil, err
	}
	matches := v.Resolver.ResolveName(needle)
	c.metrics.queries.WithLabelValues(v.Name, "name", outcome(len(matches) > 0)).Inc()
	return matches, nil
}

func outcome(found bool) string {
	if found {
		return "found"
	}
	return "not_found"
}
