package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san11tools/memscope/pkg/declaration"
	"github.com/san11tools/memscope/pkg/description"
	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
	objtestutil "github.com/san11tools/memscope/pkg/objstore/testutil"
)

// pointWorkbook declares a Point at 0x10 and a routine at 0x70 in a 0x100
// byte root named Memory.
func pointWorkbook(yName string) *declaration.Workbook {
	w := declaration.NewWorkbook()
	w.Structs = []layout.StructDecl{{Type: "Point", Name: "point", Description: "a 2D point", Size: "8"}}
	w.Sheets["Point"] = []layout.Row{
		{Address: "0", Type: "Integer", Name: "x", UnitSize: "4"},
		{Address: "4", Type: "Integer", Name: yName, UnitSize: "4"},
	}
	w.Sheets["Memory"] = []layout.Row{
		{Address: "10", Type: "Point", Name: "origin"},
		{Address: "70", Type: "Function", Name: "routine", UnitSize: "16"},
	}
	return w
}

func testConfig() Config {
	return Config{
		Versions: []VersionConfig{
			{Name: "v1", Format: "csv", Root: RootConfig{Size: "0x100"}},
			{Name: "v2", Prefix: "second", Root: RootConfig{Type: "Memory", Name: "RAM", Size: "256", Base: "1000"}},
		},
	}
}

func newTestCatalog(t *testing.T) (*Catalog, objstore.Bucket, *prometheus.Registry) {
	ctx := context.Background()
	bkt := objtestutil.NewMemBucket(t, map[string]string{
		"descriptions/v1/Memory/70.txt": "push ebp",
	})
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatCSV, pointWorkbook("y")))
	require.NoError(t, declaration.Write(ctx, bkt, "second", declaration.FormatYAML, pointWorkbook("y")))

	reg := prometheus.NewRegistry()
	c := New(testConfig(), description.Config{Prefix: "descriptions", CacheSize: 16}, bkt, log.NewNopLogger(), reg)
	return c, bkt, reg
}

func TestCatalog_NotLoaded(t *testing.T) {
	c, _, _ := newTestCatalog(t)
	_, err := c.Version("v1")
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestCatalog_ResolveAddress(t *testing.T) {
	c, _, reg := newTestCatalog(t)
	require.NoError(t, c.Reload(context.Background()))
	assert.Equal(t, []string{"v1", "v2"}, c.Versions())
	assert.Equal(t, "v1", c.DefaultVersion())

	p, ok, err := c.ResolveAddress("v1", 0x14)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "y", p.Steps[1].Node.Label())

	// v2 is based at 0x1000.
	p, ok, err = c.ResolveAddress("v2", 0x1014)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1014), p.Steps[1].Address)

	_, ok, err = c.ResolveAddress("", 0x19)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.ResolveAddress("v9", 0x14)
	require.ErrorIs(t, err, ErrUnknownVersion)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.queries.WithLabelValues("v1", "address", "found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.queries.WithLabelValues("v1", "address", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.queries.WithLabelValues("v9", "address", "error")))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP memscope_catalog_structs Number of struct types declared by a version.
# TYPE memscope_catalog_structs gauge
memscope_catalog_structs{version="v1"} 1
memscope_catalog_structs{version="v2"} 1
`), "memscope_catalog_structs"))
}

func TestCatalog_ResolveName(t *testing.T) {
	c, _, _ := newTestCatalog(t)
	require.NoError(t, c.Reload(context.Background()))

	matches, err := c.ResolveName("v2", "y")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, uint64(0x1014), matches[0].Address)
	assert.Equal(t, "origin.y", matches[0].Path)

	// The root of v1 is named Memory.
	matches, err = c.ResolveName("v1", "y")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Memory", matches[0].Name)
	assert.Equal(t, "origin.y", matches[1].Path)

	_, err = c.ResolveName("nope", "y")
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func TestCatalog_ExtendedDescription(t *testing.T) {
	c, _, _ := newTestCatalog(t)
	require.NoError(t, c.Reload(context.Background()))

	v, err := c.Version("v1")
	require.NoError(t, err)
	p, ok := v.Resolver.ResolveAddress(0x75)
	require.True(t, ok)
	rendered := v.Resolver.Render(context.Background(), p)
	assert.Equal(t, "push ebp", rendered.Extended)
	assert.Equal(t, "Code", rendered.Steps[0].Kind)
}

func TestCatalog_ReloadFailureKeepsPrevious(t *testing.T) {
	c, bkt, reg := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, c.Reload(ctx))

	require.NoError(t, bkt.Delete(ctx, "second/workbook.yaml"))
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatCSV, pointWorkbook("why")))
	require.ErrorIs(t, c.Reload(ctx), declaration.ErrNoWorkbook)

	matches, err := c.ResolveName("v1", "why")
	require.NoError(t, err)
	assert.Empty(t, matches, "failed reload must not replace any version")

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP memscope_catalog_reloads_total Number of catalog reloads by outcome.
# TYPE memscope_catalog_reloads_total counter
memscope_catalog_reloads_total{outcome="failure"} 1
memscope_catalog_reloads_total{outcome="success"} 1
`), "memscope_catalog_reloads_total"))
}

func TestCatalog_Diagnostics(t *testing.T) {
	ctx := context.Background()
	bkt := objtestutil.NewMemBucket(t, nil)
	w := pointWorkbook("y")
	w.Sheets["Memory"] = append(w.Sheets["Memory"],
		layout.Row{Address: "10", Type: "Integer", Name: "dup", UnitSize: "4"},
		layout.Row{Address: "90", Type: "Missing", Name: "ghost"},
	)
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatParquet, w))

	reg := prometheus.NewRegistry()
	cfg := Config{Versions: []VersionConfig{{Name: "v1", Root: RootConfig{Size: "0x100"}}}}
	c := New(cfg, description.Config{CacheSize: 1}, bkt, log.NewNopLogger(), reg)
	require.NoError(t, c.Reload(ctx))

	v, err := c.Version("v1")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Diagnostics.Count(layout.ErrDuplicateOffset))
	assert.Equal(t, 1, v.Diagnostics.Count(layout.ErrUnknownType))

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP memscope_catalog_diagnostics Number of diagnostics reported by the last build of a version.
# TYPE memscope_catalog_diagnostics gauge
memscope_catalog_diagnostics{kind="duplicate_offset",version="v1"} 1
memscope_catalog_diagnostics{kind="unknown_type",version="v1"} 1
`), "memscope_catalog_diagnostics"))
}

func TestConfig_Validate(t *testing.T) {
	for name, tc := range map[string]struct {
		cfg Config
		err string
	}{
		"valid":           {cfg: testConfig()},
		"no versions":     {cfg: Config{}, err: "at least one version"},
		"unnamed":         {cfg: Config{Versions: []VersionConfig{{}}}, err: "name is required"},
		"duplicate":       {cfg: Config{Versions: []VersionConfig{{Name: "a"}, {Name: "a"}}}, err: "duplicate versions"},
		"bad format":      {cfg: Config{Versions: []VersionConfig{{Name: "a", Format: "xls"}}}, err: "unknown workbook format"},
		"bad base":        {cfg: Config{Versions: []VersionConfig{{Name: "a", AddressBase: 8}}}, err: "address_base"},
		"bad root size":   {cfg: Config{Versions: []VersionConfig{{Name: "a", Root: RootConfig{Size: "big"}}}}, err: "root size"},
		"unknown default": {cfg: Config{Versions: []VersionConfig{{Name: "a"}}, DefaultVersion: "b"}, err: "default version"},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.err)
		})
	}
}

func TestRootConfig_Decl(t *testing.T) {
	d, err := RootConfig{}.Decl()
	require.NoError(t, err)
	assert.Equal(t, layout.RootDecl{Type: "Memory", Name: "Memory", Size: 0x10000000}, d)

	d, err = RootConfig{Type: "San11", Name: "memory", Size: "100h", Base: "0d4096"}.Decl()
	require.NoError(t, err)
	assert.Equal(t, layout.RootDecl{Type: "San11", Name: "memory", Size: 0x100, Base: 4096}, d)
}
