package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/cfg"
	"github.com/san11tools/memscope/pkg/declaration"
	"github.com/san11tools/memscope/pkg/layout"
	objtestutil "github.com/san11tools/memscope/pkg/objstore/testutil"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

func init() {
	color.NoColor = true
}

func testWorkbook(pointSize string) *declaration.Workbook {
	w := declaration.NewWorkbook()
	w.Structs = []layout.StructDecl{{Type: "Point", Name: "point", Size: pointSize}}
	w.Sheets["Point"] = []layout.Row{
		{Address: "0", Type: "Integer", Name: "x", UnitSize: "4"},
		{Address: "4", Type: "Integer", Name: "y", UnitSize: "4"},
	}
	w.Sheets["Memory"] = []layout.Row{
		{Address: "10", Type: "Point", Name: "origin"},
		{Address: "70", Type: "Function", Name: "routine", UnitSize: "16"},
	}
	return w
}

// setup writes the v1 workbook to a filesystem storage and returns a
// context carrying the loaded configuration and an output buffer.
func setup(t *testing.T, args ...string) (context.Context, *bytes.Buffer, string) {
	t.Helper()
	ctx := memcontext.WithLogger(context.Background(), log.NewNopLogger())
	dir := t.TempDir()
	bkt, _ := objtestutil.NewFilesystemBucket(t, ctx, dir)
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatCSV, testWorkbook("8")))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "descriptions", "v1", "Memory"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "descriptions", "v1", "Memory", "70.txt"), []byte("push ebp\nmov ebp, esp\n"), 0o644))

	c, err := cfg.Load("", false, append([]string{
		"-storage.filesystem.dir=" + dir,
		"-catalog.versions=v1",
	}, args...))
	require.NoError(t, err)

	var out bytes.Buffer
	ctx = withConfig(withOutput(ctx, &out), c)
	return ctx, &out, dir
}

func query(version, output string) *queryParams {
	return &queryParams{Version: version, Output: output, NoColor: true}
}

func TestResolve(t *testing.T) {
	ctx, out, _ := setup(t)
	err := resolve(ctx, &resolveParams{queryParams: query("v1", outputText), Addresses: []string{"14", "0x72"}})
	require.NoError(t, err)
	assert.Equal(t, `target address: 0x14
 -> [0x0] Memory Memory
 -> [0x10] Point origin
 -> [0x14] Integer y
 +0x0
target address: 0x72
 -> [0x0] Memory Memory
 -> [0x70] Code routine
 +0x2
    | push ebp
    | mov ebp, esp
`, out.String())
}

func TestResolve_NotFound(t *testing.T) {
	ctx, out, _ := setup(t)
	err := resolve(ctx, &resolveParams{queryParams: query("v1", outputJSON), Addresses: []string{"0x20"}})
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out.String(), `"found":false`)
	assert.Contains(t, out.String(), `"target":"0x20"`)
}

func TestResolve_Errors(t *testing.T) {
	ctx, _, _ := setup(t)
	err := resolve(ctx, &resolveParams{queryParams: query("v1", outputText), Addresses: []string{"zz"}})
	require.ErrorContains(t, err, `invalid address "zz"`)

	err = resolve(ctx, &resolveParams{queryParams: query("v9", outputText), Addresses: []string{"14"}})
	require.ErrorContains(t, err, "unknown version")
}

func TestSearch(t *testing.T) {
	ctx, out, _ := setup(t)
	require.NoError(t, search(ctx, &searchParams{queryParams: query("v1", outputJSON), Name: "o"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"path":""`)
	assert.Contains(t, lines[0], `"name":"Memory"`)
	assert.Contains(t, lines[1], `"path":"origin"`)
	assert.Contains(t, lines[2], `"address":"0x70"`)

	out.Reset()
	require.NoError(t, search(ctx, &searchParams{queryParams: query("v1", outputTable), Name: "y"}))
	assert.Contains(t, out.String(), "origin.y")
	assert.Contains(t, out.String(), "0x14")
}

func TestTree(t *testing.T) {
	ctx, out, _ := setup(t)
	require.NoError(t, tree(ctx, &treeParams{Version: "v1", Type: "Point"}))
	assert.Contains(t, out.String(), "x")
	assert.Contains(t, out.String(), "+0x4")

	require.Error(t, tree(ctx, &treeParams{Version: "v1", Type: "Nope"}))
}

func TestCheck(t *testing.T) {
	ctx, out, _ := setup(t)
	require.NoError(t, check(ctx))
	assert.Equal(t, "v1: no diagnostics\n", out.String())
}

func TestCheck_Fatal(t *testing.T) {
	ctx, out, dir := setup(t)
	bkt, _ := objtestutil.NewFilesystemBucket(t, ctx, dir)
	require.NoError(t, declaration.Write(ctx, bkt, "v1", declaration.FormatCSV, testWorkbook("0x10000000")))

	require.ErrorIs(t, check(ctx), errFailed)
	assert.Contains(t, out.String(), "fatal")
	assert.Contains(t, out.String(), "oversized_nesting")
}

func TestConvert(t *testing.T) {
	ctx, _, dir := setup(t)
	require.NoError(t, convert(ctx, &convertParams{Version: "v1", Prefix: "v1-yaml", Format: "yaml"}))
	assert.FileExists(t, filepath.Join(dir, "v1-yaml", "workbook.yaml"))

	require.ErrorContains(t, convert(ctx, &convertParams{Version: "v1", Prefix: "v1", Format: "yaml"}), "overwrite")
	require.ErrorContains(t, convert(ctx, &convertParams{Version: "v9", Prefix: "x", Format: "yaml"}), "unknown version")
}

func TestReplLoop(t *testing.T) {
	ctx, out, _ := setup(t)
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	require.NoError(t, err)

	input := newScanReader(strings.NewReader("14\n\n  bogus\n0x20\nexit\n10\n"))
	require.NoError(t, replLoop(ctx, cat, &replParams{queryParams: query("v1", outputText)}, input))

	got := out.String()
	assert.Contains(t, got, "target address: 0x14")
	assert.Contains(t, got, `invalid address "bogus"`)
	assert.Contains(t, got, "not found")
	assert.NotContains(t, got, "target address: 0x10")
	line, err := input.Readline()
	require.NoError(t, err)
	assert.Equal(t, "10", line)
}

func TestReplLoop_EOF(t *testing.T) {
	ctx, out, _ := setup(t)
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	require.NoError(t, err)

	input := newScanReader(strings.NewReader("0x4"))
	require.NoError(t, replLoop(ctx, cat, &replParams{queryParams: query("v1", outputText)}, input))
	assert.Contains(t, out.String(), "not found")
}

func TestPrintConfig(t *testing.T) {
	ctx, out, _ := setup(t)
	require.NoError(t, printConfig(ctx))
	assert.Contains(t, out.String(), "listen_address: :4040")
	assert.Contains(t, out.String(), "name: v1")
}

func TestConfigFlags(t *testing.T) {
	app := kingpin.New("memscope", "")
	flags := addConfigFlags(app, cfg.FlagSet())
	app.Command("check", "")

	_, err := app.Parse([]string{"--catalog.versions=a,b", "--catalog.watch", "--server.listen-address=:1234", "check"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-catalog.versions=a,b", "-catalog.watch=true", "-server.listen-address=:1234"}, flags.args)

	c, err := flags.load()
	require.NoError(t, err)
	assert.True(t, c.Catalog.Watch)
	assert.Equal(t, ":1234", c.Server.ListenAddress)
	require.Len(t, c.Catalog.Versions, 2)
}
