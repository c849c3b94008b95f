package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/render"
	"github.com/san11tools/memscope/pkg/resolver"
)

const (
	outputText  = "text"
	outputTable = "table"
	outputJSON  = "json"
)

type queryParams struct {
	Version string
	Output  string
	NoColor bool
}

func addQueryParams(cmd *kingpin.CmdClause, outputs ...string) *queryParams {
	params := &queryParams{}
	cmd.Arg("version", "Layout version to query.").Required().StringVar(&params.Version)
	cmd.Flag("output", "How to output the result.").Short('o').Default(outputs[0]).EnumVar(&params.Output, outputs...)
	cmd.Flag("no-color", "Disable colored output.").BoolVar(&params.NoColor)
	return params
}

func (p *queryParams) renderOptions() render.Options {
	return render.Options{Color: !p.NoColor && !color.NoColor}
}

type resolveParams struct {
	*queryParams
	Addresses []string
}

func addResolveParams(cmd *kingpin.CmdClause) *resolveParams {
	params := &resolveParams{queryParams: addQueryParams(cmd, outputText, outputTable, outputJSON)}
	cmd.Arg("address", "Addresses to resolve, hexadecimal unless prefixed with 0d.").Required().StringsVar(&params.Addresses)
	return params
}

func resolve(ctx context.Context, params *resolveParams) error {
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	v, err := cat.Version(params.Version)
	if err != nil {
		return err
	}
	notFound := 0
	for _, s := range params.Addresses {
		addr, err := layout.ParseAddress(s)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", s, err)
		}
		p, ok, err := cat.ResolveAddress(v.Name, addr)
		if err != nil {
			return err
		}
		if !ok {
			notFound++
		}
		if err := writePath(ctx, params.Output, v.Resolver.Render(ctx, p), params.renderOptions()); err != nil {
			return err
		}
	}
	if notFound > 0 {
		return errFailed
	}
	return nil
}

func writePath(ctx context.Context, format string, p resolver.RenderedPath, opts render.Options) error {
	out := output(ctx)
	switch format {
	case outputTable:
		render.Table(out, p, opts)
		return nil
	case outputJSON:
		return jsoniter.NewEncoder(out).Encode(p)
	default:
		return render.Text(out, p, opts)
	}
}

type searchParams struct {
	*queryParams
	Name string
}

func addSearchParams(cmd *kingpin.CmdClause) *searchParams {
	params := &searchParams{queryParams: addQueryParams(cmd, outputTable, outputJSON)}
	cmd.Arg("name", "Text the node names must contain. Matching is case sensitive.").Required().StringVar(&params.Name)
	return params
}

func search(ctx context.Context, params *searchParams) error {
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	matches, err := cat.ResolveName(params.Version, params.Name)
	if err != nil {
		return err
	}
	if params.Output == outputJSON {
		enc := jsoniter.NewEncoder(output(ctx))
		for _, m := range matches {
			if err := enc.Encode(map[string]interface{}{
				"address": resolver.Address(m.Address),
				"name":    m.Name,
				"kind":    m.Kind,
				"path":    m.Path,
			}); err != nil {
				return err
			}
		}
		return nil
	}
	render.Matches(output(ctx), matches, params.renderOptions())
	return nil
}

type treeParams struct {
	Version string
	Type    string
}

func addTreeParams(cmd *kingpin.CmdClause) *treeParams {
	params := &treeParams{}
	cmd.Arg("version", "Layout version to print.").Required().StringVar(&params.Version)
	cmd.Arg("type", "Struct type to print; the root when empty.").StringVar(&params.Type)
	return params
}

func tree(ctx context.Context, params *treeParams) error {
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	v, err := cat.Version(params.Version)
	if err != nil {
		return err
	}
	t, err := render.SchemaTree(v.Schema(), params.Type)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(output(ctx), t.String())
	return err
}

// check prints the diagnostics of every version. It fails when a version
// cannot be built or has fatal diagnostics.
func check(ctx context.Context) error {
	cat, err := loadCatalog(ctx, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	return checkCatalog(ctx, cat)
}

func checkCatalog(ctx context.Context, cat *catalog.Catalog) error {
	out := output(ctx)
	opts := render.Options{Color: !color.NoColor}
	fatal := false
	for _, name := range cat.Versions() {
		v, err := cat.Version(name)
		if err != nil {
			return err
		}
		if len(v.Diagnostics) == 0 {
			fmt.Fprintf(out, "%s: no diagnostics\n", name)
			continue
		}
		render.Diagnostics(out, name, v.Diagnostics, opts)
		fatal = fatal || v.Diagnostics.Fatal()
	}
	if fatal {
		return errFailed
	}
	return nil
}

func printConfig(ctx context.Context) error {
	buf, err := config(ctx).YAMLBytes()
	if err != nil {
		return err
	}
	_, err = output(ctx).Write(buf)
	return err
}
