package main

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/samber/lo"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/san11tools/memscope/pkg/catalog"
	"github.com/san11tools/memscope/pkg/declaration"
	memcontext "github.com/san11tools/memscope/pkg/util/context"
)

type convertParams struct {
	Version string
	Prefix  string
	Format  string
}

func addConvertParams(cmd *kingpin.CmdClause) *convertParams {
	params := &convertParams{}
	cmd.Arg("version", "Version whose workbook is converted.").Required().StringVar(&params.Version)
	cmd.Arg("prefix", "Storage prefix the converted workbook is written to.").Required().StringVar(&params.Prefix)
	cmd.Flag("format", "Format of the converted workbook.").Default(string(declaration.FormatYAML)).
		EnumVar(&params.Format, string(declaration.FormatCSV), string(declaration.FormatYAML), string(declaration.FormatParquet))
	return params
}

func convert(ctx context.Context, params *convertParams) error {
	vc, ok := lo.Find(config(ctx).Catalog.Versions, func(v catalog.VersionConfig) bool { return v.Name == params.Version })
	if !ok {
		return fmt.Errorf("%w: %q", catalog.ErrUnknownVersion, params.Version)
	}
	if params.Prefix == vc.WorkbookPrefix() {
		return fmt.Errorf("the converted workbook would overwrite version %s", vc.Name)
	}
	bkt, err := newBucket(ctx)
	if err != nil {
		return err
	}
	from, err := declaration.ParseFormat(vc.Format)
	if err != nil {
		return err
	}
	wb, err := declaration.Load(ctx, bkt, vc.WorkbookPrefix(), from)
	if err != nil {
		return err
	}
	to, err := declaration.ParseFormat(params.Format)
	if err != nil {
		return err
	}
	if err := declaration.Write(ctx, bkt, params.Prefix, to, wb); err != nil {
		return err
	}
	level.Info(memcontext.Logger(ctx)).Log("msg", "workbook converted", "version", vc.Name, "prefix", params.Prefix, "format", to, "structs", len(wb.Structs), "sheets", len(wb.Sheets))
	return nil
}
