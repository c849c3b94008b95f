package declaration

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
	"github.com/san11tools/memscope/pkg/objstore/parquet"
)

type parquetStruct struct {
	Type        string `parquet:"type"`
	Name        string `parquet:"name"`
	Description string `parquet:"description"`
	Size        string `parquet:"size"`
}

type parquetRow struct {
	Address     string `parquet:"address"`
	Type        string `parquet:"type"`
	Name        string `parquet:"name"`
	Description string `parquet:"description"`
	UnitSize    string `parquet:"unit_size"`
	ArrayLen    string `parquet:"array_len"`
}

func loadParquet(ctx context.Context, bkt objstore.BucketReader, prefix string) (*Workbook, error) {
	structs, err := parquet.ReadRows[parquetStruct](ctx, bkt, objectName(prefix, StructsSheet+".parquet"))
	if err != nil {
		return nil, err
	}
	w := NewWorkbook()
	for _, s := range structs {
		w.Structs = append(w.Structs, layout.StructDecl(s))
	}

	objects, err := sheetObjects(ctx, bkt, prefix, ".parquet")
	if err != nil {
		return nil, errors.Wrapf(err, "listing sheets under %q", prefix)
	}
	for sheet, name := range objects {
		rows, err := parquet.ReadRows[parquetRow](ctx, bkt, name)
		if err != nil {
			return nil, err
		}
		out := make([]layout.Row, 0, len(rows))
		for _, r := range rows {
			out = append(out, layout.Row(r))
		}
		w.Sheets[sheet] = out
	}
	return w, nil
}

func writeParquet(ctx context.Context, bkt objstore.Bucket, prefix string, w *Workbook) error {
	structs := make([]parquetStruct, 0, len(w.Structs))
	for _, s := range w.Structs {
		structs = append(structs, parquetStruct(s))
	}
	if err := parquet.WriteRows(ctx, bkt, objectName(prefix, StructsSheet+".parquet"), structs); err != nil {
		return err
	}
	for _, sheet := range w.SheetNames() {
		rows := make([]parquetRow, 0, len(w.Sheets[sheet]))
		for _, r := range w.Sheets[sheet] {
			rows = append(rows, parquetRow(r))
		}
		if err := parquet.WriteRows(ctx, bkt, objectName(prefix, sheet+".parquet"), rows); err != nil {
			return err
		}
	}
	return nil
}
