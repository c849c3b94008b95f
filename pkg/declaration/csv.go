package declaration

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"github.com/grafana/dskit/runutil"
	"github.com/pkg/errors"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
)

var (
	structsHeader = []string{"type", "name", "description", "size"}
	sheetHeader   = []string{"address", "type", "name", "description", "unit_size", "array_len"}
)

func loadCSV(ctx context.Context, bkt objstore.BucketReader, prefix string) (*Workbook, error) {
	w := NewWorkbook()
	records, err := readCSV(ctx, bkt, objectName(prefix, StructsSheet+".csv"))
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		c := cells(rec, len(structsHeader))
		w.Structs = append(w.Structs, layout.StructDecl{Type: c[0], Name: c[1], Description: c[2], Size: c[3]})
	}

	objects, err := sheetObjects(ctx, bkt, prefix, ".csv")
	if err != nil {
		return nil, errors.Wrapf(err, "listing sheets under %q", prefix)
	}
	for sheet, name := range objects {
		records, err := readCSV(ctx, bkt, name)
		if err != nil {
			return nil, err
		}
		rows := make([]layout.Row, 0, len(records))
		for _, rec := range records {
			c := cells(rec, len(sheetHeader))
			rows = append(rows, layout.Row{Address: c[0], Type: c[1], Name: c[2], Description: c[3], UnitSize: c[4], ArrayLen: c[5]})
		}
		w.Sheets[sheet] = rows
	}
	return w, nil
}

// readCSV returns the records of a CSV object without its header row.
func readCSV(ctx context.Context, bkt objstore.BucketReader, name string) (_ [][]string, err error) {
	rc, err := bkt.Get(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	defer runutil.CloseWithErrCapture(&err, rc, "closing %s", name)

	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading header of %s", name)
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	return records, nil
}

// cells pads or truncates rec to n columns.
func cells(rec []string, n int) []string {
	c := make([]string, n)
	copy(c, rec)
	return c
}

func writeCSV(ctx context.Context, bkt objstore.Bucket, prefix string, w *Workbook) error {
	records := make([][]string, 0, len(w.Structs))
	for _, d := range w.Structs {
		records = append(records, []string{d.Type, d.Name, d.Description, d.Size})
	}
	if err := uploadCSV(ctx, bkt, objectName(prefix, StructsSheet+".csv"), structsHeader, records); err != nil {
		return err
	}
	for _, sheet := range w.SheetNames() {
		rows := w.Sheets[sheet]
		records := make([][]string, 0, len(rows))
		for _, r := range rows {
			records = append(records, []string{r.Address, r.Type, r.Name, r.Description, r.UnitSize, r.ArrayLen})
		}
		if err := uploadCSV(ctx, bkt, objectName(prefix, sheet+".csv"), sheetHeader, records); err != nil {
			return err
		}
	}
	return nil
}

func uploadCSV(ctx context.Context, bkt objstore.Bucket, name string, header []string, records [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(records); err != nil {
		return errors.Wrapf(err, "encoding %s", name)
	}
	return errors.Wrapf(bkt.Upload(ctx, name, &buf), "uploading %s", name)
}
