// Package declaration reads layout workbooks: the structs table plus one
// field sheet per struct type, stored as CSV, YAML or parquet objects.
package declaration

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatYAML    Format = "yaml"
	FormatParquet Format = "parquet"

	// FormatAuto picks the format from the objects found under the prefix.
	FormatAuto Format = "auto"

	StructsSheet = "structs"
	yamlObject   = "workbook.yaml"
)

var (
	Formats = []Format{FormatAuto, FormatCSV, FormatYAML, FormatParquet}

	ErrUnknownFormat = errors.New("unknown workbook format")
	ErrNoWorkbook    = errors.New("no workbook found")
)

func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatAuto, nil
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// Workbook is a fully loaded declaration source.
type Workbook struct {
	Structs []layout.StructDecl
	Sheets  map[string][]layout.Row
}

var _ layout.Source = (*Workbook)(nil)

func NewWorkbook() *Workbook {
	return &Workbook{Sheets: make(map[string][]layout.Row)}
}

func (w *Workbook) StructDecls() []layout.StructDecl { return w.Structs }

func (w *Workbook) Sheet(typeName string) ([]layout.Row, bool) {
	rows, ok := w.Sheets[typeName]
	return rows, ok
}

// SheetNames returns the sheet names in lexical order.
func (w *Workbook) SheetNames() []string {
	names := make([]string, 0, len(w.Sheets))
	for name := range w.Sheets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load reads the workbook stored under prefix.
func Load(ctx context.Context, bkt objstore.BucketReader, prefix string, format Format) (*Workbook, error) {
	if format == FormatAuto || format == "" {
		var err error
		if format, err = DetectFormat(ctx, bkt, prefix); err != nil {
			return nil, err
		}
	}
	switch format {
	case FormatCSV:
		return loadCSV(ctx, bkt, prefix)
	case FormatYAML:
		return loadYAML(ctx, bkt, prefix)
	case FormatParquet:
		return loadParquet(ctx, bkt, prefix)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Write stores w under prefix in the given format.
func Write(ctx context.Context, bkt objstore.Bucket, prefix string, format Format, w *Workbook) error {
	switch format {
	case FormatCSV:
		return writeCSV(ctx, bkt, prefix, w)
	case FormatYAML:
		return writeYAML(ctx, bkt, prefix, w)
	case FormatParquet:
		return writeParquet(ctx, bkt, prefix, w)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// DetectFormat looks for workbook.yaml, structs.parquet and structs.csv, in
// that order.
func DetectFormat(ctx context.Context, bkt objstore.BucketReader, prefix string) (Format, error) {
	candidates := []struct {
		format Format
		name   string
	}{
		{FormatYAML, yamlObject},
		{FormatParquet, StructsSheet + ".parquet"},
		{FormatCSV, StructsSheet + ".csv"},
	}
	for _, c := range candidates {
		ok, err := bkt.Exists(ctx, objectName(prefix, c.name))
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", objectName(prefix, c.name), err)
		}
		if ok {
			return c.format, nil
		}
	}
	return "", fmt.Errorf("%w under %q", ErrNoWorkbook, prefix)
}

// sheetObjects lists the sheet objects with the given extension under
// prefix, keyed by sheet name.
func sheetObjects(ctx context.Context, bkt objstore.BucketReader, prefix, ext string) (map[string]string, error) {
	dir := ""
	if prefix != "" {
		dir = strings.TrimSuffix(prefix, "/") + "/"
	}
	objects := make(map[string]string)
	err := bkt.Iter(ctx, dir, func(name string) error {
		if strings.HasSuffix(name, "/") || path.Ext(name) != ext {
			return nil
		}
		sheet := strings.TrimSuffix(path.Base(name), ext)
		if sheet != StructsSheet {
			objects[sheet] = name
		}
		return nil
	})
	return objects, err
}

func objectName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
