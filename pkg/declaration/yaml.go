package declaration

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/objstore"
)

type yamlStruct struct {
	Type        string `yaml:"type"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Size        string `yaml:"size"`
}

type yamlRow struct {
	Address     string `yaml:"address"`
	Type        string `yaml:"type,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	UnitSize    string `yaml:"unit_size,omitempty"`
	ArrayLen    string `yaml:"array_len,omitempty"`
}

type yamlWorkbook struct {
	Structs []yamlStruct         `yaml:"structs"`
	Sheets  map[string][]yamlRow `yaml:"sheets"`
}

func loadYAML(ctx context.Context, bkt objstore.BucketReader, prefix string) (*Workbook, error) {
	name := objectName(prefix, yamlObject)
	buf, err := objstore.ReadAll(ctx, bkt, name)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", name)
	}
	var doc yamlWorkbook
	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", name)
	}

	w := NewWorkbook()
	for _, s := range doc.Structs {
		w.Structs = append(w.Structs, layout.StructDecl(s))
	}
	for sheet, rows := range doc.Sheets {
		out := make([]layout.Row, 0, len(rows))
		for _, r := range rows {
			out = append(out, layout.Row(r))
		}
		w.Sheets[sheet] = out
	}
	return w, nil
}

func writeYAML(ctx context.Context, bkt objstore.Bucket, prefix string, w *Workbook) error {
	doc := yamlWorkbook{Sheets: make(map[string][]yamlRow, len(w.Sheets))}
	for _, s := range w.Structs {
		doc.Structs = append(doc.Structs, yamlStruct(s))
	}
	for sheet, rows := range w.Sheets {
		out := make([]yamlRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, yamlRow(r))
		}
		doc.Sheets[sheet] = out
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	name := objectName(prefix, yamlObject)
	return errors.Wrapf(bkt.Upload(ctx, name, &buf), "uploading %s", name)
}
