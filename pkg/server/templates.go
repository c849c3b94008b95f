package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
)

//go:embed templates
var templates embed.FS

func getTemplate(dir fs.FS, path string) (*template.Template, error) {
	b, err := fs.ReadFile(dir, path)
	if err != nil {
		return nil, fmt.Errorf("could not read file %s: %w", path, err)
	}
	tmpl, err := template.New(path).Parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("could not parse %s template: %w", path, err)
	}
	return tmpl, nil
}
