// Package render formats resolution results for terminals.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mitchellh/go-wordwrap"
	"github.com/olekukonko/tablewriter"

	"github.com/san11tools/memscope/pkg/layout"
	"github.com/san11tools/memscope/pkg/resolver"
)

// Extended descriptions are wrapped at this many columns.
const descriptionWidth = 96

type Options struct {
	Color bool
}

type palette struct {
	address *color.Color
	kind    *color.Color
	name    *color.Color
	warn    *color.Color
	fatal   *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		address: color.New(color.FgYellow),
		kind:    color.New(color.FgCyan),
		name:    color.New(color.Bold),
		warn:    color.New(color.FgYellow),
		fatal:   color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.address, p.kind, p.name, p.warn, p.fatal} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Text writes p in the console form:
//
//	target address: 0x14
//	 -> [0x0] Memory Memory
//	 -> [0x10] Point origin
//	 -> [0x14] Integer y
//	 +0x0
func Text(w io.Writer, p resolver.RenderedPath, opts Options) error {
	pal := newPalette(opts.Color)
	var b strings.Builder
	fmt.Fprintf(&b, "target address: %s\n", pal.address.Sprint(p.Target))
	line := func(s resolver.RenderedStep) {
		name := s.Name
		if s.Index != nil {
			name = fmt.Sprintf("%s[%d]", name, *s.Index)
		}
		fmt.Fprintf(&b, " -> [%s] %s %s\n", pal.address.Sprint(s.Address), pal.kind.Sprint(s.Kind), pal.name.Sprint(name))
	}
	line(p.Root)
	for _, s := range p.Steps {
		line(s)
	}
	if p.Found {
		fmt.Fprintf(&b, " +0x%X\n", p.Leftover)
	} else {
		b.WriteString(pal.warn.Sprint("not found") + "\n")
	}
	if p.Extended != "" {
		for _, l := range strings.Split(wordwrap.WrapString(p.Extended, descriptionWidth), "\n") {
			fmt.Fprintf(&b, "    | %s\n", l)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Table writes the steps of p as a table, root first.
func Table(w io.Writer, p resolver.RenderedPath, opts Options) {
	pal := newPalette(opts.Color)
	table := newTable(w, []string{"Address", "Offset", "Kind", "Name", "Size", "Description"})
	for _, s := range append([]resolver.RenderedStep{p.Root}, p.Steps...) {
		name := s.Name
		if s.Index != nil {
			name += "[" + strconv.FormatUint(*s.Index, 10) + "]"
		}
		table.Append([]string{
			pal.address.Sprint(s.Address),
			s.Offset.String(),
			pal.kind.Sprint(s.Kind),
			pal.name.Sprint(name),
			humanize.IBytes(s.Size),
			s.Description,
		})
	}
	if p.Found {
		table.SetFooter([]string{"", "", "", "leftover", "+" + resolver.Address(p.Leftover).String(), ""})
	} else {
		table.SetFooter([]string{"", "", "", "", pal.warn.Sprint("not found"), ""})
	}
	table.Render()
}

// Matches writes the result of a name search.
func Matches(w io.Writer, matches []resolver.NameMatch, opts Options) {
	pal := newPalette(opts.Color)
	table := newTable(w, []string{"Address", "Kind", "Path"})
	for _, m := range matches {
		path := m.Path
		if path == "" {
			path = m.Name
		}
		table.Append([]string{
			pal.address.Sprint(resolver.Address(m.Address)),
			pal.kind.Sprint(m.Kind),
			path,
		})
	}
	table.SetFooter([]string{"", "matches", humanize.Comma(int64(len(matches)))})
	table.Render()
}

// Diagnostics writes the build problems of a version.
func Diagnostics(w io.Writer, version string, diags layout.Diagnostics, opts Options) {
	pal := newPalette(opts.Color)
	table := newTable(w, []string{"Version", "Severity", "Kind", "Struct", "Row", "Error"})
	for _, d := range diags {
		severity := pal.warn.Sprint("warn")
		if d.Fatal {
			severity = pal.fatal.Sprint("fatal")
		}
		row := ""
		if d.Row > 0 {
			row = strconv.Itoa(d.Row)
		}
		table.Append([]string{version, severity, d.Kind(), d.Struct, row, d.Err.Error()})
	}
	table.Render()
}
