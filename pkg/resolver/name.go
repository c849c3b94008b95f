package resolver

import (
	"fmt"
	"strings"

	"github.com/san11tools/memscope/pkg/layout"
)

// NameMatch is one node whose display name contains the searched text.
type NameMatch struct {
	Address uint64
	Name    string
	Kind    string
	// Path is the dotted route from the root, e.g. "persons[0].name".
	Path string
}

// ResolveName walks the whole tree in pre-order, fields in declaration order,
// and reports every node whose name contains needle. Matching is case
// sensitive. Array elements are visited once, at index 0. An empty needle
// matches nothing.
func ResolveName(s *layout.Schema, needle string) []NameMatch {
	if needle == "" {
		return nil
	}
	w := nameWalker{schema: s, needle: needle}
	root := s.Root()
	if strings.Contains(root.Name, needle) {
		w.matches = append(w.matches, NameMatch{Address: s.Base(), Name: root.Name, Kind: root.TypeName})
	}
	w.fields(root, s.Base(), "")
	return w.matches
}

type nameWalker struct {
	schema  *layout.Schema
	needle  string
	matches []NameMatch
}

func (w *nameWalker) fields(st *layout.Struct, base uint64, prefix string) {
	for f := range st.Fields() {
		w.visit(f.Node, base+f.Offset, join(prefix, f.Node.Label()), true)
	}
}

func (w *nameWalker) visit(n layout.Node, addr uint64, path string, record bool) {
	if record && strings.Contains(n.Label(), w.needle) {
		w.matches = append(w.matches, NameMatch{
			Address: addr,
			Name:    n.Label(),
			Kind:    w.schema.KindLabel(n),
			Path:    path,
		})
	}
	switch n := n.(type) {
	case *layout.Unit:
	case *layout.Array:
		// An element named like its array would only repeat the array's match.
		elemPath := fmt.Sprintf("%s[0]", path)
		w.visit(n.Element, addr, elemPath, n.Element.Label() != n.Label())
	case layout.StructRef:
		w.fields(w.schema.Struct(n.ID), addr, path)
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
