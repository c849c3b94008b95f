package layout

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Schema is the frozen result of a Registry: every struct definition plus the
// root describing the whole address space. A Schema is never mutated and is
// safe for concurrent use.
type Schema struct {
	base    uint64
	root    StructID
	structs []*Struct
	byName  map[string]StructID
}

// Base is the absolute address at which the root starts.
func (s *Schema) Base() uint64 { return s.base }

// End is the first absolute address past the root.
func (s *Schema) End() uint64 { return s.base + s.Root().Size }

func (s *Schema) Root() *Struct { return s.structs[s.root] }

// Struct returns the definition behind a reference.
func (s *Schema) Struct(id StructID) *Struct { return s.structs[id] }

// Lookup finds a named struct. The root is not reachable by name.
func (s *Schema) Lookup(typeName string) (*Struct, bool) {
	id, ok := s.byName[typeName]
	if !ok {
		return nil, false
	}
	return s.structs[id], true
}

// Structs returns the named structs in declaration order.
func (s *Schema) Structs() []*Struct {
	res := make([]*Struct, 0, len(s.byName))
	for _, st := range s.structs {
		if st.ID != s.root {
			res = append(res, st)
		}
	}
	return res
}

// Size returns the byte size of a node.
func (s *Schema) Size(n Node) uint64 {
	switch n := n.(type) {
	case *Unit:
		return n.ByteSize
	case *Array:
		return s.Size(n.Element) * n.Count
	case StructRef:
		return s.structs[n.ID].Size
	}
	panic(fmt.Sprintf("unexpected node %T", n))
}

// KindLabel is the structural kind of a node: the primitive kind name,
// "Array", or the struct type name.
func (s *Schema) KindLabel(n Node) string {
	switch n := n.(type) {
	case *Unit:
		return n.Kind.String()
	case *Array:
		return ArrayLabel
	case StructRef:
		return s.structs[n.ID].TypeName
	}
	panic(fmt.Sprintf("unexpected node %T", n))
}

// Source supplies declaration tables to Build.
type Source interface {
	StructDecls() []StructDecl
	// Sheet returns the field rows of a struct type, false if the source has
	// no sheet for it.
	Sheet(typeName string) ([]Row, bool)
}

// Build runs both registry phases over src and freezes the result. Problems
// local to a struct are returned as diagnostics; the error is reserved for
// an unusable root.
func Build(logger log.Logger, root RootDecl, src Source, opts ...Option) (*Schema, Diagnostics, error) {
	r := NewRegistry(logger, opts...)
	if err := r.DeclareRoot(root); err != nil {
		return nil, nil, err
	}
	decls := src.StructDecls()
	r.DeclareAll(decls)

	populated := make(map[string]bool, len(decls))
	for _, d := range decls {
		typeName := strings.TrimSpace(d.Type)
		if _, ok := r.byName[typeName]; !ok || populated[typeName] {
			continue
		}
		populated[typeName] = true
		r.populateFrom(src, typeName)
	}
	r.populateFrom(src, root.Type)

	schema, err := r.Freeze()
	if err != nil {
		return nil, r.Diagnostics(), err
	}
	_ = level.Debug(logger).Log("msg", "schema built", "root", root.Type, "structs", len(schema.byName), "diagnostics", len(r.diags))
	return schema, r.Diagnostics(), nil
}

func (r *Registry) populateFrom(src Source, typeName string) {
	rows, ok := src.Sheet(typeName)
	if !ok {
		r.report(Diagnostic{Struct: typeName, Err: fmt.Errorf("%w for %s", ErrMissingSheet, typeName)})
		return
	}
	// Failures are already recorded as diagnostics.
	_ = r.Populate(typeName, rows)
}
