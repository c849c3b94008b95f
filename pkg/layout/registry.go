package layout

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Row is one field declaration of a struct sheet. Cells are kept as written;
// the registry parses them.
type Row struct {
	Address     string
	Type        string
	Name        string
	Description string
	UnitSize    string
	ArrayLen    string
}

// StructDecl is one row of the structs table.
type StructDecl struct {
	Type        string
	Name        string
	Description string
	Size        string
}

// RootDecl describes the struct spanning the whole address space.
type RootDecl struct {
	Type        string
	Name        string
	Description string
	Size        uint64
	Base        uint64
}

type Option func(*Registry)

// WithAddressBase sets the base used for offset cells without a 0x prefix
// or h suffix. Defaults to 16.
func WithAddressBase(base int) Option {
	return func(r *Registry) { r.addressBase = base }
}

// Registry owns every struct definition of one schema. It is filled in two
// phases: all structs are declared, then each is populated from its rows.
// Registry is not safe for concurrent use; Freeze it into a Schema first.
type Registry struct {
	logger      log.Logger
	addressBase int

	structs []*Struct
	byName  map[string]StructID
	root    *Struct
	base    uint64
	diags   Diagnostics
	frozen  bool
}

func NewRegistry(logger log.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:      logger,
		addressBase: 16,
		byName:      make(map[string]StructID),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Declare registers an empty struct.
func (r *Registry) Declare(typeName, name, description string, size uint64) (StructID, error) {
	if r.frozen {
		return 0, ErrRegistryFrozen
	}
	_, declared := r.byName[typeName]
	if declared || (r.root != nil && r.root.TypeName == typeName) {
		err := fmt.Errorf("%w: %s", ErrDuplicateType, typeName)
		r.report(Diagnostic{Struct: typeName, Err: err, Fatal: true})
		return 0, err
	}
	s := r.newStruct(typeName, name, description, size)
	r.byName[typeName] = s.ID
	return s.ID, nil
}

// DeclareRoot registers the struct spanning the whole address space. The root
// is not reachable by type name from any field.
func (r *Registry) DeclareRoot(d RootDecl) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if r.root != nil {
		return fmt.Errorf("%w: root already declared as %s", ErrInvalidRootDeclaration, r.root.TypeName)
	}
	if d.Type == "" || d.Size == 0 {
		return fmt.Errorf("%w: type and size are required", ErrInvalidRootDeclaration)
	}
	if _, ok := r.byName[d.Type]; ok {
		err := fmt.Errorf("%w: root type %s is already declared as a struct", ErrDuplicateType, d.Type)
		r.report(Diagnostic{Struct: d.Type, Err: err, Fatal: true})
		return err
	}
	if d.Base+d.Size < d.Base {
		return fmt.Errorf("%w: base 0x%X + size 0x%X overflows", ErrInvalidRootDeclaration, d.Base, d.Size)
	}
	r.root = r.newStruct(d.Type, d.Name, d.Description, d.Size)
	r.base = d.Base
	return nil
}

// DeclareAll declares every struct of the structs table. Rows with an
// unparsable size or a duplicate type are reported and skipped.
func (r *Registry) DeclareAll(decls []StructDecl) {
	for i, d := range decls {
		typeName := strings.TrimSpace(d.Type)
		if typeName == "" {
			r.report(Diagnostic{Struct: "structs", Row: i + 1, Err: fmt.Errorf("%w: empty type name", ErrMalformedDeclaration)})
			continue
		}
		size, err := ParseNumber(d.Size, 10)
		if err == nil && size == 0 {
			err = fmt.Errorf("%w: zero size", ErrMalformedDeclaration)
		}
		if err != nil {
			r.report(Diagnostic{Struct: typeName, Row: i + 1, Err: err, Fatal: true})
			continue
		}
		_, _ = r.Declare(typeName, d.Name, d.Description, size)
	}
}

func (r *Registry) newStruct(typeName, name, description string, size uint64) *Struct {
	if name == "" {
		name = typeName
	}
	s := &Struct{
		ID:          StructID(len(r.structs)),
		TypeName:    typeName,
		Name:        name,
		Description: description,
		Size:        size,
	}
	r.structs = append(r.structs, s)
	return s
}

// Populate fills the fields of a declared struct (or the root) from its
// sheet rows. Recoverable problems are recorded as diagnostics and the row is
// skipped. ErrOversizedNesting stops the population of this struct, leaving
// it partially populated.
func (r *Registry) Populate(typeName string, rows []Row) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	s := r.target(typeName)
	if s == nil {
		err := fmt.Errorf("%w: struct %s was never declared", ErrUnknownType, typeName)
		r.report(Diagnostic{Struct: typeName, Err: err})
		return err
	}
	for i, row := range rows {
		if err := r.populateRow(s, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) target(typeName string) *Struct {
	if r.root != nil && r.root.TypeName == typeName {
		return r.root
	}
	if id, ok := r.byName[typeName]; ok {
		return r.structs[id]
	}
	return nil
}

func (r *Registry) populateRow(s *Struct, rowNum int, row Row) error {
	address, err := ParseNumber(row.Address, r.addressBase)
	if err != nil {
		r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Err: fmt.Errorf("address: %w", err)})
		return nil
	}
	var count uint64
	if strings.TrimSpace(row.ArrayLen) != "" {
		if count, err = ParseNumber(row.ArrayLen, 10); err != nil {
			r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Err: fmt.Errorf("array length: %w", err)})
			return nil
		}
	}

	offset := fmt.Sprintf("0x%X", address)

	elem, err := r.element(s, address, row)
	switch {
	case err == nil:
	case isFatal(err):
		r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Offset: offset, Err: err, Fatal: true})
		return err
	default:
		r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Offset: offset, Err: err})
		return nil
	}

	var n Node = elem
	if count > 0 {
		n = &Array{Name: displayName(row.Name, elem), Description: row.Description, Element: elem, Count: count}
	}
	size, ok := r.size(n)
	if !ok || address+size < address {
		err := fmt.Errorf("%w: field at 0x%X overflows the address space", ErrMalformedDeclaration, address)
		r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Offset: offset, Err: err})
		return nil
	}
	if !s.insert(Field{Offset: address, Node: n}) {
		err := fmt.Errorf("%w: 0x%X already holds %q, keeping it", ErrDuplicateOffset, address, r.label(s, address))
		r.report(Diagnostic{Struct: s.TypeName, Row: rowNum, Offset: offset, Err: err})
	}
	return nil
}

func (r *Registry) element(s *Struct, address uint64, row Row) (Node, error) {
	typeName := strings.TrimSpace(row.Type)
	kind, primitive := Integer, true
	if typeName != "" {
		kind, primitive = ParseKind(typeName)
	}
	if primitive {
		size, err := ParseNumber(row.UnitSize, 10)
		if err == nil && size == 0 {
			err = fmt.Errorf("%w: zero unit size", ErrMalformedDeclaration)
		}
		if err != nil {
			return nil, fmt.Errorf("unit size: %w", err)
		}
		return &Unit{
			Name:        nameOrPlaceholder(row.Name),
			Description: row.Description,
			Kind:        kind,
			ByteSize:    size,
			Owner:       s.TypeName,
			Offset:      address,
		}, nil
	}

	id, ok := r.byName[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	nested := r.structs[id]
	if nested.Size >= s.Size {
		return nil, fmt.Errorf("%w: %s (0x%X) in %s (0x%X)", ErrOversizedNesting, nested.TypeName, nested.Size, s.TypeName, s.Size)
	}
	ref := StructRef{ID: id, Name: nested.Name, Description: nested.Description}
	if isArray(row) {
		// Elements are labelled by their struct, the array by the row.
		return ref, nil
	}
	if strings.TrimSpace(row.Name) != "" {
		ref.Name = row.Name
	}
	if strings.TrimSpace(row.Description) != "" {
		ref.Description = row.Description
	}
	return ref, nil
}

// size is the byte size of n, false if it does not fit in 64 bits.
func (r *Registry) size(n Node) (uint64, bool) {
	switch n := n.(type) {
	case *Unit:
		return n.ByteSize, true
	case StructRef:
		return r.structs[n.ID].Size, true
	case *Array:
		elem, ok := r.size(n.Element)
		if !ok {
			return 0, false
		}
		hi, total := bits.Mul64(elem, n.Count)
		return total, hi == 0
	}
	panic(fmt.Sprintf("unexpected node %T", n))
}

func (r *Registry) label(s *Struct, offset uint64) string {
	f, _ := s.FieldAt(offset)
	return f.Node.Label()
}

func (r *Registry) report(d Diagnostic) {
	r.diags = append(r.diags, d)
	l := level.Warn(r.logger)
	if d.Fatal {
		l = level.Error(r.logger)
	}
	kv := []interface{}{"msg", "schema declaration problem", "struct", d.Struct}
	if d.Row > 0 {
		kv = append(kv, "row", d.Row)
	}
	if d.Offset != "" {
		kv = append(kv, "offset", d.Offset)
	}
	_ = l.Log(append(kv, "err", d.Err)...)
}

// Diagnostics returns every problem reported so far.
func (r *Registry) Diagnostics() Diagnostics {
	return r.diags
}

// Freeze ends construction and returns the read-only schema. The registry
// rejects further declarations.
func (r *Registry) Freeze() (*Schema, error) {
	if r.root == nil {
		return nil, fmt.Errorf("%w: root was never declared", ErrInvalidRootDeclaration)
	}
	r.frozen = true
	return &Schema{
		base:    r.base,
		root:    r.root.ID,
		structs: r.structs,
		byName:  r.byName,
	}, nil
}

func isFatal(err error) bool {
	return errors.Is(err, ErrOversizedNesting)
}

func isArray(row Row) bool {
	n, err := ParseNumber(row.ArrayLen, 10)
	return err == nil && n > 0
}

func nameOrPlaceholder(name string) string {
	if strings.TrimSpace(name) == "" {
		return PlaceholderName
	}
	return name
}

func displayName(name string, elem Node) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return elem.Label()
}
