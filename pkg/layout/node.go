package layout

import (
	"iter"
	"slices"
)

// PlaceholderName labels fields declared without a display name.
const PlaceholderName = "(unnamed)"

// ArrayLabel is the structural kind label of every Array node.
const ArrayLabel = "Array"

// Node is one of *Unit, *Array or StructRef. The set is closed: callers
// switch over these three cases.
type Node interface {
	// Label is the display name of the node.
	Label() string
	// Doc is the free text description of the node.
	Doc() string

	node()
}

// Unit is a non-decomposable memory region of a primitive kind.
type Unit struct {
	Name        string
	Description string
	Kind        MemoryKind
	ByteSize    uint64

	// Owner and Offset identify where the unit was declared: the type name of
	// the containing struct and the relative offset of the declaring row.
	Owner  string
	Offset uint64
}

func (u *Unit) Label() string { return u.Name }
func (u *Unit) Doc() string   { return u.Description }
func (*Unit) node()           {}

// Array is a homogeneous repetition of Element, Count times.
type Array struct {
	Name        string
	Description string
	Element     Node
	Count       uint64
}

func (a *Array) Label() string { return a.Name }
func (a *Array) Doc() string   { return a.Description }
func (*Array) node()           {}

// StructID is the stable index of a struct within its registry.
type StructID int

// StructRef is a non-owning reference to a struct definition held by the
// registry. Name and Description describe the referencing field.
type StructRef struct {
	ID          StructID
	Name        string
	Description string
}

func (r StructRef) Label() string { return r.Name }
func (r StructRef) Doc() string   { return r.Description }
func (StructRef) node()           {}

// Field is a child of a struct at a relative offset.
type Field struct {
	Offset uint64
	Node   Node
}

// Struct is a named collection of fields with an authoritative declared size.
type Struct struct {
	ID          StructID
	TypeName    string
	Name        string
	Description string
	Size        uint64

	fields []Field // declaration order
	sorted []int   // indexes into fields, ascending offset
}

func (s *Struct) Label() string { return s.Name }
func (s *Struct) Doc() string   { return s.Description }

// Len returns the number of fields.
func (s *Struct) Len() int { return len(s.fields) }

// Fields iterates fields in declaration order.
func (s *Struct) Fields() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for _, f := range s.fields {
			if !yield(f) {
				return
			}
		}
	}
}

// Descending iterates fields from the highest relative offset down.
func (s *Struct) Descending() iter.Seq[Field] {
	return func(yield func(Field) bool) {
		for i := len(s.sorted) - 1; i >= 0; i-- {
			if !yield(s.fields[s.sorted[i]]) {
				return
			}
		}
	}
}

// FieldAt returns the field declared exactly at offset.
func (s *Struct) FieldAt(offset uint64) (Field, bool) {
	i, ok := s.search(offset)
	if !ok {
		return Field{}, false
	}
	return s.fields[s.sorted[i]], true
}

func (s *Struct) search(offset uint64) (int, bool) {
	return slices.BinarySearchFunc(s.sorted, offset, func(idx int, off uint64) int {
		switch o := s.fields[idx].Offset; {
		case o < off:
			return -1
		case o > off:
			return 1
		}
		return 0
	})
}

// insert adds a field, reporting false if the offset is already taken.
func (s *Struct) insert(f Field) bool {
	i, found := s.search(f.Offset)
	if found {
		return false
	}
	s.fields = append(s.fields, f)
	s.sorted = slices.Insert(s.sorted, i, len(s.fields)-1)
	return true
}
