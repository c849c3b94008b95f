package resolver

import (
	"fmt"

	"github.com/san11tools/memscope/pkg/layout"
)

// ResolveAddress descends from the root of s to the unit containing target.
// The returned path is always non-nil; ok is false when target lies outside
// the root or in a gap of some struct along the way.
func ResolveAddress(s *layout.Schema, target uint64) (path *Path, ok bool) {
	w := addressWalker{schema: s, path: &Path{Target: target}}
	if target < s.Base() || target >= s.End() {
		return w.path, false
	}
	w.path.Found = w.fields(s.Root(), s.Base())
	return w.path, w.path.Found
}

type addressWalker struct {
	schema *layout.Schema
	path   *Path
}

// fields scans st from its highest offset down. The first field starting at
// or before the target is the only candidate: it either contains the target
// or the target falls into the gap that follows it.
func (w *addressWalker) fields(st *layout.Struct, base uint64) bool {
	target := w.path.Target
	for f := range st.Descending() {
		if f.Offset > target-base {
			continue
		}
		start := base + f.Offset
		if target-start >= w.schema.Size(f.Node) {
			return false
		}
		w.path.Steps = append(w.path.Steps, Step{Address: start, Offset: f.Offset, Node: f.Node})
		return w.node(f.Node, start)
	}
	return false
}

func (w *addressWalker) node(n layout.Node, base uint64) bool {
	switch n := n.(type) {
	case *layout.Unit:
		w.path.Leftover = w.path.Target - base
		return true
	case *layout.Array:
		size := w.schema.Size(n.Element)
		index := (w.path.Target - base) / size
		start := base + index*size
		w.path.Steps = append(w.path.Steps, Step{
			Address: start,
			Offset:  index * size,
			Index:   index,
			Indexed: true,
			Node:    n.Element,
		})
		return w.node(n.Element, start)
	case layout.StructRef:
		return w.fields(w.schema.Struct(n.ID), base)
	}
	panic(fmt.Sprintf("unexpected node %T", n))
}
