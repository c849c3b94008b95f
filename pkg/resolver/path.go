package resolver

import (
	"fmt"
	"strings"

	"github.com/san11tools/memscope/pkg/layout"
)

// Step is one hop of a resolution path.
type Step struct {
	// Address is the absolute start address of Node.
	Address uint64
	// Offset is the start of Node relative to its parent.
	Offset uint64
	// Index is the element index when the step selects an array element.
	Index   uint64
	Indexed bool
	Node    layout.Node
}

// Path is the result of an address query. Steps run from the outermost
// field of the root down to the deepest node reached. A path that is not
// Found ends at the innermost container in which the target fell into a gap.
type Path struct {
	Target uint64
	Steps  []Step
	Found  bool
	// Leftover is the byte offset of Target within the final unit.
	Leftover uint64
}

// Last returns the final step, false for an empty path.
func (p *Path) Last() (Step, bool) {
	if len(p.Steps) == 0 {
		return Step{}, false
	}
	return p.Steps[len(p.Steps)-1], true
}

// Unit returns the leaf the target resolved to.
func (p *Path) Unit() (*layout.Unit, bool) {
	if !p.Found {
		return nil, false
	}
	last, _ := p.Last()
	u, ok := last.Node.(*layout.Unit)
	return u, ok
}

// Format writes the path in the console form:
//
//	target address: 0x14
//	 -> [0x10] Point origin
//	 -> [0x14] Integer y
func (p *Path) Format(s *layout.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "target address: 0x%X\n", p.Target)
	root := s.Root()
	fmt.Fprintf(&b, " -> [0x%X] %s %s\n", s.Base(), root.TypeName, root.Name)
	for _, st := range p.Steps {
		name := st.Node.Label()
		if st.Indexed {
			name = fmt.Sprintf("%s[%d]", name, st.Index)
		}
		fmt.Fprintf(&b, " -> [0x%X] %s %s\n", st.Address, s.KindLabel(st.Node), name)
	}
	if p.Found {
		fmt.Fprintf(&b, " +0x%X\n", p.Leftover)
	}
	return b.String()
}
