package render

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/xlab/treeprint"

	"github.com/san11tools/memscope/pkg/layout"
)

// SchemaTree renders the struct typeName, or the root when typeName is
// empty, with every nested field. Array elements are expanded once.
func SchemaTree(s *layout.Schema, typeName string) (treeprint.Tree, error) {
	st := s.Root()
	if typeName != "" {
		var ok bool
		if st, ok = s.Lookup(typeName); !ok {
			return nil, fmt.Errorf("%w: %s", layout.ErrUnknownType, typeName)
		}
	}
	tree := treeprint.NewWithRoot(fmt.Sprintf("%s %s (%s)", st.TypeName, st.Name, humanize.IBytes(st.Size)))
	addFields(s, tree, st)
	return tree, nil
}

func addFields(s *layout.Schema, tree treeprint.Tree, st *layout.Struct) {
	for f := range st.Fields() {
		addNode(s, tree, fmt.Sprintf("+0x%X", f.Offset), f.Node)
	}
}

func addNode(s *layout.Schema, tree treeprint.Tree, meta string, n layout.Node) {
	label := fmt.Sprintf("%s %s (%s)", s.KindLabel(n), n.Label(), humanize.IBytes(s.Size(n)))
	switch n := n.(type) {
	case *layout.Unit:
		tree.AddMetaNode(meta, label)
	case *layout.Array:
		branch := tree.AddMetaBranch(meta, fmt.Sprintf("%s x%d", label, n.Count))
		addNode(s, branch, "[i]", n.Element)
	case layout.StructRef:
		branch := tree.AddMetaBranch(meta, label)
		addFields(s, branch, s.Struct(n.ID))
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}
