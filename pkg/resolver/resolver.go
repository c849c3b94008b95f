package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/san11tools/memscope/pkg/layout"
)

// Address is an absolute address; it marshals as a 0x-prefixed hex string.
type Address uint64

func (a Address) String() string { return fmt.Sprintf("0x%X", uint64(a)) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return err
	}
	*a = Address(v)
	return nil
}

// RenderedStep is a path step flattened for presentation.
type RenderedStep struct {
	Address     Address `json:"address"`
	Offset      Address `json:"offset"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind"`
	Size        uint64  `json:"size"`
	Description string  `json:"description,omitempty"`
	Index       *uint64 `json:"index,omitempty"`
}

// RenderedPath is a resolution result flattened for presentation.
type RenderedPath struct {
	Target   Address        `json:"target"`
	Found    bool           `json:"found"`
	Root     RenderedStep   `json:"root"`
	Steps    []RenderedStep `json:"steps"`
	Leftover uint64         `json:"leftover"`
	// Extended is the extended description of a final Code unit.
	Extended string `json:"extended,omitempty"`
}

// Resolver answers queries against one schema.
type Resolver struct {
	schema       *layout.Schema
	descriptions *Descriptions
}

// New returns a resolver; descriptions may be nil.
func New(schema *layout.Schema, descriptions *Descriptions) *Resolver {
	return &Resolver{schema: schema, descriptions: descriptions}
}

func (r *Resolver) Schema() *layout.Schema { return r.schema }

func (r *Resolver) ResolveAddress(target uint64) (*Path, bool) {
	return ResolveAddress(r.schema, target)
}

func (r *Resolver) ResolveName(needle string) []NameMatch {
	return ResolveName(r.schema, needle)
}

// Render flattens p, loading the extended description of a final Code unit.
func (r *Resolver) Render(ctx context.Context, p *Path) RenderedPath {
	root := r.schema.Root()
	res := RenderedPath{
		Target: Address(p.Target),
		Found:  p.Found,
		Root: RenderedStep{
			Address:     Address(r.schema.Base()),
			Name:        root.Name,
			Kind:        root.TypeName,
			Size:        root.Size,
			Description: root.Description,
		},
		Steps:    make([]RenderedStep, 0, len(p.Steps)),
		Leftover: p.Leftover,
	}
	for _, st := range p.Steps {
		rs := RenderedStep{
			Address:     Address(st.Address),
			Offset:      Address(st.Offset),
			Name:        st.Node.Label(),
			Kind:        r.schema.KindLabel(st.Node),
			Size:        r.schema.Size(st.Node),
			Description: st.Node.Doc(),
		}
		if st.Indexed {
			idx := st.Index
			rs.Index = &idx
		}
		res.Steps = append(res.Steps, rs)
	}
	if u, ok := p.Unit(); ok {
		res.Extended = r.descriptions.Extended(ctx, u)
	}
	return res
}
