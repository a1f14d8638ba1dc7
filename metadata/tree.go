package metadata

import (
	"strings"

	"go-substrate-client/codec"

	"github.com/qdm12/gotree"
)

// Tree renders the pallets of m with their calls, events, errors, storage
// entries and constants
func (m *Metadata) Tree() *gotree.Node {
	root := gotree.New("Metadata v%d (%d pallets, fingerprint %s)", m.Version, len(m.Pallets), m.Fingerprint)
	for _, p := range m.Pallets {
		root.AppendNode(p.toNode())
	}

	ext := root.Appendf("Extrinsic v%d", m.Extrinsic.Version)
	for _, se := range m.Extrinsic.SignedExtensions {
		ext.Appendf("%s", se.Identifier)
	}
	return root
}

func (m *Metadata) String() string {
	return m.Tree().String()
}

func (p *Pallet) toNode() *gotree.Node {
	node := gotree.New("%s [%d]", p.Name, p.Index)
	appendVariants(node, "Calls", p.Calls)
	appendVariants(node, "Events", p.Events)
	appendVariants(node, "Errors", p.Errors)

	if len(p.Storage) > 0 {
		storage := node.Appendf("Storage (prefix %s)", p.StoragePrefix)
		for _, e := range p.Storage {
			if e.Kind == StorageMap {
				hashers := make([]string, len(e.Hashers))
				for i, h := range e.Hashers {
					hashers[i] = h.String()
				}
				storage.Appendf("%s: map %s => %s [%s, %s]", e.Name, e.Key.Name(), e.Value.Name(), strings.Join(hashers, ", "), e.Modifier)
				continue
			}
			storage.Appendf("%s: %s [%s]", e.Name, e.Value.Name(), e.Modifier)
		}
	}

	if len(p.Constants) > 0 {
		constants := node.Appendf("Constants")
		for _, c := range p.Constants {
			constants.Appendf("%s: %s = 0x%x", c.Name, c.Type.Name(), c.Value)
		}
	}
	return node
}

func appendVariants(node *gotree.Node, title string, t *codec.TypeDescriptor) {
	if t == nil || len(t.Variants) == 0 {
		return
	}
	child := node.Appendf("%s", title)
	for _, v := range t.Variants {
		fields := make([]string, len(v.Fields))
		for i, f := range v.Fields {
			name := f.TypeName
			if name == "" {
				name = f.Type.Name()
			}
			if f.Name != "" {
				name = f.Name + ": " + name
			}
			fields[i] = name
		}
		child.Appendf("%s(%s) [%d]", v.Name, strings.Join(fields, ", "), v.Index)
	}
}
