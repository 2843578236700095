// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracetree

import (
	"gopkg.in/yaml.v3"
)

// dumpNode is the YAML-marshalable projection of one node, used only by
// DebugDump — the live node graph keeps weak pointers and raw byte-string
// map keys that are not themselves worth serializing.
type dumpNode struct {
	Kind     string      `yaml:"kind"`
	Field    string      `yaml:"field,omitempty"`
	Priority uint32      `yaml:"priority,omitempty"`
	Alive    bool        `yaml:"alive,omitempty"`
	Children []*dumpNode `yaml:"children,omitempty"`
}

func dump(n *node) *dumpNode {
	if n == nil {
		return nil
	}
	switch n.kind {
	case kindUnexplored:
		return &dumpNode{Kind: "unexplored"}
	case kindFlow:
		return &dumpNode{Kind: "flow", Priority: n.flowPriority, Alive: n.flowWeak.Value() != nil}
	case kindLoad:
		d := &dumpNode{Kind: "load", Field: n.loadMask.Type.String()}
		for _, c := range n.loadChildren {
			d.Children = append(d.Children, dump(c))
		}
		return d
	case kindVLoad:
		d := &dumpNode{Kind: "vload", Field: n.vloadMask.Type.String()}
		for _, c := range n.vloadByWhat {
			d.Children = append(d.Children, dump(c))
		}
		return d
	case kindTest:
		d := &dumpNode{Kind: "test", Field: n.testField.String(), Priority: n.testPriority}
		d.Children = []*dumpNode{dump(n.negative), dump(n.positive)}
		return d
	default:
		return &dumpNode{Kind: "unknown"}
	}
}

// DebugDump renders the tree's current shape as YAML, for operator
// inspection of what a reactive domain has learned — map iteration order
// for Load/VLoad children is unspecified, so two dumps of the same tree
// may list children in a different order without the tree itself having
// changed.
func (t *Tree) DebugDump() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out, err := yaml.Marshal(dump(t.root))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
