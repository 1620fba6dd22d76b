// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package structure builds observation trees from sampled documents and
// resolves them into column types.
package structure

import (
	"github.com/cardinalhq/vmfscan/internal/coltype"
)

// Node records every shape observed at one position of the document tree.
// A node with more than one description saw incompatible types.
type Node struct {
	Key       string
	Count     int64
	NullCount int64

	Descriptions []Description

	initialized bool
}

// Description is one observed shape at a node. List descriptions have a
// single child holding the element shape. Struct descriptions have one
// child per key, in first-seen order.
type Description struct {
	Type     coltype.ID
	Children []Node

	keys       map[string]int
	candidates []coltype.ID
}

// Candidates returns the surviving refinement types of a VARCHAR
// description. The last entry is the preferred one.
func (d *Description) Candidates() []coltype.ID {
	return d.candidates
}

// Child returns the child named key.
func (d *Description) Child(key string) (*Node, bool) {
	i, ok := d.keys[key]
	if !ok {
		return nil, false
	}
	return &d.Children[i], true
}

func (d *Description) elementChild() *Node {
	if d.Type != coltype.List {
		panic("INTERNAL Error: element child requested on " + d.Type.String())
	}
	if len(d.Children) == 0 {
		d.Children = append(d.Children, Node{})
	}
	return &d.Children[0]
}

func (d *Description) keyedChild(key string) *Node {
	if i, ok := d.keys[key]; ok {
		return &d.Children[i]
	}
	if d.keys == nil {
		d.keys = make(map[string]int)
	}
	d.Children = append(d.Children, Node{Key: key})
	d.keys[key] = len(d.Children) - 1
	return &d.Children[len(d.Children)-1]
}

// description returns the description for id, creating or merging as
// needed. NULL never adds a description of its own once the node has
// another type, and numeric types fold into each other.
func (n *Node) description(id coltype.ID) *Description {
	if len(n.Descriptions) == 0 {
		n.Descriptions = append(n.Descriptions, Description{Type: id})
		return &n.Descriptions[0]
	}
	if len(n.Descriptions) == 1 && n.Descriptions[0].Type == coltype.Null {
		n.Descriptions[0].Type = id
		return &n.Descriptions[0]
	}
	if id == coltype.Null {
		return &n.Descriptions[len(n.Descriptions)-1]
	}
	for i := range n.Descriptions {
		d := &n.Descriptions[i]
		if d.Type == id {
			return d
		}
		if id.Numeric() && d.Type.Numeric() {
			d.Type = widerNumeric(id, d.Type)
			return d
		}
	}
	n.Descriptions = append(n.Descriptions, Description{Type: id})
	return &n.Descriptions[len(n.Descriptions)-1]
}

func widerNumeric(a, b coltype.ID) coltype.ID {
	if a == coltype.Double || b == coltype.Double {
		return coltype.Double
	}
	return coltype.BigInt
}

// Consistent reports whether the node settled on a single shape.
func (n *Node) Consistent() bool { return len(n.Descriptions) == 1 }

// containsVarchar reports whether string refinement could still change
// anything below n.
func (n *Node) containsVarchar() bool {
	if len(n.Descriptions) != 1 {
		return false
	}
	d := &n.Descriptions[0]
	if d.Type == coltype.Varchar {
		return true
	}
	for i := range d.Children {
		if d.Children[i].containsVarchar() {
			return true
		}
	}
	return false
}
