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

package structure

import (
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/vmf"
)

// Describe renders the shape of v as a document, e.g.
// {"a":"UBIGINT","b":["VARCHAR"]}. Duplicate keys are tolerated.
func Describe(v *vmf.Value) *vmf.Value {
	var n Node
	_ = Extract(v, &n, true)
	return DescribeNode(&n)
}

// DescribeNode renders an observation tree. Inconsistent nodes and empty
// objects render as "VMF".
func DescribeNode(n *Node) *vmf.Value {
	switch len(n.Descriptions) {
	case 0:
		return vmf.NewString(coltype.Null.String())
	case 1:
	default:
		return vmf.NewString(coltype.VMF.String())
	}
	d := &n.Descriptions[0]
	switch d.Type {
	case coltype.List:
		return vmf.NewArray(DescribeNode(&d.Children[0]))
	case coltype.Struct:
		if len(d.Children) == 0 {
			return vmf.NewString(coltype.VMF.String())
		}
		members := make([]vmf.Member, len(d.Children))
		for i := range d.Children {
			members[i] = vmf.Member{Key: d.Children[i].Key, Value: DescribeNode(&d.Children[i])}
		}
		return vmf.NewObject(members...)
	}
	return vmf.NewString(d.Type.String())
}
