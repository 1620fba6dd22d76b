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

import "github.com/cardinalhq/vmfscan/internal/coltype"

// Merge folds nodes into a single tree using the same consistency rules
// as sampling. It is used to combine per-file trees and to build the value
// shape of an inferred map.
func Merge(nodes ...*Node) Node {
	var merged Node
	for _, n := range nodes {
		mergeInto(&merged, n)
	}
	return merged
}

func mergeInto(merged *Node, n *Node) {
	merged.Count += n.Count
	merged.NullCount += n.NullCount
	for i := range n.Descriptions {
		d := &n.Descriptions[i]
		switch d.Type {
		case coltype.List:
			child := merged.description(coltype.List).elementChild()
			for j := range d.Children {
				mergeInto(child, &d.Children[j])
			}
		case coltype.Struct:
			md := merged.description(coltype.Struct)
			for j := range d.Children {
				mergeInto(md.keyedChild(d.Children[j].Key), &d.Children[j])
			}
		default:
			mergeScalar(merged, d, n.initialized)
		}
	}
}

// mergeScalar keeps string candidates only while every merged node agrees
// on the preferred one.
func mergeScalar(merged *Node, d *Description, initialized bool) {
	md := merged.description(d.Type)
	if md.Type != coltype.Varchar || !initialized || len(merged.Descriptions) != 1 {
		return
	}
	switch {
	case !merged.initialized:
		md.candidates = append([]coltype.ID(nil), d.candidates...)
	case len(md.candidates) > 0 && len(d.candidates) > 0 &&
		md.candidates[len(md.candidates)-1] != d.candidates[len(d.candidates)-1]:
		md.candidates = nil
	}
	merged.initialized = true
}
