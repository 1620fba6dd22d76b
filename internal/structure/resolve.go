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
	"fmt"
	"math"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/cardinalhq/vmfscan/internal/coltype"
)

const (
	DefaultFieldAppearanceThreshold = 0.1
	DefaultMapInferenceThreshold    = 25

	// mapSimilarityThreshold is the average similarity at or above which
	// a wide struct becomes a map.
	mapSimilarityThreshold = 0.8
)

// Resolver turns an observation tree into a column type.
type Resolver struct {
	// MaxDepth collapses everything at or below this depth to VMF.
	// Negative means unlimited.
	MaxDepth int
	// FieldAppearanceThreshold is the average field occurrence rate below
	// which an object is treated as a map.
	FieldAppearanceThreshold float64
	// MapInferenceThreshold is the field count from which similar-valued
	// objects become maps. Negative disables it.
	MapInferenceThreshold int
}

// DefaultResolver returns a Resolver with the stock thresholds.
func DefaultResolver() Resolver {
	return Resolver{
		MaxDepth:                 -1,
		FieldAppearanceThreshold: DefaultFieldAppearanceThreshold,
		MapInferenceThreshold:    DefaultMapInferenceThreshold,
	}
}

func (r Resolver) maxDepth() int {
	if r.MaxDepth < 0 {
		return math.MaxInt
	}
	return r.MaxDepth
}

func (r Resolver) mapThreshold() int {
	if r.MapInferenceThreshold < 0 {
		return math.MaxInt
	}
	return r.MapInferenceThreshold
}

// Resolve returns the type of n. Fields that were never seen with a value
// resolve to VMF.
func (r Resolver) Resolve(n *Node) coltype.Type {
	return r.resolve(n, 0, coltype.Simple(coltype.VMF))
}

// ResolveWithNull is Resolve with a custom type for never-valued fields.
func (r Resolver) ResolveWithNull(n *Node, nullType coltype.Type) coltype.Type {
	return r.resolve(n, 0, nullType)
}

func (r Resolver) resolve(n *Node, depth int, nullType coltype.Type) coltype.Type {
	if depth >= r.maxDepth() {
		return coltype.Simple(coltype.VMF)
	}
	switch len(n.Descriptions) {
	case 0:
		return nullType
	case 1:
	default:
		return coltype.Simple(coltype.VMF)
	}
	d := &n.Descriptions[0]
	switch d.Type {
	case coltype.List:
		return coltype.ListOf(r.resolve(&d.Children[0], depth+1, nullType))
	case coltype.Struct:
		return r.resolveObject(n, depth, nullType)
	case coltype.Varchar:
		if len(d.candidates) == 0 {
			return coltype.Simple(coltype.Varchar)
		}
		return coltype.Simple(d.candidates[len(d.candidates)-1])
	case coltype.UBigInt:
		return coltype.Simple(coltype.BigInt)
	case coltype.Null:
		return nullType
	}
	return coltype.Simple(d.Type)
}

func (r Resolver) resolveObject(n *Node, depth int, nullType coltype.Type) coltype.Type {
	d := &n.Descriptions[0]
	if len(d.Children) == 0 {
		return coltype.MapOf(nullType)
	}
	if sparse(d, n.Count, n.NullCount, r.FieldAppearanceThreshold) {
		return coltype.MapOf(r.mergedType(n, depth+1, nullType))
	}

	fields := make([]coltype.Field, len(d.Children))
	for i := range d.Children {
		c := &d.Children[i]
		fields[i] = coltype.Field{Name: c.Key, Type: r.resolve(c, depth+1, nullType)}
	}

	if len(d.Children) >= r.mapThreshold() {
		valueType := r.mergedType(n, depth+1, coltype.Simple(coltype.Null))
		var total float64
		for _, f := range fields {
			s := similarity(valueType, f.Type, r.maxDepth(), depth+1)
			if s < 0 {
				total = s
				break
			}
			total += s
		}
		if total/float64(len(fields)) >= mapSimilarityThreshold {
			if nullType.ID != coltype.Null {
				valueType = r.mergedType(n, depth+1, nullType)
			}
			return coltype.MapOf(valueType)
		}
	}
	return coltype.StructOf(fields...)
}

// sparse reports whether fields co-occur so rarely that the object is
// better described as a map.
func sparse(d *Description, count, nullCount int64, threshold float64) bool {
	valued := float64(count - nullCount)
	var total float64
	for i := range d.Children {
		total += float64(d.Children[i].Count) / valued
	}
	return total/float64(len(d.Children)) < threshold
}

// mergedType resolves the union of all children of n.
func (r Resolver) mergedType(n *Node, depth int, nullType coltype.Type) coltype.Type {
	d := &n.Descriptions[0]
	children := make([]*Node, len(d.Children))
	for i := range d.Children {
		children[i] = &d.Children[i]
	}
	merged := Merge(children...)
	return r.resolve(&merged, depth+1, nullType)
}

// similarity scores how well typ fits into merged, from -1 (incompatible)
// to 1 (identical).
func similarity(merged, typ coltype.Type, maxDepth, depth int) float64 {
	if depth >= maxDepth || merged.ID == coltype.Null || typ.ID == coltype.Null {
		return 1
	}
	if merged.ID == coltype.VMF {
		return -1
	}
	if typ.ID == coltype.VMF || merged.Equal(typ) {
		return 1
	}
	switch merged.ID {
	case coltype.Struct:
		if typ.ID == coltype.Map {
			return mapStructSimilarity(typ, merged, true, maxDepth, depth)
		}
		if typ.ID != coltype.Struct {
			return -1
		}
		byName := make(map[string]coltype.Type, len(merged.Fields))
		for _, f := range merged.Fields {
			byName[f.Name] = f.Type
		}
		var total float64
		for _, f := range typ.Fields {
			mt, ok := byName[f.Name]
			if !ok {
				return -1
			}
			s := similarity(mt, f.Type, maxDepth, depth+1)
			if s < 0 {
				return s
			}
			total += s
		}
		return total / float64(len(merged.Fields))
	case coltype.Map:
		switch typ.ID {
		case coltype.Map:
			return similarity(merged.Child(), typ.Child(), maxDepth, depth+1)
		case coltype.Struct:
			return mapStructSimilarity(merged, typ, false, maxDepth, depth)
		}
		return -1
	case coltype.List:
		if typ.ID != coltype.List {
			return -1
		}
		return similarity(merged.Child(), typ.Child(), maxDepth, depth+1)
	}
	// scalars whose string candidates differed between fields
	return 1
}

func mapStructSimilarity(mapType, structType coltype.Type, swapped bool, maxDepth, depth int) float64 {
	value := mapType.Child()
	var total float64
	for _, f := range structType.Fields {
		var s float64
		if swapped {
			s = similarity(f.Type, value, maxDepth, depth+1)
		} else {
			s = similarity(value, f.Type, maxDepth, depth+1)
		}
		if s < 0 {
			return s
		}
		total += s
	}
	return total / float64(len(structType.Fields))
}

// RemoveDuplicateStructKeys drops struct fields whose names collide with
// an earlier field ignoring case. Without ignoreErrors a collision is an
// error.
func RemoveDuplicateStructKeys(t coltype.Type, ignoreErrors bool) (coltype.Type, error) {
	switch t.ID {
	case coltype.Struct:
		names := mapset.NewThreadUnsafeSet[string]()
		fields := make([]coltype.Field, 0, len(t.Fields))
		for _, f := range t.Fields {
			if !names.Add(strings.ToLower(f.Name)) {
				if ignoreErrors {
					continue
				}
				return coltype.Type{}, fmt.Errorf("Duplicate name %q in struct auto-detected in VMF, try ignore_errors=true", f.Name)
			}
			ft, err := RemoveDuplicateStructKeys(f.Type, ignoreErrors)
			if err != nil {
				return coltype.Type{}, err
			}
			fields = append(fields, coltype.Field{Name: f.Name, Type: ft})
		}
		return coltype.StructOf(fields...), nil
	case coltype.List:
		child, err := RemoveDuplicateStructKeys(t.Child(), ignoreErrors)
		if err != nil {
			return coltype.Type{}, err
		}
		return coltype.ListOf(child), nil
	case coltype.Map:
		child, err := RemoveDuplicateStructKeys(t.Child(), ignoreErrors)
		if err != nil {
			return coltype.Type{}, err
		}
		return coltype.MapOf(child), nil
	}
	return t, nil
}
