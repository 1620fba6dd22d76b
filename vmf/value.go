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

package vmf

import (
	"math"
	"strconv"
)

// Kind identifies the shape of a document value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	// KindInt holds negative integers. Non-negative integers parse as KindUint.
	KindInt
	KindUint
	KindFloat
	KindString
	KindArray
	KindObject
)

var kindNames = [...]string{
	KindNull:   "NULL",
	KindBool:   "BOOLEAN",
	KindInt:    "BIGINT",
	KindUint:   "UBIGINT",
	KindFloat:  "DOUBLE",
	KindString: "VARCHAR",
	KindArray:  "ARRAY",
	KindObject: "OBJECT",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Member is one key/value pair of an object. Objects keep members in
// document order, duplicates included.
type Member struct {
	Key   string
	Value *Value
}

// Value is an immutable parsed document node.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
	arr  []*Value
	obj  []Member
}

var nullValue = &Value{kind: KindNull}

func NewNull() *Value { return nullValue }

func NewBool(b bool) *Value { return &Value{kind: KindBool, b: b} }

// NewInt returns a KindUint value for non-negative i and KindInt otherwise.
func NewInt(i int64) *Value {
	if i >= 0 {
		return &Value{kind: KindUint, u: uint64(i)}
	}
	return &Value{kind: KindInt, i: i}
}

func NewUint(u uint64) *Value { return &Value{kind: KindUint, u: u} }

func NewFloat(f float64) *Value { return &Value{kind: KindFloat, f: f} }

func NewString(s string) *Value { return &Value{kind: KindString, s: s} }

func NewArray(elems ...*Value) *Value {
	return &Value{kind: KindArray, arr: elems}
}

func NewObject(members ...Member) *Value {
	return &Value{kind: KindObject, obj: members}
}

// Kind returns the value's kind. A nil value reports KindNull.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindNull
	}
	return v.kind
}

func (v *Value) IsNull() bool { return v == nil || v.kind == KindNull }

// TypeName returns the SQL-ish name of the value's kind.
func (v *Value) TypeName() string { return v.Kind().String() }

func (v *Value) Bool() bool { return v != nil && v.kind == KindBool && v.b }

// Int returns the value as int64. Unsigned values above math.MaxInt64 and
// floats outside the int64 range report ok=false.
func (v *Value) Int() (int64, bool) {
	switch v.Kind() {
	case KindInt:
		return v.i, true
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	case KindFloat:
		if v.f != math.Trunc(v.f) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
			return 0, false
		}
		return int64(v.f), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (v *Value) Uint() (uint64, bool) {
	switch v.Kind() {
	case KindUint:
		return v.u, true
	case KindInt:
		return 0, false
	case KindFloat:
		if v.f != math.Trunc(v.f) || v.f < 0 || v.f >= math.MaxUint64 {
			return 0, false
		}
		return uint64(v.f), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (v *Value) Float() (float64, bool) {
	switch v.Kind() {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Str returns the string payload of a KindString value.
func (v *Value) Str() string {
	if v == nil || v.kind != KindString {
		return ""
	}
	return v.s
}

func (v *Value) Elems() []*Value {
	if v == nil || v.kind != KindArray {
		return nil
	}
	return v.arr
}

func (v *Value) Members() []Member {
	if v == nil || v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Get returns the first member named key.
func (v *Value) Get(key string) (*Value, bool) {
	for _, m := range v.Members() {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Len is the element count of an array or the member count of an object.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Keys returns the member keys of an object in document order.
func (v *Value) Keys() []string {
	members := v.Members()
	if members == nil {
		return nil
	}
	keys := make([]string, len(members))
	for i, m := range members {
		keys[i] = m.Key
	}
	return keys
}

// ArrayLength returns the element count of an array and 0 for anything else.
func (v *Value) ArrayLength() int {
	if v.Kind() != KindArray {
		return 0
	}
	return len(v.arr)
}

// Interface converts the value into plain Go values: nil, bool, int64,
// uint64, float64, string, []any and map[string]any. Duplicate keys keep
// the first occurrence.
func (v *Value) Interface() any {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, e := range v.arr {
			out[i] = e.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for _, m := range v.obj {
			if _, ok := out[m.Key]; !ok {
				out[m.Key] = m.Value.Interface()
			}
		}
		return out
	}
	return nil
}
