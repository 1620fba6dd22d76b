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

// Package coltype models the column types a scan produces and maps them
// onto Arrow types.
package coltype

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ID is the logical type of a column.
type ID uint8

const (
	Invalid ID = iota
	Null
	Boolean
	BigInt
	UBigInt
	Double
	Varchar
	VMF
	Date
	Time
	Timestamp
	UUID
	List
	Struct
	Map
)

var idNames = [...]string{
	Invalid:   "INVALID",
	Null:      "NULL",
	Boolean:   "BOOLEAN",
	BigInt:    "BIGINT",
	UBigInt:   "UBIGINT",
	Double:    "DOUBLE",
	Varchar:   "VARCHAR",
	VMF:       "VMF",
	Date:      "DATE",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	UUID:      "UUID",
	List:      "LIST",
	Struct:    "STRUCT",
	Map:       "MAP",
}

func (id ID) String() string {
	if int(id) < len(idNames) {
		return idNames[id]
	}
	return "ID(" + strconv.Itoa(int(id)) + ")"
}

// Numeric reports whether id is one of the integer or floating types.
func (id ID) Numeric() bool {
	return id == BigInt || id == UBigInt || id == Double
}

// Field is a named struct member or output column.
type Field struct {
	Name string
	Type Type
}

// Type is a possibly nested column type. Elem is the element type of a
// List and the value type of a Map. Map keys are always VARCHAR.
type Type struct {
	ID     ID
	Elem   *Type
	Fields []Field
}

func Simple(id ID) Type { return Type{ID: id} }

func ListOf(elem Type) Type { return Type{ID: List, Elem: &elem} }

func MapOf(value Type) Type { return Type{ID: Map, Elem: &value} }

func StructOf(fields ...Field) Type { return Type{ID: Struct, Fields: fields} }

func (t Type) IsNested() bool {
	return t.ID == List || t.ID == Struct || t.ID == Map
}

// Child returns the element type of a List or the value type of a Map.
func (t Type) Child() Type {
	if t.Elem == nil {
		return Type{}
	}
	return *t.Elem
}

// Equal compares two types structurally, including struct field names.
func (t Type) Equal(o Type) bool {
	if t.ID != o.ID {
		return false
	}
	switch t.ID {
	case List, Map:
		return t.Child().Equal(o.Child())
	case Struct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// String renders the type in its textual form, the same form Parse accepts.
func (t Type) String() string {
	var sb strings.Builder
	t.write(&sb)
	return sb.String()
}

func (t Type) write(sb *strings.Builder) {
	switch t.ID {
	case List:
		t.Child().write(sb)
		sb.WriteString("[]")
	case Map:
		sb.WriteString("MAP(VARCHAR, ")
		t.Child().write(sb)
		sb.WriteByte(')')
	case Struct:
		sb.WriteString("STRUCT(")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(QuoteName(f.Name))
			sb.WriteByte(' ')
			f.Type.write(sb)
		}
		sb.WriteByte(')')
	default:
		sb.WriteString(t.ID.String())
	}
}

// QuoteName quotes a field name unless it is a plain identifier that is
// not also a type keyword.
func QuoteName(name string) string {
	if name != "" && isPlainIdent(name) && !isKeyword(name) {
		return name
	}
	return strconv.Quote(name)
}

func isPlainIdent(s string) bool {
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

func isKeyword(s string) bool {
	_, ok := typeNames[strings.ToUpper(s)]
	return ok || strings.EqualFold(s, "struct") || strings.EqualFold(s, "map")
}

// Fingerprint is a stable hash of the textual form, used to compare
// schemas across runs.
func (t Type) Fingerprint() uint64 {
	return xxhash.Sum64String(t.String())
}

// SchemaFingerprint hashes an ordered column list.
func SchemaFingerprint(cols []Field) uint64 {
	d := xxhash.New()
	for _, c := range cols {
		_, _ = d.WriteString(QuoteName(c.Name))
		_, _ = d.WriteString(" ")
		_, _ = d.WriteString(c.Type.String())
		_, _ = d.WriteString("\x00")
	}
	return d.Sum64()
}
