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

package coltype

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ToArrow maps t onto the Arrow type its column builder produces. VMF and
// VARCHAR columns are both carried as strings. UUIDs are 16 byte fixed
// size binaries and timestamps use microsecond resolution.
func (t Type) ToArrow() arrow.DataType {
	switch t.ID {
	case Null:
		return arrow.Null
	case Boolean:
		return arrow.FixedWidthTypes.Boolean
	case BigInt:
		return arrow.PrimitiveTypes.Int64
	case UBigInt:
		return arrow.PrimitiveTypes.Uint64
	case Double:
		return arrow.PrimitiveTypes.Float64
	case Varchar, VMF:
		return arrow.BinaryTypes.String
	case Date:
		return arrow.FixedWidthTypes.Date32
	case Time:
		return arrow.FixedWidthTypes.Time64us
	case Timestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond}
	case UUID:
		return &arrow.FixedSizeBinaryType{ByteWidth: 16}
	case List:
		return arrow.ListOf(t.Child().ToArrow())
	case Map:
		return arrow.MapOf(arrow.BinaryTypes.String, t.Child().ToArrow())
	case Struct:
		fields := make([]arrow.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = arrow.Field{Name: f.Name, Type: f.Type.ToArrow(), Nullable: true}
		}
		return arrow.StructOf(fields...)
	}
	return arrow.Null
}

// Schema builds an Arrow schema for an ordered column list.
func Schema(cols []Field) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		md := arrow.NewMetadata([]string{"vmfscan.type"}, []string{c.Type.String()})
		fields[i] = arrow.Field{Name: c.Name, Type: c.Type.ToArrow(), Nullable: true, Metadata: md}
	}
	return arrow.NewSchema(fields, nil)
}
