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
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"BIGINT",
		"VARCHAR[]",
		"BIGINT[][]",
		"MAP(VARCHAR, DOUBLE)",
		`STRUCT(a BIGINT, "b c" VARCHAR[], "map" MAP(VARCHAR, VMF))`,
		"STRUCT(s STRUCT(t TIMESTAMP, d DATE))[]",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			typ, err := Parse(in)
			require.NoError(t, err)
			assert.Equal(t, in, typ.String())
		})
	}
}

func TestParseAliases(t *testing.T) {
	typ, err := Parse("struct(x integer, y json, z text)")
	require.NoError(t, err)
	want := StructOf(
		Field{Name: "x", Type: Simple(BigInt)},
		Field{Name: "y", Type: Simple(VMF)},
		Field{Name: "z", Type: Simple(Varchar)},
	)
	if diff := cmp.Diff(want, typ); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "NOPE", "MAP(BIGINT, VARCHAR)", "STRUCT(a)", "BIGINT["} {
		_, err := Parse(in)
		var pe *ParseError
		assert.ErrorAs(t, err, &pe, in)
	}
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns(`id UBIGINT, "first name" VARCHAR, tags VARCHAR[]`)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "first name", cols[1].Name)
	assert.True(t, cols[2].Type.Equal(ListOf(Simple(Varchar))))
}

func TestEqual(t *testing.T) {
	a := StructOf(Field{Name: "a", Type: ListOf(Simple(BigInt))})
	b := StructOf(Field{Name: "a", Type: ListOf(Simple(BigInt))})
	c := StructOf(Field{Name: "b", Type: ListOf(Simple(BigInt))})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, MapOf(Simple(BigInt)).Equal(ListOf(Simple(BigInt))))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestToArrow(t *testing.T) {
	typ := MustParse("STRUCT(a BIGINT, b UUID, c MAP(VARCHAR, TIMESTAMP), d DATE[])")
	dt := typ.ToArrow()
	st, ok := dt.(*arrow.StructType)
	require.True(t, ok)
	require.Equal(t, 4, st.NumFields())
	assert.Equal(t, arrow.INT64, st.Field(0).Type.ID())
	assert.Equal(t, arrow.FIXED_SIZE_BINARY, st.Field(1).Type.ID())
	assert.Equal(t, arrow.MAP, st.Field(2).Type.ID())
	assert.Equal(t, arrow.LIST, st.Field(3).Type.ID())
}

func TestSchemaFingerprintOrderSensitive(t *testing.T) {
	a := []Field{{Name: "x", Type: Simple(BigInt)}, {Name: "y", Type: Simple(Varchar)}}
	b := []Field{{Name: "y", Type: Simple(Varchar)}, {Name: "x", Type: Simple(BigInt)}}
	assert.NotEqual(t, SchemaFingerprint(a), SchemaFingerprint(b))
	assert.Equal(t, "vmfscan.type", Schema(a).Field(0).Metadata.Keys()[0])
}
