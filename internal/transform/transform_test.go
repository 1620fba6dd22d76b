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

package transform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/dateformat"
	"github.com/cardinalhq/vmfscan/vmf"
)

func docs(t *testing.T, in ...string) []*vmf.Value {
	t.Helper()
	out := make([]*vmf.Value, len(in))
	for i, s := range in {
		v, err := vmf.ParseString(s)
		require.NoError(t, err, s)
		out[i] = v
	}
	return out
}

func column(t *testing.T, typ coltype.Type, opts Options, in ...string) (arrow.Array, error) {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	b := array.NewBuilder(mem, typ.ToArrow())
	defer b.Release()
	err := Transform(docs(t, in...), b, typ, opts)
	arr := b.NewArray()
	t.Cleanup(func() {
		arr.Release()
		mem.AssertSize(t, 0)
	})
	return arr, err
}

func TestTransformStrictCast(t *testing.T) {
	bigint := coltype.Simple(coltype.BigInt)

	arr, err := column(t, bigint, Options{}, `"abc"`, `"12"`, `3.5`, `true`)
	require.NoError(t, err)
	ints := arr.(*array.Int64)
	assert.True(t, ints.IsNull(0))
	assert.Equal(t, int64(12), ints.Value(1))
	assert.Equal(t, int64(4), ints.Value(2))
	assert.Equal(t, int64(1), ints.Value(3))

	_, err = column(t, bigint, Options{StrictCast: true}, `1`, `"abc"`)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, `Failed to cast value to numerical: "abc"`, terr.Message)
}

func TestTransformNumericRanges(t *testing.T) {
	arr, err := column(t, coltype.Simple(coltype.BigInt), Options{}, `18446744073709551615`, `-5`, `2.5`, `[1]`)
	require.NoError(t, err)
	ints := arr.(*array.Int64)
	assert.True(t, ints.IsNull(0))
	assert.Equal(t, int64(-5), ints.Value(1))
	assert.Equal(t, int64(2), ints.Value(2))
	assert.True(t, ints.IsNull(3))

	arr, err = column(t, coltype.Simple(coltype.UBigInt), Options{}, `18446744073709551615`, `-5`)
	require.NoError(t, err)
	uints := arr.(*array.Uint64)
	assert.Equal(t, uint64(18446744073709551615), uints.Value(0))
	assert.True(t, uints.IsNull(1))

	arr, err = column(t, coltype.Simple(coltype.Double), Options{}, `1`, `"2.5"`, `false`)
	require.NoError(t, err)
	floats := arr.(*array.Float64)
	assert.Equal(t, []float64{1, 2.5, 0}, floats.Float64Values())
}

func TestTransformBoolean(t *testing.T) {
	arr, err := column(t, coltype.Simple(coltype.Boolean), Options{}, `true`, `"f"`, `0`, `"maybe"`, `null`)
	require.NoError(t, err)
	bools := arr.(*array.Boolean)
	assert.True(t, bools.Value(0))
	assert.False(t, bools.Value(1))
	assert.False(t, bools.Value(2))
	assert.True(t, bools.IsNull(3))
	assert.True(t, bools.IsNull(4))
}

func TestTransformVarcharSerializes(t *testing.T) {
	arr, err := column(t, coltype.Simple(coltype.Varchar), Options{StrictCast: true}, `"plain"`, `{"a":[1,2]}`, `1.0`, `null`)
	require.NoError(t, err)
	strs := arr.(*array.String)
	assert.Equal(t, "plain", strs.Value(0))
	assert.Equal(t, `{"a":[1,2]}`, strs.Value(1))
	assert.Equal(t, "1.0", strs.Value(2))
	assert.True(t, strs.IsNull(3))

	arr, err = column(t, coltype.Simple(coltype.VMF), Options{}, `"plain"`)
	require.NoError(t, err)
	assert.Equal(t, `"plain"`, arr.(*array.String).Value(0))
}

func TestTransformTemporal(t *testing.T) {
	arr, err := column(t, coltype.Simple(coltype.Date), Options{}, `"1970-01-02"`, `"nope"`, `5`)
	require.NoError(t, err)
	dates := arr.(*array.Date32)
	assert.Equal(t, arrow.Date32(1), dates.Value(0))
	assert.True(t, dates.IsNull(1))
	assert.True(t, dates.IsNull(2))

	_, err = column(t, coltype.Simple(coltype.Date), Options{StrictCast: true}, `5`)
	require.Error(t, err)
	assert.Equal(t, "Unable to cast '5' to DATE", err.Error())

	formats := dateformat.NewMap()
	require.NoError(t, formats.Add(coltype.Date, "%m/%d/%Y"))
	arr, err = column(t, coltype.Simple(coltype.Date), Options{Formats: formats}, `"01/03/1970"`, `"1970-01-04"`)
	require.NoError(t, err)
	dates = arr.(*array.Date32)
	assert.Equal(t, arrow.Date32(2), dates.Value(0))
	assert.Equal(t, arrow.Date32(3), dates.Value(1))

	arr, err = column(t, coltype.Simple(coltype.Timestamp), Options{}, `"1970-01-01 00:00:01"`)
	require.NoError(t, err)
	assert.Equal(t, arrow.Timestamp(1_000_000), arr.(*array.Timestamp).Value(0))

	arr, err = column(t, coltype.Simple(coltype.Time), Options{}, `"01:00:00"`)
	require.NoError(t, err)
	assert.Equal(t, arrow.Time64(3_600_000_000), arr.(*array.Time64).Value(0))
}

func TestTransformUUID(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	arr, err := column(t, coltype.Simple(coltype.UUID), Options{}, `"`+id.String()+`"`, `"x"`)
	require.NoError(t, err)
	fsb := arr.(*array.FixedSizeBinary)
	assert.Equal(t, id[:], fsb.Value(0))
	assert.True(t, fsb.IsNull(1))
}

func TestTransformNested(t *testing.T) {
	typ := coltype.StructOf(
		coltype.Field{Name: "ids", Type: coltype.ListOf(coltype.Simple(coltype.BigInt))},
		coltype.Field{Name: "tags", Type: coltype.MapOf(coltype.Simple(coltype.Varchar))},
	)
	arr, err := column(t, typ, Options{}, `{"ids":[1,2],"tags":{"k":"v","k":"w"}}`, `null`, `{"ids":"x"}`)
	require.NoError(t, err)
	st := arr.(*array.Struct)
	require.Equal(t, 3, st.Len())
	assert.True(t, st.IsValid(0))
	assert.True(t, st.IsNull(1))

	ids := st.Field(0).(*array.List)
	start, end := ids.ValueOffsets(0)
	assert.Equal(t, int64(2), end-start)
	assert.True(t, ids.IsNull(2))

	tags := st.Field(1).(*array.Map)
	keys := tags.Keys().(*array.String)
	items := tags.Items().(*array.String)
	require.Equal(t, 1, keys.Len())
	assert.Equal(t, "k", keys.Value(0))
	assert.Equal(t, "v", items.Value(0))
}

func TestTransformNestedErrorIndex(t *testing.T) {
	typ := coltype.ListOf(coltype.Simple(coltype.BigInt))
	_, err := column(t, typ, Options{StrictCast: true}, `[1]`, `[2,"x"]`)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)

	_, err = column(t, typ, Options{StrictCast: true}, `{"a":1}`)
	require.Error(t, err)
	assert.Equal(t, `Expected ARRAY, but got {"a":1}`, err.Error())
}

func objectColumns(t *testing.T, fields []coltype.Field, opts Options, in ...string) ([]arrow.Array, error) {
	t.Helper()
	mem := memory.NewGoAllocator()
	builders := make([]array.Builder, len(fields))
	for i, f := range fields {
		builders[i] = array.NewBuilder(mem, f.Type.ToArrow())
	}
	err := TransformObject(docs(t, in...), fields, builders, opts)
	out := make([]arrow.Array, len(builders))
	for i, b := range builders {
		out[i] = b.NewArray()
		b.Release()
	}
	return out, err
}

func TestTransformObjectDuplicateKey(t *testing.T) {
	fields := []coltype.Field{{Name: "a", Type: coltype.Simple(coltype.BigInt)}}

	cols, err := objectColumns(t, fields, Options{}, `{"a":1,"a":2}`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cols[0].(*array.Int64).Value(0))

	_, err = objectColumns(t, fields, Options{ErrorOnDuplicateKey: true}, `{"a":1,"a":2}`)
	require.Error(t, err)
	assert.Equal(t, `Duplicate key "a" in object {"a":1,"a":2}`, err.Error())
}

func TestTransformObjectKeyPolicies(t *testing.T) {
	fields := []coltype.Field{
		{Name: "a", Type: coltype.Simple(coltype.BigInt)},
		{Name: "b", Type: coltype.Simple(coltype.Varchar)},
	}

	cols, err := objectColumns(t, fields, Options{}, `{"a":1,"c":true}`, `[1]`, `null`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cols[0].(*array.Int64).Value(0))
	assert.True(t, cols[1].IsNull(0))
	assert.True(t, cols[0].IsNull(1))
	assert.True(t, cols[1].IsNull(2))

	_, err = objectColumns(t, fields, Options{ErrorOnMissingKey: true}, `{"a":1}`)
	require.Error(t, err)
	assert.Equal(t, `Object {"a":1} does not have key "b"`, err.Error())

	_, err = objectColumns(t, fields, Options{ErrorOnUnknownKey: true}, `{"a":1,"b":"x","c":2}`)
	require.Error(t, err)
	assert.Equal(t, `Object {"a":1,"b":"x","c":2} has unknown key "c"`, err.Error())

	_, err = objectColumns(t, fields, Options{StrictCast: true}, `{"a":1}`, `"scalar"`)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, `Expected OBJECT, but got "scalar"`, terr.Message)
}

func TestTransformDelayError(t *testing.T) {
	fields := []coltype.Field{{Name: "a", Type: coltype.Simple(coltype.BigInt)}}
	in := []string{`{"a":1}`, `{"a":"x"}`, `{"a":"y"}`, `{"a":4}`}

	cols, err := objectColumns(t, fields, Options{StrictCast: true, DelayError: true}, in...)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, `Failed to cast value to numerical: "x"`, terr.Message)
	require.Equal(t, 4, cols[0].Len())
	assert.Equal(t, int64(4), cols[0].(*array.Int64).Value(3))

	cols, err = objectColumns(t, fields, Options{StrictCast: true}, in...)
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, terr.Index)
	assert.Equal(t, 2, cols[0].Len())
}

func TestDocStringTruncates(t *testing.T) {
	v := vmf.NewString("0123456789012345678901234567890123456789012345678901234567890")
	s := docString(v)
	assert.Len(t, s, docStringLimit+3)
	assert.Equal(t, "...", s[len(s)-3:])
}

func TestDocStringTruncatesOnRuneBoundary(t *testing.T) {
	// the quote shifts every two byte rune to start at an odd offset
	v := vmf.NewString(strings.Repeat("é", 40))
	s := docString(v)
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, `"`+strings.Repeat("é", 24)+"...", s)
}
