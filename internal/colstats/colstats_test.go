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
package colstats

import (
	"fmt"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = arrow.NewSchema([]arrow.Field{
	{Name: "n", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "f", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "s", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

func buildRecord(t *testing.T, from, to int) arrow.RecordBatch {
	t.Helper()
	rb := array.NewRecordBuilder(memory.NewGoAllocator(), testSchema)
	defer rb.Release()
	for i := from; i <= to; i++ {
		if i%10 == 0 {
			rb.Field(0).AppendNull()
		} else {
			rb.Field(0).(*array.Int64Builder).Append(int64(i))
		}
		rb.Field(1).(*array.Float64Builder).Append(math.NaN())
		rb.Field(2).(*array.StringBuilder).Append(fmt.Sprintf("k%d", i%5))
	}
	rec := rb.NewRecordBatch()
	t.Cleanup(rec.Release)
	return rec
}

func TestCollectorProfiles(t *testing.T) {
	c, err := New(testSchema)
	require.NoError(t, err)
	require.NoError(t, c.Add(buildRecord(t, 1, 50)))
	require.NoError(t, c.Add(buildRecord(t, 51, 100)))

	cols, err := c.Columns()
	require.NoError(t, err)
	require.Len(t, cols, 3)

	n := cols[0]
	assert.Equal(t, "n", n.Name)
	assert.Equal(t, "int64", n.Type)
	assert.Equal(t, int64(100), n.Count)
	assert.Equal(t, int64(10), n.Nulls)
	assert.InDelta(t, 90, float64(n.Distinct), 2)
	require.NotNil(t, n.Numeric)
	assert.InDelta(t, 1, n.Numeric.Min, 0.01)
	assert.InDelta(t, 99, n.Numeric.Max, 0.99)
	assert.InEpsilon(t, 50, n.Numeric.P50, 0.05)
	assert.InEpsilon(t, 98, n.Numeric.P99, 0.05)

	f := cols[1]
	assert.Equal(t, int64(100), f.Count)
	assert.Zero(t, f.Nulls)
	assert.Nil(t, f.Numeric, "NaN values are not sketched")

	s := cols[2]
	assert.Equal(t, "utf8", s.Type)
	assert.InDelta(t, 5, float64(s.Distinct), 1)
	assert.Nil(t, s.Numeric)
}

func TestCollectorEmpty(t *testing.T) {
	c, err := New(testSchema)
	require.NoError(t, err)
	cols, err := c.Columns()
	require.NoError(t, err)
	for _, col := range cols {
		assert.Zero(t, col.Count)
		assert.Zero(t, col.Distinct)
		assert.Nil(t, col.Numeric)
	}
}

func TestCollectorRejectsOtherSchema(t *testing.T) {
	other := arrow.NewSchema([]arrow.Field{{Name: "x", Type: arrow.PrimitiveTypes.Int64}}, nil)
	c, err := New(other)
	require.NoError(t, err)
	assert.Error(t, c.Add(buildRecord(t, 1, 3)))
}
