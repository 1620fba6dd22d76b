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
// Package colstats profiles the columns of scanned record batches.
//
// Distinct counts are HyperLogLog estimates over each cell's string form.
// Numeric columns also get DDSketch quantiles with 1% relative accuracy.
package colstats

import (
	"fmt"
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/axiomhq/hyperloglog"
)

// RelativeAccuracy bounds the quantile error of numeric columns.
const RelativeAccuracy = 0.01

// Column is the profile of one column.
type Column struct {
	Name     string    `yaml:"name" json:"name"`
	Type     string    `yaml:"type" json:"type"`
	Count    int64     `yaml:"count" json:"count"`
	Nulls    int64     `yaml:"nulls" json:"nulls"`
	Distinct uint64    `yaml:"distinct" json:"distinct"`
	Numeric  *Quantile `yaml:"numeric,omitempty" json:"numeric,omitempty"`
}

// Quantile summarizes the finite values of a numeric column.
type Quantile struct {
	Min float64 `yaml:"min" json:"min"`
	P50 float64 `yaml:"p50" json:"p50"`
	P99 float64 `yaml:"p99" json:"p99"`
	Max float64 `yaml:"max" json:"max"`
}

type column struct {
	field arrow.Field
	count int64
	nulls int64
	hll   *hyperloglog.Sketch
	dds   *ddsketch.DDSketch
}

// Collector accumulates column profiles for one schema.
type Collector struct {
	schema  *arrow.Schema
	columns []*column
}

// New returns a Collector for batches of schema.
func New(schema *arrow.Schema) (*Collector, error) {
	c := &Collector{schema: schema, columns: make([]*column, schema.NumFields())}
	for i, f := range schema.Fields() {
		col := &column{field: f, hll: hyperloglog.New14()}
		if numeric(f.Type) {
			dds, err := ddsketch.NewDefaultDDSketch(RelativeAccuracy)
			if err != nil {
				return nil, fmt.Errorf("sketch for %s: %w", f.Name, err)
			}
			col.dds = dds
		}
		c.columns[i] = col
	}
	return c, nil
}

func numeric(t arrow.DataType) bool {
	switch t.ID() {
	case arrow.INT64, arrow.UINT64, arrow.FLOAT64:
		return true
	}
	return false
}

// Add folds every row of rec into the profiles.
func (c *Collector) Add(rec arrow.RecordBatch) error {
	if !rec.Schema().Equal(c.schema) {
		return fmt.Errorf("record schema %s does not match %s", rec.Schema(), c.schema)
	}
	for j, arr := range rec.Columns() {
		if err := c.columns[j].add(arr); err != nil {
			return err
		}
	}
	return nil
}

func (col *column) add(arr arrow.Array) error {
	for i := 0; i < arr.Len(); i++ {
		col.count++
		if arr.IsNull(i) {
			col.nulls++
			continue
		}
		col.hll.Insert([]byte(arr.ValueStr(i)))
		if col.dds == nil {
			continue
		}
		v := floatAt(arr, i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if err := col.dds.Add(v); err != nil {
			return fmt.Errorf("column %s row %d: %w", col.field.Name, i, err)
		}
	}
	return nil
}

func floatAt(arr arrow.Array, i int) float64 {
	switch a := arr.(type) {
	case *array.Int64:
		return float64(a.Value(i))
	case *array.Uint64:
		return float64(a.Value(i))
	case *array.Float64:
		return a.Value(i)
	}
	panic("INTERNAL Error: no numeric value for " + arr.DataType().String())
}

// Columns returns the profiles in schema order.
func (c *Collector) Columns() ([]Column, error) {
	out := make([]Column, len(c.columns))
	for i, col := range c.columns {
		out[i] = Column{
			Name:  col.field.Name,
			Type:  col.field.Type.String(),
			Count: col.count,
			Nulls: col.nulls,
		}
		if col.count > col.nulls {
			out[i].Distinct = col.hll.Estimate()
		}
		if col.dds == nil || col.dds.IsEmpty() {
			continue
		}
		q, err := quantiles(col.dds)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.field.Name, err)
		}
		out[i].Numeric = q
	}
	return out, nil
}

func quantiles(dds *ddsketch.DDSketch) (*Quantile, error) {
	var (
		q   Quantile
		err error
	)
	if q.Min, err = dds.GetMinValue(); err != nil {
		return nil, err
	}
	if q.Max, err = dds.GetMaxValue(); err != nil {
		return nil, err
	}
	if q.P50, err = dds.GetValueAtQuantile(0.5); err != nil {
		return nil, err
	}
	if q.P99, err = dds.GetValueAtQuantile(0.99); err != nil {
		return nil, err
	}
	return &q, nil
}
