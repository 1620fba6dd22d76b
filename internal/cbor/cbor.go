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
// Package cbor encodes scanned rows as a stream of CBOR maps, one data
// item per row.
//
// CBOR Type Behavior:
//   - BIGINT becomes a signed integer, UBIGINT an unsigned one
//   - DATE and TIMESTAMP become tagged RFC 3339 times, TIME a "15:04:05" text
//   - UUID becomes its canonical text form
//   - LIST becomes an array, STRUCT and MAP become maps keyed by text
//   - null cells are CBOR null
package cbor

import (
	"fmt"
	"io"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/fxamacker/cbor/v2"
)

// Config holds CBOR encoder and decoder configurations for row data.
type Config struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewConfig creates a new CBOR configuration for row data.
func NewConfig() (*Config, error) {
	encMode, err := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic, // Stable key order for identical rows
		ShortestFloat: cbor.ShortestFloatNone,     // Don't convert float types
		BigIntConvert: cbor.BigIntConvertNone,     // Don't convert large integers
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagRequired,
	}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	decMode, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any{}), // Decode maps as map[string]any instead of map[interface{}]interface{}
		UTF8:           cbor.UTF8DecodeInvalid,           // Allow decoding CBOR Text containing invalid UTF-8 strings
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR decoder: %w", err)
	}

	return &Config{
		encMode: encMode,
		decMode: decMode,
	}, nil
}

// NewDecoder creates a new CBOR decoder using the row configuration.
func (c *Config) NewDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// Encode encodes one row to CBOR bytes.
func (c *Config) Encode(row map[string]any) ([]byte, error) {
	return c.encMode.Marshal(row)
}

// Decode decodes one row from CBOR bytes.
func (c *Config) Decode(data []byte) (map[string]any, error) {
	var row map[string]any
	if err := c.decMode.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// ReadRows decodes every row in r.
func (c *Config) ReadRows(r io.Reader) ([]map[string]any, error) {
	dec := c.NewDecoder(r)
	var rows []map[string]any
	for {
		var row map[string]any
		err := dec.Decode(&row)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// RowWriter streams record batches as CBOR rows.
type RowWriter struct {
	enc *cbor.Encoder
}

// NewRowWriter writes rows encoded with c to w.
func (c *Config) NewRowWriter(w io.Writer) *RowWriter {
	return &RowWriter{enc: c.encMode.NewEncoder(w)}
}

// WriteRecord encodes every row of rec.
func (w *RowWriter) WriteRecord(rec arrow.RecordBatch) error {
	schema := rec.Schema()
	for i := 0; i < int(rec.NumRows()); i++ {
		row := make(map[string]any, rec.NumCols())
		for j, col := range rec.Columns() {
			row[schema.Field(j).Name] = CellValue(col, i)
		}
		if err := w.enc.Encode(row); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return nil
}
