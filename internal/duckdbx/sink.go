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

package duckdbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/marcboeker/go-duckdb/v2"

	"github.com/cardinalhq/vmfscan/internal/coltype"
)

// TableSink appends record batches to a DuckDB table through an Appender.
// It is not safe for concurrent use.
type TableSink struct {
	conn     *sql.Conn
	appender *duckdb.Appender
	table    string
	columns  []coltype.Field
	rows     int64
	closed   bool
}

// NewTableSink creates table with one column per field and opens an
// appender on it. With replace set an existing table is dropped first.
func NewTableSink(ctx context.Context, db *DB, table string, columns []coltype.Field, replace bool) (*TableSink, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q needs at least one column", table)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	if replace {
		if _, err := conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+coltype.QuoteName(table)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("drop table: %w", err)
		}
	}
	createSQL := CreateTableSQL(table, columns)
	if _, err := conn.ExecContext(ctx, createSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create table: %w (SQL: %s)", err, createSQL)
	}

	var appender *duckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		rawConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to get driver connection")
		}
		var appErr error
		appender, appErr = duckdb.NewAppenderFromConn(rawConn, "", table)
		return appErr
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create appender: %w", err)
	}

	return &TableSink{
		conn:     conn,
		appender: appender,
		table:    table,
		columns:  columns,
	}, nil
}

// CreateTableSQL builds the CREATE TABLE statement for columns.
func CreateTableSQL(table string, columns []coltype.Field) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("\"%s\" %s", strings.ReplaceAll(c.Name, `"`, `""`), duckdbType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", coltype.QuoteName(table), strings.Join(defs, ", "))
}

// duckdbType spells t in DuckDB syntax. Documents are stored as VARCHAR
// so the json extension is not needed.
func duckdbType(t coltype.Type) string {
	switch t.ID {
	case coltype.VMF:
		return "VARCHAR"
	case coltype.Null:
		return "VARCHAR"
	case coltype.List:
		return duckdbType(t.Child()) + "[]"
	case coltype.Map:
		return "MAP(VARCHAR, " + duckdbType(t.Child()) + ")"
	case coltype.Struct:
		fields := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = fmt.Sprintf("\"%s\" %s", strings.ReplaceAll(f.Name, `"`, `""`), duckdbType(f.Type))
		}
		return "STRUCT(" + strings.Join(fields, ", ") + ")"
	}
	return t.ID.String()
}

// Append adds every row of rec. The leading columns of rec must match the
// sink's columns; extra trailing columns are ignored.
func (s *TableSink) Append(ctx context.Context, rec arrow.RecordBatch) error {
	if s.closed {
		return fmt.Errorf("sink for %q is closed", s.table)
	}
	if int(rec.NumCols()) < len(s.columns) {
		return fmt.Errorf("record has %d columns, table %q has %d", rec.NumCols(), s.table, len(s.columns))
	}
	values := make([]driver.Value, len(s.columns))
	n := int(rec.NumRows())
	for i := range n {
		if i%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		for j, c := range s.columns {
			values[j] = cellValue(rec.Column(j), i, c.Type)
		}
		if err := s.appender.AppendRow(values...); err != nil {
			return fmt.Errorf("append row %d: %w", s.rows+int64(i), err)
		}
	}
	s.rows += int64(n)
	rowsAppendedCounter.Add(ctx, int64(n))
	return nil
}

// Rows is the number of rows appended so far.
func (s *TableSink) Rows() int64 { return s.rows }

// Close flushes the appender and releases the connection.
func (s *TableSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.appender.Close()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// cellValue converts row i of arr into the Go value the appender expects
// for t.
func cellValue(arr arrow.Array, i int, t coltype.Type) driver.Value {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Uint64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.Date32:
		return a.Value(i).ToTime()
	case *array.Time64:
		return a.Value(i).ToTime(arrow.Microsecond)
	case *array.Timestamp:
		return a.Value(i).ToTime(arrow.Microsecond)
	case *array.FixedSizeBinary:
		var u duckdb.UUID
		copy(u[:], a.Value(i))
		return u
	case *array.Map:
		start, end := a.ValueOffsets(i)
		keys, items := a.Keys().(*array.String), a.Items()
		m := make(duckdb.Map, end-start)
		for j := int(start); j < int(end); j++ {
			m[keys.Value(j)] = cellValue(items, j, t.Child())
		}
		return m
	case *array.List:
		start, end := a.ValueOffsets(i)
		child := a.ListValues()
		out := make([]any, 0, end-start)
		for j := int(start); j < int(end); j++ {
			out = append(out, cellValue(child, j, t.Child()))
		}
		return out
	case *array.Struct:
		m := make(map[string]any, len(t.Fields))
		for k, f := range t.Fields {
			m[f.Name] = cellValue(a.Field(k), i, f.Type)
		}
		return m
	}
	return nil
}
