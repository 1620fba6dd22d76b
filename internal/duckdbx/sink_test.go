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
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

func TestCreateTableSQL(t *testing.T) {
	cols, err := coltype.ParseColumns(`id BIGINT, doc VMF, tags VARCHAR[], attrs MAP(VARCHAR, DOUBLE), s STRUCT("my key" UUID)`)
	require.NoError(t, err)

	got := CreateTableSQL("events", cols)
	want := `CREATE TABLE events ("id" BIGINT, "doc" VARCHAR, "tags" VARCHAR[], "attrs" MAP(VARCHAR, DOUBLE), "s" STRUCT("my key" UUID))`
	assert.Equal(t, want, got)
}

func TestTableSinkLoadsScan(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ndjson")
	content := `{"id": 1, "name": "a", "tags": ["x", "y"], "at": "2024-01-02", "meta": {"ok": true}}
{"id": 2, "name": null, "tags": [], "at": "2024-03-04", "meta": {"ok": false}}
{"id": 3, "name": "c", "tags": ["z"], "at": "2024-05-06", "meta": {"ok": true}}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts := scan.DefaultOptions()
	opts.MaximumObjectSize = 1 << 16
	opts.Threads = 2
	b, err := scan.Bind(ctx, []string{path}, opts)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	sink, err := NewTableSink(ctx, db, "events", b.Columns(), true)
	require.NoError(t, err)
	err = scan.NewScanner(b).Scan(ctx, func(rec arrow.RecordBatch) error {
		return sink.Append(ctx, rec)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), sink.Rows())
	require.NoError(t, sink.Close())

	rows, conn, err := db.QueryContext(ctx,
		`SELECT count(*), count(name), sum(len(tags)), count(*) FILTER (WHERE meta.ok), max(at)::VARCHAR FROM events`)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	defer func() { _ = rows.Close() }()

	require.True(t, rows.Next())
	var total, named, tags, ok int64
	var maxAt string
	require.NoError(t, rows.Scan(&total, &named, &tags, &ok, &maxAt))
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), named)
	assert.Equal(t, int64(3), tags)
	assert.Equal(t, int64(2), ok)
	assert.Equal(t, "2024-05-06", maxAt)
}

func TestTableSinkRejectsNarrowRecords(t *testing.T) {
	ctx := context.Background()
	db, err := Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cols := []coltype.Field{
		{Name: "a", Type: coltype.Simple(coltype.BigInt)},
		{Name: "b", Type: coltype.Simple(coltype.BigInt)},
	}
	sink, err := NewTableSink(ctx, db, "t", cols, false)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	narrow := arrow.NewSchema([]arrow.Field{{Name: "a", Type: arrow.PrimitiveTypes.Int64}}, nil)
	rec := emptyRecord(narrow)
	defer rec.Release()
	assert.Error(t, sink.Append(ctx, rec))
}

func emptyRecord(schema *arrow.Schema) arrow.RecordBatch {
	rb := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer rb.Release()
	return rb.NewRecordBatch()
}
