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
package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/vmfscan/config"
	"github.com/cardinalhq/vmfscan/internal/cbor"
	"github.com/cardinalhq/vmfscan/internal/duckdbx"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

const events = `{"id": 1, "name": "a", "tags": ["x"]}
{"id": 2, "name": "b", "tags": []}
{"id": 3, "name": null, "tags": ["y", "z"]}
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestScanCommandJSON(t *testing.T) {
	path := writeInput(t, events)
	out := execute(t, "scan", "--threads", "2", path)

	var got []map[string]any
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row), sc.Text())
		got = append(got, row)
	}
	want := []map[string]any{
		{"id": float64(1), "name": "a", "tags": []any{"x"}},
		{"id": float64(2), "name": "b", "tags": []any{}},
		{"id": float64(3), "name": nil, "tags": []any{"y", "z"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestScanCommandCBOR(t *testing.T) {
	path := writeInput(t, events)
	t.Cleanup(func() {
		c, _, err := rootCmd.Find([]string{"scan"})
		require.NoError(t, err)
		require.NoError(t, c.Flags().Set("output", "json"))
	})
	out := execute(t, "scan", "--output", "cbor", path)

	codec, err := cbor.NewConfig()
	require.NoError(t, err)
	rows, err := codec.ReadRows(strings.NewReader(out))
	require.NoError(t, err)
	want := []map[string]any{
		{"id": uint64(1), "name": "a", "tags": []any{"x"}},
		{"id": uint64(2), "name": "b", "tags": []any{}},
		{"id": uint64(3), "name": nil, "tags": []any{"y", "z"}},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestScanCommandParquet(t *testing.T) {
	path := writeInput(t, events)
	dir := t.TempDir()
	t.Cleanup(func() {
		c, _, err := rootCmd.Find([]string{"scan"})
		require.NoError(t, err)
		require.NoError(t, c.Flags().Set("output", "json"))
		require.NoError(t, c.Flags().Set("out-dir", "."))
	})
	execute(t, "scan", "--output", "parquet", "--out-dir", dir, path)

	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestStatsCommand(t *testing.T) {
	path := writeInput(t, events)
	out := execute(t, "stats", path)

	var report statsReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report), out)
	assert.Equal(t, int64(3), report.Rows)
	require.Len(t, report.Columns, 3)

	byName := map[string]int{}
	for i, c := range report.Columns {
		byName[c.Name] = i
	}
	name := report.Columns[byName["name"]]
	assert.Equal(t, int64(3), name.Count)
	assert.Equal(t, int64(1), name.Nulls)
	assert.Nil(t, name.Numeric)

	id := report.Columns[byName["id"]]
	assert.Zero(t, id.Nulls)
	require.NotNil(t, id.Numeric)
	assert.InDelta(t, 1, id.Numeric.Min, 0.02)
	assert.InDelta(t, 3, id.Numeric.Max, 0.06)
}

func TestSchemaCommand(t *testing.T) {
	path := writeInput(t, events)
	out := execute(t, "schema", path)

	var report schemaReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "records", report.Records)
	assert.Equal(t, int64(3), report.Samples)
	assert.Equal(t, []schemaFile{{Name: path, Format: "newline_delimited"}}, report.Files)
	assert.Equal(t, []schemaColumn{
		{Name: "id", Type: "BIGINT"},
		{Name: "name", Type: "VARCHAR"},
		{Name: "tags", Type: "VARCHAR[]"},
	}, report.Columns)
	assert.Len(t, report.Fingerprint, 16)
}

func TestStructureCommand(t *testing.T) {
	path := writeInput(t, `{"a": 1, "b": [true]}`+"\n"+`{"a": "x"}`+"\n")
	out := execute(t, "structure", "--compact", path)
	assert.Equal(t, `{"a":"VMF","b":["BOOLEAN"]}`+"\n", out)
}

func TestExtractCommand(t *testing.T) {
	path := writeInput(t, events)
	out := execute(t, "extract", "$.tags[0]", path)
	assert.Equal(t, "\"x\"\nnull\n\"y\"\n", out)
}

func TestApplyScanFlags(t *testing.T) {
	c := &cobra.Command{Use: "x"}
	addScanFlags(c)
	require.NoError(t, c.Flags().Parse([]string{
		"--format", "array", "--ignore-errors", "--sample-size", "7", "--field-appearance-threshold", "0.5",
	}))

	sc := config.DefaultScanConfig()
	sc.Records = "values"
	require.NoError(t, applyScanFlags(c, &sc))
	assert.Equal(t, "array", sc.Format)
	assert.Equal(t, "values", sc.Records, "unset flags keep config values")
	assert.True(t, sc.IgnoreErrors)
	assert.Equal(t, 7, sc.SampleSize)
	assert.Equal(t, 0.5, sc.FieldAppearanceThreshold)
}

type countingSink struct {
	rows int64
}

func (s *countingSink) Write(_ context.Context, rec arrow.RecordBatch) error {
	s.rows += rec.NumRows()
	return nil
}
func (s *countingSink) Close(context.Context) error { return nil }
func (s *countingSink) Abort()                      {}

func TestScanIntoLimit(t *testing.T) {
	ctx := context.Background()
	var sb strings.Builder
	for i := 0; i < 100; i++ {
		sb.WriteString(`{"n": 1}` + "\n")
	}
	opts := scan.DefaultOptions()
	opts.MaximumObjectSize = 1 << 12
	opts.VectorSize = 8
	b, err := scan.Bind(ctx, []string{writeInput(t, sb.String())}, opts)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	sink := &countingSink{}
	n, err := scanInto(ctx, scan.NewScanner(b), sink, 13)
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
	assert.Equal(t, int64(13), sink.rows)
}

func TestIngestAndQuery(t *testing.T) {
	ctx := context.Background()
	opts := scan.DefaultOptions()
	opts.MaximumObjectSize = 1 << 12
	opts.FilenameColumn = "source"
	b, err := scan.Bind(ctx, []string{writeInput(t, events)}, opts)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	db, err := duckdbx.Open("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	n, err := ingest(ctx, db, b, "events", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var out bytes.Buffer
	rows, err := printQuery(ctx, db, "SELECT id, name FROM events ORDER BY id", &out)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.Equal(t, "id  name\n--  ------\n1   a\n2   b\n3   <NULL>\n", out.String())

	var tables bytes.Buffer
	_, err = printQuery(ctx, db, "SELECT table_name FROM duckdb_tables() ORDER BY 1", &tables)
	require.NoError(t, err)
	assert.Equal(t, "table_name\n----------\nevents\n", tables.String())
}
