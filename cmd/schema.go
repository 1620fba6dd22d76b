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
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

func init() {
	cmd := &cobra.Command{
		Use:   "schema FILE...",
		Short: "Print the columns detected from a sample of the input",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWithTelemetry("schema", runSchema),
	}
	addScanFlags(cmd)
	rootCmd.AddCommand(cmd)
}

type schemaColumn struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type schemaFile struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
}

type schemaReport struct {
	ScanID          string         `yaml:"scan_id"`
	Files           []schemaFile   `yaml:"files"`
	Records         string         `yaml:"records"`
	Samples         int64          `yaml:"samples"`
	DateFormat      string         `yaml:"date_format,omitempty"`
	TimestampFormat string         `yaml:"timestamp_format,omitempty"`
	Fingerprint     string         `yaml:"fingerprint"`
	Columns         []schemaColumn `yaml:"columns"`
}

func newSchemaReport(b *scan.Binding) schemaReport {
	r := schemaReport{
		ScanID:      b.ID(),
		Records:     b.RecordType().String(),
		Samples:     b.Samples(),
		Fingerprint: fmt.Sprintf("%016x", coltype.SchemaFingerprint(b.Columns())),
	}
	formats := b.FileFormats()
	for i, f := range b.Files() {
		r.Files = append(r.Files, schemaFile{Name: f, Format: formats[i].String()})
	}
	if m := b.Formats(); m != nil {
		if f, ok := m.Preferred(coltype.Date); ok {
			r.DateFormat = f.String()
		}
		if f, ok := m.Preferred(coltype.Timestamp); ok {
			r.TimestampFormat = f.String()
		}
	}
	for _, c := range b.Columns() {
		r.Columns = append(r.Columns, schemaColumn{Name: c.Name, Type: c.Type.String()})
	}
	return r
}

func runSchema(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := bind(ctx, cfg, args, scan.KindSample)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	enc := yaml.NewEncoder(c.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(newSchemaReport(b)); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return enc.Close()
}
