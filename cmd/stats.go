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

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/vmfscan/internal/colstats"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats FILE...",
		Short: "Profile the scanned columns",
		Long: `Scan files and print per-column counts, null counts, estimated
distinct values and, for numeric columns, approximate quantiles.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWithTelemetry("stats", runStats),
	}
	addScanFlags(cmd)
	rootCmd.AddCommand(cmd)
}

type statsReport struct {
	ScanID  string            `yaml:"scan_id"`
	Rows    int64             `yaml:"rows"`
	Columns []colstats.Column `yaml:"columns"`
}

func runStats(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := bind(ctx, cfg, args, scan.KindRead)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	collector, err := colstats.New(b.Schema())
	if err != nil {
		return err
	}
	var rows int64
	if err := scan.NewScanner(b).Scan(ctx, func(rec arrow.RecordBatch) error {
		rows += rec.NumRows()
		return collector.Add(rec)
	}); err != nil {
		return err
	}
	cols, err := collector.Columns()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(c.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(statsReport{ScanID: b.ID(), Rows: rows, Columns: cols}); err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return enc.Close()
}
