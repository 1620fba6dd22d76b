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
	"log/slog"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/vmfscan/config"
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/duckdbx"
	"github.com/cardinalhq/vmfscan/internal/logctx"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Load documents into a DuckDB table",
		Long: `Create a DuckDB table from the detected columns and append every row.
Rows are loaded into a staging table first, so the target table only changes
when the whole scan succeeds.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWithTelemetry("ingest", runIngest),
	}
	addScanFlags(cmd)
	cmd.Flags().String("db", "", "DuckDB database file (default from config, :memory: when unset)")
	cmd.Flags().String("table", "", "Target table (default from config)")
	cmd.Flags().Bool("replace", false, "Replace the table instead of appending to it")
	rootCmd.AddCommand(cmd)
}

func openDuckDB(ctx context.Context, c *cobra.Command, cfg config.DuckDBConfig) (*duckdbx.DB, error) {
	path := cfg.Path
	if p, _ := c.Flags().GetString("db"); p != "" {
		path = p
	}
	return duckdbx.Open(path,
		duckdbx.WithMemoryLimitMB(cfg.MemoryLimit),
		duckdbx.WithThreads(cfg.Threads),
		duckdbx.WithTempDirectory(cfg.GetTempDirectory()),
		duckdbx.WithMaxTempDirectorySize(cfg.GetMaxTempDirectorySize()),
		duckdbx.WithMetrics(10*time.Second),
		duckdbx.WithMetricsContext(ctx),
		duckdbx.WithName(c.Name()),
	)
}

// tableColumns are the binding's columns plus the filename column.
func tableColumns(b *scan.Binding) []coltype.Field {
	cols := append([]coltype.Field(nil), b.Columns()...)
	if name := b.Options().FilenameColumn; name != "" {
		cols = append(cols, coltype.Field{Name: name, Type: coltype.Simple(coltype.Varchar)})
	}
	return cols
}

func runIngest(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	table := cfg.DuckDB.Table
	if t, _ := c.Flags().GetString("table"); t != "" {
		table = t
	}
	replace, _ := c.Flags().GetBool("replace")

	b, err := bind(ctx, cfg, args, scan.KindRead)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	db, err := openDuckDB(ctx, c, cfg.DuckDB)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := ingest(ctx, db, b, table, replace)
	recordRowsWritten(ctx, "ingest", rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "%d rows loaded into %s\n", rows, table)
	return nil
}

// ingest scans b into a staging table and publishes it as table.
func ingest(ctx context.Context, db *duckdbx.DB, b *scan.Binding, table string, replace bool) (int64, error) {
	ctx = logctx.WithAttrs(ctx, slog.String("table", table))
	ll := logctx.FromContext(ctx).With(slog.String("scanID", b.ID()))
	stage := duckdbx.StagingName(table)

	sink, err := duckdbx.NewTableSink(ctx, db, stage, tableColumns(b), true)
	if err != nil {
		return 0, err
	}
	err = scan.NewScanner(b).Scan(ctx, func(rec arrow.RecordBatch) error {
		return sink.Append(ctx, rec)
	})
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = duckdbx.PublishTable(ctx, db, stage, table, replace)
	}
	if err != nil {
		if derr := duckdbx.DropTable(context.WithoutCancel(ctx), db, stage); derr != nil {
			ll.Warn("Failed to drop staging table", slog.String("stage", stage), slog.Any("error", derr))
		}
		return 0, err
	}
	attrs := []any{slog.Int64("rows", sink.Rows())}
	if stats, err := db.RecordMemoryStats(ctx); err == nil && len(stats) > 0 {
		attrs = append(attrs, slog.Int64("databaseSize", stats[0].DatabaseSize), slog.Int64("memoryUsage", stats[0].MemoryUsage))
	}
	ll.Info("Ingested rows", attrs...)
	return sink.Rows(), nil
}
