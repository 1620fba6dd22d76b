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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/vmfscan/internal/duckdbx"
)

func init() {
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a SQL query against the DuckDB database",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithTelemetry("query", runQuery),
	}
	cmd.Flags().String("db", "", "DuckDB database file (default from config)")
	rootCmd.AddCommand(cmd)
}

func runQuery(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	db, err := openDuckDB(ctx, c, cfg.DuckDB)
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	n, err := printQuery(ctx, db, args[0], c.OutOrStdout())
	recordRowsWritten(ctx, "query", n)
	return err
}

// printQuery writes the result of q as an aligned table.
func printQuery(ctx context.Context, db *duckdbx.DB, q string, w io.Writer) (int64, error) {
	rows, conn, err := db.QueryContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	// Collect all data first to calculate column widths
	var all [][]string
	values := make([]any, len(cols))
	scanArgs := make([]any, len(values))
	for i := range values {
		scanArgs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(scanArgs...); err != nil {
			return 0, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			if v == nil {
				row[i] = "<NULL>"
			} else {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
		all = append(all, row)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, row := range all {
		for i, v := range row {
			widths[i] = max(widths[i], len(v))
		}
	}
	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, v := range cells {
			parts[i] = v + strings.Repeat(" ", widths[i]-len(v))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(cols)
	seps := make([]string, len(cols))
	for i := range cols {
		seps[i] = strings.Repeat("-", widths[i])
	}
	line(seps)
	for _, row := range all {
		line(row)
	}
	return int64(len(all)), nil
}
