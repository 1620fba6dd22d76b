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
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/vmfscan/internal/scan"
	"github.com/cardinalhq/vmfscan/vmf"
)

func init() {
	cmd := &cobra.Command{
		Use:   "extract PATH FILE...",
		Short: "Print the value at a path of every document",
		Long: `Print the value found at PATH in each document, one per line, or null when
the path does not match. PATH is either a $ path such as $.a[0]."b c" or
$.items[*].id, or a JSON pointer such as /a/0.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runWithTelemetry("extract", runExtract),
	}
	addScanFlags(cmd)
	cmd.Flags().Bool("skip-missing", false, "Print nothing for documents where the path does not match")
	rootCmd.AddCommand(cmd)
}

func runExtract(ctx context.Context, c *cobra.Command, args []string) error {
	path, err := vmf.ParsePath(args[0])
	if err != nil {
		return fmt.Errorf("bad path %q: %w", args[0], err)
	}
	skipMissing, _ := c.Flags().GetBool("skip-missing")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := bind(ctx, cfg, args[1:], scan.KindObjects)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	parseOpts := vmf.ParseOptions{AllowComments: cfg.Scan.AllowComments}
	out := bufio.NewWriter(c.OutOrStdout())
	var rows int64
	err = scan.NewScanner(b).Scan(ctx, func(rec arrow.RecordBatch) error {
		docs := rec.Column(0).(*array.String)
		for i := 0; i < docs.Len(); i++ {
			var res *vmf.Value
			if docs.IsValid(i) {
				doc, err := vmf.ParseWith([]byte(docs.Value(i)), parseOpts)
				if err != nil {
					return err
				}
				res = extractPath(path, doc)
			}
			if res == nil && skipMissing {
				continue
			}
			if _, err := fmt.Fprintln(out, res.String()); err != nil {
				return err
			}
			rows++
		}
		return nil
	})
	recordRowsWritten(ctx, "extract", rows)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	return err
}

// extractPath applies p the way Value.Extract does.
func extractPath(p *vmf.Path, doc *vmf.Value) *vmf.Value {
	found := p.Lookup(doc)
	if p.Wildcard() {
		return vmf.NewArray(found...)
	}
	if len(found) == 0 {
		return nil
	}
	return found[0]
}
