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

	"github.com/cardinalhq/vmfscan/internal/scan"
)

func init() {
	cmd := &cobra.Command{
		Use:   "structure FILE...",
		Short: "Print the shape of the sampled documents",
		Long: `Print one document describing the sampled input: objects map keys to the
type seen for them, arrays hold the type of their elements, and "VMF" marks
places where the documents disagree.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runWithTelemetry("structure", runStructure),
	}
	addScanFlags(cmd)
	cmd.Flags().Bool("compact", false, "Print on one line")
	rootCmd.AddCommand(cmd)
}

func runStructure(ctx context.Context, c *cobra.Command, args []string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := bind(ctx, cfg, args, scan.KindSample)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	s := b.Structure()
	if s == nil {
		return fmt.Errorf("no documents were sampled from %d file(s)", len(b.Files()))
	}
	if compact, _ := c.Flags().GetBool("compact"); compact {
		_, err = fmt.Fprintln(c.OutOrStdout(), s.String())
	} else {
		_, err = fmt.Fprintln(c.OutOrStdout(), s.Pretty())
	}
	return err
}
