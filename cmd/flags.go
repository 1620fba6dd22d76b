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
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/vmfscan/config"
	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/scan"
)

// addScanFlags registers the flags shared by every command that binds
// input files. Defaults come from config; a flag only overrides config
// when it is set.
func addScanFlags(c *cobra.Command) {
	d := config.DefaultScanConfig()
	f := c.Flags()
	f.String("format", d.Format, "Input layout: auto, newline_delimited, array or unstructured")
	f.String("records", d.Records, "Unpack top-level objects: auto, records or values")
	f.String("compression", d.Compression, "Input compression: auto, none, gzip or zstd")
	f.String("columns", "", `Explicit columns, e.g. "a BIGINT, b STRUCT(x VARCHAR)"`)
	f.Bool("auto-detect", d.AutoDetect, "Infer columns from a sample of the input")
	f.Bool("allow-comments", false, "Accept comments and trailing commas in documents")
	f.Bool("ignore-errors", false, "Turn malformed documents into null rows")
	f.Bool("skip-invalid-rows", false, "Drop rows that fail conversion instead of failing the scan")
	f.Int("maximum-object-size", d.MaximumObjectSize, "Largest document in bytes")
	f.Int("sample-size", d.SampleSize, "Documents sampled for detection, -1 for all")
	f.Int("maximum-sample-files", d.MaximumSampleFiles, "Files sampled for detection, -1 for all")
	f.Int("max-depth", d.MaxDepth, "Nesting depth of detected types, -1 for unlimited")
	f.Float64("field-appearance-threshold", d.FieldAppearanceThreshold, "Minimum average key frequency for a STRUCT")
	f.Int("map-inference-threshold", d.MapInferenceThreshold, "Key count above which objects become MAPs, -1 to disable")
	f.Bool("convert-strings-to-integers", false, "Detect numeric strings as integers")
	f.Bool("union-by-name", false, "Merge the structure of every sampled file")
	f.String("date-format", "", "strftime format for DATE columns")
	f.String("timestamp-format", "", "strftime format for TIMESTAMP columns")
	f.String("filename-column", "", "Add a column carrying the source file name")
	f.Int("threads", 0, "Scan workers, 0 for one per CPU")
}

// applyScanFlags copies every flag set on c into sc.
func applyScanFlags(c *cobra.Command, sc *config.ScanConfig) error {
	f := c.Flags()
	strs := map[string]*string{
		"format":           &sc.Format,
		"records":          &sc.Records,
		"compression":      &sc.Compression,
		"columns":          &sc.Columns,
		"date-format":      &sc.DateFormat,
		"timestamp-format": &sc.TimestampFormat,
		"filename-column":  &sc.FilenameColumn,
	}
	bools := map[string]*bool{
		"auto-detect":                 &sc.AutoDetect,
		"allow-comments":              &sc.AllowComments,
		"ignore-errors":               &sc.IgnoreErrors,
		"skip-invalid-rows":           &sc.SkipInvalidRows,
		"convert-strings-to-integers": &sc.ConvertStringsToIntegers,
		"union-by-name":               &sc.UnionByName,
	}
	ints := map[string]*int{
		"maximum-object-size":     &sc.MaximumObjectSize,
		"sample-size":             &sc.SampleSize,
		"maximum-sample-files":    &sc.MaximumSampleFiles,
		"max-depth":               &sc.MaxDepth,
		"map-inference-threshold": &sc.MapInferenceThreshold,
		"threads":                 &sc.Threads,
	}

	var err error
	for name, dst := range strs {
		if f.Changed(name) {
			if *dst, err = f.GetString(name); err != nil {
				return fmt.Errorf("failed to get %s flag: %w", name, err)
			}
		}
	}
	for name, dst := range bools {
		if f.Changed(name) {
			if *dst, err = f.GetBool(name); err != nil {
				return fmt.Errorf("failed to get %s flag: %w", name, err)
			}
		}
	}
	for name, dst := range ints {
		if f.Changed(name) {
			if *dst, err = f.GetInt(name); err != nil {
				return fmt.Errorf("failed to get %s flag: %w", name, err)
			}
		}
	}
	if f.Changed("field-appearance-threshold") {
		if sc.FieldAppearanceThreshold, err = f.GetFloat64("field-appearance-threshold"); err != nil {
			return fmt.Errorf("failed to get field-appearance-threshold flag: %w", err)
		}
	}
	return nil
}

// bind opens paths with the scan options from cfg. An S3 client is only
// built when a path needs one.
func bind(ctx context.Context, cfg *config.Config, paths []string, kind scan.Kind) (*scan.Binding, error) {
	opts, err := cfg.Scan.Options()
	if err != nil {
		return nil, err
	}
	opts.Kind = kind
	for _, p := range paths {
		if strings.HasPrefix(p, "s3://") {
			client, err := bytesource.NewS3Client(ctx, cfg.S3.ClientOptions())
			if err != nil {
				return nil, err
			}
			opts.S3 = client
			break
		}
	}
	return scan.Bind(ctx, paths, opts)
}
