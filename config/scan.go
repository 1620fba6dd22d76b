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
package config

import (
	"fmt"
	"runtime"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/scan"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
)

// ScanConfig is the textual form of scan.Options, as read from files,
// the environment or flags.
type ScanConfig struct {
	Format                   string  `mapstructure:"format"`
	Records                  string  `mapstructure:"records"`
	Compression              string  `mapstructure:"compression"`
	AllowComments            bool    `mapstructure:"allow_comments"`
	Columns                  string  `mapstructure:"columns"`
	AutoDetect               bool    `mapstructure:"auto_detect"`
	IgnoreErrors             bool    `mapstructure:"ignore_errors"`
	SkipInvalidRows          bool    `mapstructure:"skip_invalid_rows"`
	MaximumObjectSize        int     `mapstructure:"maximum_object_size"`
	SampleSize               int     `mapstructure:"sample_size"`
	MaximumSampleFiles       int     `mapstructure:"maximum_sample_files"`
	MaxDepth                 int     `mapstructure:"max_depth"`
	FieldAppearanceThreshold float64 `mapstructure:"field_appearance_threshold"`
	MapInferenceThreshold    int     `mapstructure:"map_inference_threshold"`
	ConvertStringsToIntegers bool    `mapstructure:"convert_strings_to_integers"`
	UnionByName              bool    `mapstructure:"union_by_name"`
	DateFormat               string  `mapstructure:"date_format"`
	TimestampFormat          string  `mapstructure:"timestamp_format"`
	FilenameColumn           string  `mapstructure:"filename_column"`
	Threads                  int     `mapstructure:"threads"`
}

// DefaultScanConfig mirrors scan.DefaultOptions.
func DefaultScanConfig() ScanConfig {
	d := scan.DefaultOptions()
	return ScanConfig{
		Format:                   "auto",
		Records:                  "auto",
		Compression:              "auto",
		AutoDetect:               d.AutoDetect,
		MaximumObjectSize:        d.MaximumObjectSize,
		SampleSize:               d.SampleSize,
		MaximumSampleFiles:       d.MaximumSampleFiles,
		MaxDepth:                 d.MaxDepth,
		FieldAppearanceThreshold: d.FieldAppearanceThreshold,
		MapInferenceThreshold:    d.MapInferenceThreshold,
	}
}

// Options converts the section into scan options. Threads of 0 keeps
// one worker per available CPU.
func (c ScanConfig) Options() (scan.Options, error) {
	o := scan.DefaultOptions()
	var err error
	if o.Format, err = vmfreader.ParseFormat(c.Format); err != nil {
		return o, fmt.Errorf("scan.format: %w", err)
	}
	if o.RecordType, err = vmfreader.ParseRecordType(c.Records); err != nil {
		return o, fmt.Errorf("scan.records: %w", err)
	}
	if o.Compression, err = bytesource.ParseCompression(c.Compression); err != nil {
		return o, fmt.Errorf("scan.compression: %w", err)
	}
	if c.Columns != "" {
		if o.Columns, err = coltype.ParseColumns(c.Columns); err != nil {
			return o, fmt.Errorf("scan.columns: %w", err)
		}
	}
	o.AllowComments = c.AllowComments
	o.AutoDetect = c.AutoDetect && len(o.Columns) == 0
	o.IgnoreErrors = c.IgnoreErrors
	o.SkipInvalidRows = c.SkipInvalidRows
	o.MaximumObjectSize = c.MaximumObjectSize
	o.SampleSize = c.SampleSize
	o.MaximumSampleFiles = c.MaximumSampleFiles
	o.MaxDepth = c.MaxDepth
	o.FieldAppearanceThreshold = c.FieldAppearanceThreshold
	o.MapInferenceThreshold = c.MapInferenceThreshold
	o.ConvertStringsToIntegers = c.ConvertStringsToIntegers
	o.UnionByName = c.UnionByName
	o.DateFormat = c.DateFormat
	o.TimestampFormat = c.TimestampFormat
	o.FilenameColumn = c.FilenameColumn
	o.Threads = c.Threads
	if o.Threads <= 0 {
		o.Threads = runtime.GOMAXPROCS(0)
	}
	return o, nil
}
