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

// Package vmfreader owns the per-file read state of a scan: the file cursor
// with its rewind cache, the registry of in-flight read buffers, and the
// line bookkeeping used to place errors.
//
// Buffers are claimed in file order under the reader lock and parsed
// concurrently. Each claimed buffer gets an index and a slot in the
// per-buffer line count table. Counts are posted once a buffer has been
// split into records, so an error in buffer n can be reported with an
// exact line number once buffers 0..n-1 have posted theirs.
package vmfreader

import (
	"fmt"
	"strings"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
)

// Format is the layout of documents within a file.
type Format uint8

const (
	FormatAuto Format = iota
	// FormatUnstructured is any sequence of whitespace separated documents.
	FormatUnstructured
	// FormatNewlineDelimited is one document per line.
	FormatNewlineDelimited
	// FormatArray is a single top-level array whose elements are the documents.
	FormatArray
)

func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatUnstructured:
		return "unstructured"
	case FormatNewlineDelimited:
		return "newline_delimited"
	case FormatArray:
		return "array"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto", "auto_detect":
		return FormatAuto, nil
	case "unstructured":
		return FormatUnstructured, nil
	case "newline_delimited", "nd", "ndvmf", "lines":
		return FormatNewlineDelimited, nil
	case "array":
		return FormatArray, nil
	}
	return FormatAuto, fmt.Errorf("unknown format %q", s)
}

// RecordType says whether top-level objects are unpacked into columns.
type RecordType uint8

const (
	RecordsAuto RecordType = iota
	// Records unpacks each top-level object into one column per key.
	Records
	// Values keeps each document whole in a single column.
	Values
)

func (r RecordType) String() string {
	switch r {
	case RecordsAuto:
		return "auto"
	case Records:
		return "records"
	case Values:
		return "values"
	}
	return fmt.Sprintf("RecordType(%d)", uint8(r))
}

func ParseRecordType(s string) (RecordType, error) {
	switch strings.ToLower(s) {
	case "", "auto", "auto_detect":
		return RecordsAuto, nil
	case "true", "records":
		return Records, nil
	case "false", "values":
		return Values, nil
	}
	return RecordsAuto, fmt.Errorf("unknown records setting %q", s)
}

// Options configures one BufferedReader.
type Options struct {
	Format      Format
	RecordType  RecordType
	Compression bytesource.Compression
	// AllowComments accepts comments and trailing commas in documents.
	AllowComments bool
}

// unit names the counting unit used in error messages.
func (o Options) unit() string {
	if o.Format == FormatNewlineDelimited {
		return "line"
	}
	return "record/value"
}
