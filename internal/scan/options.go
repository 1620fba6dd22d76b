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

package scan

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/cardinalhq/vmfscan/internal/bytesource"
	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/structure"
	"github.com/cardinalhq/vmfscan/internal/vmfreader"
)

// Kind selects what a scan produces.
type Kind uint8

const (
	// KindRead converts documents into typed columns.
	KindRead Kind = iota
	// KindObjects returns each document as text in a single VMF column.
	KindObjects
	// KindSample reads only enough documents to infer a schema.
	KindSample
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindObjects:
		return "objects"
	case KindSample:
		return "sample"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

const (
	DefaultVectorSize         = 2048
	DefaultSampleSize         = 10 * DefaultVectorSize
	DefaultMaximumObjectSize  = 16 * 1024 * 1024
	DefaultMaximumSampleFiles = 32

	// ValuesColumn names the single column of a values scan.
	ValuesColumn = "vmf"
)

// Options configures Bind. Start from DefaultOptions.
type Options struct {
	Kind          Kind
	Format        vmfreader.Format
	RecordType    vmfreader.RecordType
	Compression   bytesource.Compression
	AllowComments bool

	// Columns fixes the output columns. Setting them turns AutoDetect off.
	Columns    []coltype.Field
	AutoDetect bool

	// IgnoreErrors turns malformed documents into null rows and casts
	// that fail into null cells.
	IgnoreErrors bool
	// SkipInvalidRows drops rows that fail conversion instead of failing
	// the scan.
	SkipInvalidRows bool

	MaximumObjectSize int
	// SampleSize is the number of documents sampled for detection.
	// Negative samples everything.
	SampleSize int
	// MaximumSampleFiles bounds how many files are sampled. Negative
	// samples every file.
	MaximumSampleFiles       int
	MaxDepth                 int
	FieldAppearanceThreshold float64
	MapInferenceThreshold    int
	ConvertStringsToIntegers bool
	// UnionByName samples SampleSize documents from every file instead of
	// SampleSize in total.
	UnionByName bool

	DateFormat      string
	TimestampFormat string

	// FilenameColumn, when not empty, adds a VARCHAR column of that name
	// holding the source of each row.
	FilenameColumn string

	Threads    int
	VectorSize int

	S3        bytesource.S3API
	Allocator memory.Allocator
}

// DefaultOptions returns an auto-detecting read scan.
func DefaultOptions() Options {
	return Options{
		Kind:                     KindRead,
		AutoDetect:               true,
		MaximumObjectSize:        DefaultMaximumObjectSize,
		SampleSize:               DefaultSampleSize,
		MaximumSampleFiles:       DefaultMaximumSampleFiles,
		MaxDepth:                 -1,
		FieldAppearanceThreshold: structure.DefaultFieldAppearanceThreshold,
		MapInferenceThreshold:    structure.DefaultMapInferenceThreshold,
		Threads:                  runtime.GOMAXPROCS(0),
		VectorSize:               DefaultVectorSize,
	}
}

func (o Options) validate() error {
	switch {
	case o.MaximumObjectSize <= 0:
		return errors.New(`"maximum_object_size" must be positive`)
	case o.SampleSize == 0:
		return errors.New(`"sample_size" must be positive, or -1 to sample all input`)
	case o.MaximumSampleFiles == 0:
		return errors.New(`"maximum_sample_files" must be positive, or -1 to sample all files`)
	case o.FieldAppearanceThreshold < 0 || o.FieldAppearanceThreshold > 1:
		return errors.New(`"field_appearance_threshold" must be between 0 and 1`)
	case o.VectorSize <= 0:
		return errors.New("vector size must be positive")
	case o.Kind != KindObjects && !o.AutoDetect && len(o.Columns) == 0:
		return errors.New(`read_vmf requires columns to be specified through the "columns" parameter.` +
			"\n Use read_vmf_auto or set auto_detect=true")
	}
	if o.FilenameColumn != "" {
		for _, c := range o.Columns {
			if c.Name == o.FilenameColumn {
				return fmt.Errorf("filename column %q collides with a column of the same name", c.Name)
			}
		}
	}
	return nil
}

func (o Options) sampleSize() int {
	if o.SampleSize < 0 {
		return math.MaxInt
	}
	return o.SampleSize
}

func (o Options) threads() int {
	if o.Threads <= 0 {
		return 1
	}
	return o.Threads
}

// bufferCapacity fits two maximal documents, so a document that does not
// fit in one read buffer after its carried prefix is always oversized.
func (o Options) bufferCapacity() int {
	return 2 * o.MaximumObjectSize
}

func (o Options) allocator() memory.Allocator {
	if o.Allocator == nil {
		return memory.DefaultAllocator
	}
	return o.Allocator
}

func (o Options) readerOptions() vmfreader.Options {
	return vmfreader.Options{
		Format:        o.Format,
		RecordType:    o.RecordType,
		Compression:   o.Compression,
		AllowComments: o.AllowComments,
	}
}
