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

package vmfreader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cardinalhq/vmfscan/vmf"
)

var (
	// ErrMalformed matches every *ParseError.
	ErrMalformed = errors.New("malformed VMF")
	// ErrObjectSize matches every *ObjectSizeError.
	ErrObjectSize = errors.New("maximum object size exceeded")
	// ErrTransform matches every *TransformError.
	ErrTransform = errors.New("VMF transform error")
)

// ParseError locates a syntax error within a file.
type ParseError struct {
	File string
	// Offset is the 1-based byte position within the record.
	Offset int64
	Unit   string
	// Line is 1-based. Zero means the line could not be determined.
	Line  int64
	Msg   string
	Extra string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("Malformed VMF in file \"%s\", at byte %d in %s %s: %s. %s",
		e.File, e.Offset, e.Unit, lineString(e.Line), e.Msg, e.Extra)
	return strings.TrimRight(msg, " ")
}

func (e *ParseError) Is(target error) bool { return target == ErrMalformed }

// TransformError locates a value that could not be converted to its column.
type TransformError struct {
	File string
	Unit string
	Line int64
	Msg  string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("VMF transform error in file \"%s\", in %s %s: %s", e.File, e.Unit, lineString(e.Line), e.Msg)
}

func (e *TransformError) Is(target error) bool { return target == ErrTransform }

// ObjectSizeError reports a record larger than maximum_object_size.
type ObjectSizeError struct {
	File  string
	Limit int64
	// Size is the number of bytes scanned without finding the end of the record.
	Size int64
	// Offset is the file position where the record starts.
	Offset int64
	Unit   string
	Line   int64
}

func (e *ObjectSizeError) Error() string {
	return fmt.Sprintf("\"maximum_object_size\" of %d bytes exceeded while reading file \"%s\" at byte %d in %s %s (>%d bytes).\n Try increasing \"maximum_object_size\".",
		e.Limit, e.File, e.Offset, e.Unit, lineString(e.Line), e.Size)
}

func (e *ObjectSizeError) Is(target error) bool { return target == ErrObjectSize }

func lineString(line int64) string {
	if line <= 0 {
		return "?"
	}
	return strconv.FormatInt(line, 10)
}

// syntaxDetails pulls the position and message out of a parser error.
func syntaxDetails(err error) (offset int64, msg string) {
	var se *vmf.SyntaxError
	if errors.As(err, &se) {
		return se.Offset + 1, se.Msg
	}
	return 0, err.Error()
}
