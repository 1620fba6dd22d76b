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

package splitter

import (
	"fmt"

	"github.com/cardinalhq/vmfscan/internal/vmfreader"
	"github.com/cardinalhq/vmfscan/vmf"
)

// Detect guesses the layout and record type of a file from its first
// buffer.
//
// A first line that parses on its own means newline delimited, unless
// that line is the whole buffer and holds an array, which means a single
// top-level array. Otherwise the first non-whitespace byte decides: '{'
// is unstructured records, anything but '[' is unstructured values, and
// '[' is an array unless more documents follow it.
func Detect(buf []byte, comments bool) (vmfreader.Format, vmfreader.RecordType) {
	opts := vmf.ParseOptions{AllowComments: comments}

	if nl := NextNewline(buf); nl >= 0 {
		lineSize := SkipWhitespace(buf, nl, false)
		if doc, err := vmf.ParseWith(buf[:nl], opts); err == nil {
			switch {
			case doc.Kind() == vmf.KindArray && lineSize == len(buf):
				return vmfreader.FormatArray, arrayRecordType(doc)
			case doc.Kind() == vmf.KindObject:
				return vmfreader.FormatNewlineDelimited, vmfreader.Records
			default:
				return vmfreader.FormatNewlineDelimited, vmfreader.Values
			}
		}
	}

	off := SkipWhitespace(buf, 0, comments)
	if off == len(buf) || buf[off] == '{' {
		return vmfreader.FormatUnstructured, vmfreader.Records
	}
	if buf[off] != '[' {
		return vmfreader.FormatUnstructured, vmfreader.Values
	}

	if end := valueEnd(buf[off:], comments); end > 0 {
		if doc, err := vmf.ParseWith(buf[off:off+end], opts); err == nil {
			if SkipWhitespace(buf, off+end, comments) != len(buf) {
				return vmfreader.FormatUnstructured, vmfreader.Values
			}
			return vmfreader.FormatArray, arrayRecordType(doc)
		}
	}

	// the array is broken or larger than the buffer: peek past '['
	off = SkipWhitespace(buf, off+1, comments)
	if off == len(buf) || buf[off] == '{' {
		return vmfreader.FormatArray, vmfreader.Records
	}
	return vmfreader.FormatArray, vmfreader.Values
}

// valueEnd is NextValue that accepts a document ending exactly at the end
// of buf.
func valueEnd(buf []byte, comments bool) int {
	if end := NextValue(buf, comments); end >= 0 {
		return end
	}
	if buf[0] == '[' && nextContainer(buf, comments) == len(buf) {
		return len(buf)
	}
	return -1
}

func arrayRecordType(doc *vmf.Value) vmfreader.RecordType {
	elems := doc.Elems()
	if len(elems) == 0 || elems[0].Kind() == vmf.KindObject {
		return vmfreader.Records
	}
	return vmfreader.Values
}

// SkipArrayStart moves past the opening '[' of a top-level array. It
// returns len(buf) for an empty file or an empty array.
func SkipArrayStart(buf []byte, off int, file string, comments bool) (int, error) {
	off = SkipWhitespace(buf, off, comments)
	if off == len(buf) {
		return off, nil
	}
	if buf[off] != '[' {
		return off, fmt.Errorf("Expected top-level VMF array with format='array', but first character is '%c' in file \"%s\".\n Try setting format='auto' or format='newline_delimited'.", buf[off], file)
	}
	off = SkipWhitespace(buf, off+1, comments)
	if off >= len(buf) {
		return off, fmt.Errorf("Missing closing brace ']' in VMF array with format='array' in file \"%s\"", file)
	}
	if buf[off] == ']' {
		off = SkipWhitespace(buf, off+1, comments)
		if off != len(buf) {
			return off, fmt.Errorf("Empty array with trailing data when parsing VMF array with format='array' in file \"%s\"", file)
		}
	}
	return off, nil
}
