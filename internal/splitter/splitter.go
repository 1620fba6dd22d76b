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

// Package splitter finds record boundaries in raw read buffers.
package splitter

import (
	"bytes"

	"github.com/cardinalhq/vmfscan/vmf"
)

// IsSpace matches the whitespace allowed between documents. It is the
// same set the parser accepts around a document.
func IsSpace(c byte) bool {
	return vmf.IsSpace(c)
}

// TrimLeft drops leading whitespace.
func TrimLeft(buf []byte) []byte {
	i := 0
	for i < len(buf) && IsSpace(buf[i]) {
		i++
	}
	return buf[i:]
}

// TrimRight drops trailing whitespace, including the '\r' of CRLF lines.
func TrimRight(buf []byte) []byte {
	i := len(buf)
	for i > 0 && IsSpace(buf[i-1]) {
		i--
	}
	return buf[:i]
}

// SkipWhitespace returns the first offset at or after off that is not
// whitespace. With comments set, // and /* */ comments are skipped too.
func SkipWhitespace(buf []byte, off int, comments bool) int {
	for off < len(buf) {
		c := buf[off]
		switch {
		case IsSpace(c):
			off++
		case comments && c == '/' && off+1 < len(buf) && buf[off+1] == '/':
			nl := bytes.IndexByte(buf[off:], '\n')
			if nl < 0 {
				return len(buf)
			}
			off += nl + 1
		case comments && c == '/' && off+1 < len(buf) && buf[off+1] == '*':
			end := bytes.Index(buf[off+2:], []byte("*/"))
			if end < 0 {
				return len(buf)
			}
			off += end + 4
		default:
			return off
		}
	}
	return off
}

// NextNewline returns the index of the first '\n' in buf, or -1.
func NextNewline(buf []byte) int {
	return bytes.IndexByte(buf, '\n')
}

// PreviousNewline returns the index of the last '\n' in buf[:end], or -1.
func PreviousNewline(buf []byte, end int) int {
	return bytes.LastIndexByte(buf[:end], '\n')
}

// NextValue returns the end offset of the document starting at buf[0],
// which must not be whitespace. Containers and strings are matched with
// depth and escape tracking, so separators inside nested values are not
// taken as boundaries. Scalars end at whitespace or a separator. The
// result is -1 when the document reaches the end of buf, because the
// bytes that complete it may still be in the next buffer.
func NextValue(buf []byte, comments bool) int {
	if len(buf) == 0 {
		return -1
	}
	var end int
	switch buf[0] {
	case '{', '[', '"':
		end = nextContainer(buf, comments)
	default:
		end = nextScalar(buf, comments)
	}
	if end >= len(buf) {
		return -1
	}
	return end
}

func nextContainer(buf []byte, comments bool) int {
	depth := 0
	i := 0
	for i < len(buf) {
		c := buf[i]
		i++
		switch c {
		case '{', '[':
			depth++
			continue
		case '}', ']':
			depth--
		case '"':
			i = skipString(buf, i)
		case '/':
			if comments && i < len(buf) && (buf[i] == '/' || buf[i] == '*') {
				i = SkipWhitespace(buf, i-1, true)
			}
			continue
		default:
			continue
		}
		if depth <= 0 {
			break
		}
	}
	return i
}

// skipString returns the offset just past the closing quote of a string
// whose body starts at i.
func skipString(buf []byte, i int) int {
	for i < len(buf) {
		c := buf[i]
		i++
		switch c {
		case '"':
			return i
		case '\\':
			if i < len(buf) {
				i++
			}
		}
	}
	return i
}

func nextScalar(buf []byte, comments bool) int {
	for i, c := range buf {
		switch {
		case IsSpace(c), c == ',', c == ']', c == '}':
			return i
		case comments && c == '/':
			return i
		}
	}
	return len(buf)
}
