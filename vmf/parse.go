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

package vmf

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tailscale/hujson"
)

// ErrorCode classifies a SyntaxError.
type ErrorCode uint8

const (
	ErrInvalid ErrorCode = iota
	ErrEmptyContent
	ErrUnexpectedEnd
	ErrUnexpectedContent
)

// SyntaxError describes malformed input. Offset is the byte position of the
// problem relative to the start of the parsed slice.
type SyntaxError struct {
	Offset int64
	Code   ErrorCode
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at byte %d", e.Msg, e.Offset)
}

// Truncated reports whether the document ended early or carried trailing
// content, which usually means the input format was guessed wrong.
func (e *SyntaxError) Truncated() bool {
	return e.Code == ErrUnexpectedEnd || e.Code == ErrUnexpectedContent
}

// ParseOptions tunes the parser.
type ParseOptions struct {
	// AllowComments accepts // and /* */ comments and trailing commas.
	AllowComments bool
}

// Parse parses exactly one document from data.
func Parse(data []byte) (*Value, error) {
	return ParseWith(data, ParseOptions{})
}

// ParseWith parses exactly one document from data. The input must be
// valid UTF-8; whitespace around the document is ignored.
func ParseWith(data []byte, opts ParseOptions) (*Value, error) {
	if off := invalidUTF8(data); off >= 0 {
		return nil, &SyntaxError{Offset: int64(off), Code: ErrInvalid, Msg: "invalid UTF-8 string"}
	}
	lead := 0
	for lead < len(data) && IsSpace(data[lead]) {
		lead++
	}
	end := len(data)
	for end > lead && IsSpace(data[end-1]) {
		end--
	}
	if lead == end {
		return nil, &SyntaxError{Code: ErrEmptyContent, Msg: "input data is empty"}
	}
	v, err := parseDocument(data[lead:end], opts)
	var se *SyntaxError
	if errors.As(err, &se) {
		se.Offset += int64(lead)
	}
	return v, err
}

func parseDocument(data []byte, opts ParseOptions) (*Value, error) {
	if opts.AllowComments {
		std, err := hujson.Standardize(bytes.Clone(data))
		if err != nil {
			if _, serr := parseStrict(data); serr != nil {
				return nil, serr
			}
			return nil, &SyntaxError{Code: ErrInvalid, Msg: err.Error()}
		}
		data = std
	}
	return parseStrict(data)
}

// invalidUTF8 returns the offset of the first byte that is not part of a
// valid UTF-8 sequence, or -1.
func invalidUTF8(data []byte) int {
	if utf8.Valid(data) {
		return -1
	}
	for off := 0; off < len(data); {
		r, size := utf8.DecodeRune(data[off:])
		if r == utf8.RuneError && size <= 1 {
			return off
		}
		off += size
	}
	return -1
}

// IsSpace matches the whitespace accepted around a document.
func IsSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// ParseString is Parse for string input.
func ParseString(s string) (*Value, error) {
	return Parse([]byte(s))
}

func isSpaceRune(r rune) bool {
	return r < utf8.RuneSelf && IsSpace(byte(r))
}

func parseStrict(data []byte) (*Value, error) {
	if len(bytes.TrimFunc(data, isSpaceRune)) == 0 {
		return nil, &SyntaxError{Code: ErrEmptyContent, Msg: "input data is empty"}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, toSyntaxError(err, dec, data)
	}

	end := dec.InputOffset()
	for end < int64(len(data)) && IsSpace(data[end]) {
		end++
	}
	if end < int64(len(data)) {
		return nil, &SyntaxError{Offset: end, Code: ErrUnexpectedContent, Msg: "unexpected content after document"}
	}
	return v, nil
}

func toSyntaxError(err error, dec *json.Decoder, data []byte) error {
	var se *json.SyntaxError
	switch {
	case errors.As(err, &se):
		off := se.Offset - 1
		if off < 0 {
			off = 0
		}
		return &SyntaxError{Offset: off, Code: ErrInvalid, Msg: strings.TrimPrefix(se.Error(), "json: ")}
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return &SyntaxError{Offset: int64(len(data)), Code: ErrUnexpectedEnd, Msg: "unexpected end of data"}
	}
	return &SyntaxError{Offset: dec.InputOffset(), Code: ErrInvalid, Msg: err.Error()}
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected character %q", rune(t))
	case nil:
		return nullValue, nil
	case bool:
		return NewBool(t), nil
	case string:
		return NewString(t), nil
	case json.Number:
		return numberValue(string(t)), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (*Value, error) {
	var members []Member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Key: key, Value: val})
	}
	if err := closing(dec, '}'); err != nil {
		return nil, err
	}
	return &Value{kind: KindObject, obj: members}, nil
}

func decodeArray(dec *json.Decoder) (*Value, error) {
	var elems []*Value
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		elems = append(elems, val)
	}
	if err := closing(dec, ']'); err != nil {
		return nil, err
	}
	return &Value{kind: KindArray, arr: elems}, nil
}

func closing(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q", rune(want))
	}
	return nil
}

// numberValue classifies a numeric literal: integers that fit become
// KindInt/KindUint, everything else KindFloat.
func numberValue(lit string) *Value {
	if !strings.ContainsAny(lit, ".eE") {
		if strings.HasPrefix(lit, "-") {
			if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
				return NewInt(i)
			}
		} else if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return NewUint(u)
		}
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		// out of range literals saturate like strtod
		if lit[0] == '-' {
			f = math.Inf(-1)
		} else {
			f = math.Inf(1)
		}
	}
	return NewFloat(f)
}
