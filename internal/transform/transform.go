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

// Package transform converts documents into typed Arrow columns.
//
// Every conversion appends exactly one cell. A value that cannot be
// converted becomes a null cell, and becomes an error only when the
// matching policy in Options asks for it.
package transform

import (
	"fmt"
	"unicode/utf8"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/dateformat"
	"github.com/cardinalhq/vmfscan/vmf"
)

// Options are the conversion policies.
type Options struct {
	// StrictCast fails on values that cannot be cast instead of nulling them.
	StrictCast bool
	// ErrorOnDuplicateKey fails on repeated keys instead of keeping the first.
	ErrorOnDuplicateKey bool
	// ErrorOnMissingKey fails when an object lacks a struct field.
	ErrorOnMissingKey bool
	// ErrorOnUnknownKey fails when an object has a key with no struct field.
	ErrorOnUnknownKey bool
	// DelayError keeps converting after the first failure and reports it
	// once every value has been appended.
	DelayError bool
	// Formats supplies the preferred DATE and TIMESTAMP formats. When nil
	// or empty, ISO formats are used.
	Formats *dateformat.Map
}

// Error is the first conversion failure of a call. Index is the 0-based
// position of the offending top-level value.
type Error struct {
	Index   int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Transform appends one cell per value to b, converting each to t. Nil
// values are appended as null.
func Transform(vals []*vmf.Value, b array.Builder, t coltype.Type, opts Options) error {
	tr := newTransformer(opts)
	var first *Error
	for i, v := range vals {
		if msg := tr.convert(b, t, v); msg != "" && first == nil {
			first = &Error{Index: i, Message: msg}
			if !opts.DelayError {
				return first
			}
		}
	}
	if first != nil {
		return first
	}
	return nil
}

// TransformObject appends one row per value across builders, one builder
// per field. Fields are looked up by exact key.
func TransformObject(vals []*vmf.Value, fields []coltype.Field, builders []array.Builder, opts Options) error {
	if len(fields) != len(builders) {
		panic(fmt.Sprintf("INTERNAL Error: %d fields but %d builders", len(fields), len(builders)))
	}
	tr := newTransformer(opts)
	var first *Error
	for i, v := range vals {
		var msg string
		switch v.Kind() {
		case vmf.KindNull:
			appendNulls(builders)
		case vmf.KindObject:
			msg = tr.object(v, fields, builders)
		default:
			appendNulls(builders)
			if opts.StrictCast {
				msg = fmt.Sprintf("Expected OBJECT, but got %s", docString(v))
			}
		}
		if msg != "" && first == nil {
			first = &Error{Index: i, Message: msg}
			if !opts.DelayError {
				return first
			}
		}
	}
	if first != nil {
		return first
	}
	return nil
}

func appendNulls(builders []array.Builder) {
	for _, b := range builders {
		b.AppendNull()
	}
}

type transformer struct {
	opts      Options
	date      *dateformat.Format
	timestamp *dateformat.Format
	indexes   map[*coltype.Field]map[string]int
}

func newTransformer(opts Options) *transformer {
	tr := &transformer{opts: opts, indexes: map[*coltype.Field]map[string]int{}}
	if opts.Formats != nil {
		if f, ok := opts.Formats.Preferred(coltype.Date); ok {
			tr.date = &f
		}
		if f, ok := opts.Formats.Preferred(coltype.Timestamp); ok {
			tr.timestamp = &f
		}
	}
	return tr
}

// fieldIndex maps key to position, cached per field list.
func (tr *transformer) fieldIndex(fields []coltype.Field) map[string]int {
	if len(fields) == 0 {
		return nil
	}
	if idx, ok := tr.indexes[&fields[0]]; ok {
		return idx
	}
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := idx[f.Name]; !dup {
			idx[f.Name] = i
		}
	}
	tr.indexes[&fields[0]] = idx
	return idx
}

// object fills one row of builders from the members of v and returns the
// first policy violation.
func (tr *transformer) object(v *vmf.Value, fields []coltype.Field, builders []array.Builder) string {
	idx := tr.fieldIndex(fields)
	found := make([]*vmf.Value, len(fields))
	var msg string
	for _, m := range v.Members() {
		i, ok := idx[m.Key]
		if !ok {
			if tr.opts.ErrorOnUnknownKey && msg == "" {
				msg = fmt.Sprintf("Object %s has unknown key %q", docString(v), m.Key)
			}
			continue
		}
		if found[i] != nil {
			if tr.opts.ErrorOnDuplicateKey && msg == "" {
				msg = fmt.Sprintf("Duplicate key %q in object %s", m.Key, docString(v))
			}
			continue
		}
		found[i] = m.Value
	}
	for i, f := range fields {
		if found[i] == nil && tr.opts.ErrorOnMissingKey && msg == "" {
			msg = fmt.Sprintf("Object %s does not have key %q", docString(v), f.Name)
		}
		if cm := tr.convert(builders[i], f.Type, found[i]); cm != "" && msg == "" {
			msg = cm
		}
	}
	return msg
}

const docStringLimit = 50

// docString renders v for error messages, truncated.
func docString(v *vmf.Value) string {
	s := v.String()
	if len(s) > docStringLimit {
		n := docStringLimit
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		return s[:n] + "..."
	}
	return s
}
