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

package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/uuid"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/dateformat"
	"github.com/cardinalhq/vmfscan/vmf"
)

// converter appends v, never null, to b as type t. It returns a non-empty
// message when policy turns a failed conversion into an error.
type converter func(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string

var converters [coltype.Map + 1]converter

func init() {
	converters = [...]converter{
		coltype.Null:      toNull,
		coltype.Boolean:   toBoolean,
		coltype.BigInt:    toBigInt,
		coltype.UBigInt:   toUBigInt,
		coltype.Double:    toDouble,
		coltype.Varchar:   toVarchar,
		coltype.VMF:       toVMF,
		coltype.Date:      toDate,
		coltype.Time:      toTime,
		coltype.Timestamp: toTimestamp,
		coltype.UUID:      toUUID,
		coltype.List:      toList,
		coltype.Struct:    toStruct,
		coltype.Map:       toMap,
	}
}

func (tr *transformer) convert(b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.IsNull() {
		b.AppendNull()
		return ""
	}
	if int(t.ID) >= len(converters) || converters[t.ID] == nil {
		panic("INTERNAL Error: no conversion to " + t.ID.String())
	}
	return converters[t.ID](tr, b, t, v)
}

// fail appends a null cell and returns msg if casts are strict.
func (tr *transformer) fail(b array.Builder, msg string) string {
	b.AppendNull()
	if tr.opts.StrictCast {
		return msg
	}
	return ""
}

func numericFailure(v *vmf.Value) string {
	return "Failed to cast value to numerical: " + docString(v)
}

func castFailure(v *vmf.Value, t coltype.Type) string {
	return fmt.Sprintf("Unable to cast '%s' to %s", docString(v), t)
}

func toNull(_ *transformer, b array.Builder, _ coltype.Type, _ *vmf.Value) string {
	b.AppendNull()
	return ""
}

func toBoolean(tr *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	bb := b.(*array.BooleanBuilder)
	switch v.Kind() {
	case vmf.KindBool:
		bb.Append(v.Bool())
		return ""
	case vmf.KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str())) {
		case "true", "t", "1":
			bb.Append(true)
			return ""
		case "false", "f", "0":
			bb.Append(false)
			return ""
		}
	case vmf.KindInt, vmf.KindUint, vmf.KindFloat:
		f, _ := v.Float()
		bb.Append(f != 0)
		return ""
	}
	return tr.fail(b, numericFailure(v))
}

func toBigInt(tr *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	i, ok := int64Of(v)
	if !ok {
		return tr.fail(b, numericFailure(v))
	}
	b.(*array.Int64Builder).Append(i)
	return ""
}

func toUBigInt(tr *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	u, ok := uint64Of(v)
	if !ok {
		return tr.fail(b, numericFailure(v))
	}
	b.(*array.Uint64Builder).Append(u)
	return ""
}

func toDouble(tr *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	f, ok := float64Of(v)
	if !ok {
		return tr.fail(b, numericFailure(v))
	}
	b.(*array.Float64Builder).Append(f)
	return ""
}

// int64Of casts v, rounding floats half to even.
func int64Of(v *vmf.Value) (int64, bool) {
	switch v.Kind() {
	case vmf.KindBool, vmf.KindInt, vmf.KindUint:
		return v.Int()
	case vmf.KindFloat:
		f, _ := v.Float()
		return roundInt64(f)
	case vmf.KindString:
		s := strings.TrimSpace(v.Str())
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundInt64(f)
		}
	}
	return 0, false
}

func roundInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(math.RoundToEven(f)), true
}

func uint64Of(v *vmf.Value) (uint64, bool) {
	switch v.Kind() {
	case vmf.KindBool, vmf.KindUint:
		return v.Uint()
	case vmf.KindFloat:
		f, _ := v.Float()
		return roundUint64(f)
	case vmf.KindString:
		s := strings.TrimSpace(v.Str())
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return u, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundUint64(f)
		}
	}
	return 0, false
}

func roundUint64(f float64) (uint64, bool) {
	if math.IsNaN(f) || f < 0 || f >= math.MaxUint64 {
		return 0, false
	}
	return uint64(math.RoundToEven(f)), true
}

func float64Of(v *vmf.Value) (float64, bool) {
	switch v.Kind() {
	case vmf.KindBool, vmf.KindInt, vmf.KindUint, vmf.KindFloat:
		return v.Float()
	case vmf.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64)
		return f, err == nil
	}
	return 0, false
}

// toVarchar keeps strings as is and serializes everything else.
func toVarchar(_ *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	sb := b.(*array.StringBuilder)
	if v.Kind() == vmf.KindString {
		sb.Append(v.Str())
	} else {
		sb.Append(v.String())
	}
	return ""
}

func toVMF(_ *transformer, b array.Builder, _ coltype.Type, v *vmf.Value) string {
	b.(*array.StringBuilder).Append(v.String())
	return ""
}

func (tr *transformer) parseTime(f *dateformat.Format, s string, fallback func(string) (time.Time, error)) (time.Time, error) {
	if f != nil {
		if t, err := f.Parse(s); err == nil {
			return t, nil
		}
	}
	return fallback(s)
}

func toDate(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindString {
		return tr.fail(b, castFailure(v, t))
	}
	d, err := tr.parseTime(tr.date, v.Str(), dateformat.ParseDate)
	if err != nil {
		return tr.fail(b, castFailure(v, t))
	}
	b.(*array.Date32Builder).Append(arrow.Date32(dateformat.EpochDays(d)))
	return ""
}

func toTimestamp(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindString {
		return tr.fail(b, castFailure(v, t))
	}
	ts, err := tr.parseTime(tr.timestamp, v.Str(), dateformat.ParseTimestamp)
	if err != nil {
		return tr.fail(b, castFailure(v, t))
	}
	b.(*array.TimestampBuilder).Append(arrow.Timestamp(dateformat.EpochMicros(ts)))
	return ""
}

func toTime(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindString {
		return tr.fail(b, castFailure(v, t))
	}
	d, err := dateformat.ParseTimeOfDay(v.Str())
	if err != nil {
		return tr.fail(b, castFailure(v, t))
	}
	b.(*array.Time64Builder).Append(arrow.Time64(d.Microseconds()))
	return ""
}

func toUUID(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindString {
		return tr.fail(b, castFailure(v, t))
	}
	u, err := uuid.Parse(strings.TrimSpace(v.Str()))
	if err != nil {
		return tr.fail(b, castFailure(v, t))
	}
	b.(*array.FixedSizeBinaryBuilder).Append(u[:])
	return ""
}

func toList(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindArray {
		return tr.fail(b, "Expected ARRAY, but got "+docString(v))
	}
	lb := b.(*array.ListBuilder)
	lb.Append(true)
	vb := lb.ValueBuilder()
	elem := t.Child()
	var msg string
	for _, e := range v.Elems() {
		if m := tr.convert(vb, elem, e); m != "" && msg == "" {
			msg = m
		}
	}
	return msg
}

func toStruct(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindObject {
		return tr.fail(b, "Expected OBJECT, but got "+docString(v))
	}
	sb := b.(*array.StructBuilder)
	sb.Append(true)
	builders := make([]array.Builder, len(t.Fields))
	for i := range builders {
		builders[i] = sb.FieldBuilder(i)
	}
	return tr.object(v, t.Fields, builders)
}

// toMap keeps the first of repeated keys.
func toMap(tr *transformer, b array.Builder, t coltype.Type, v *vmf.Value) string {
	if v.Kind() != vmf.KindObject {
		return tr.fail(b, "Expected OBJECT, but got "+docString(v))
	}
	mb := b.(*array.MapBuilder)
	mb.Append(true)
	kb := mb.KeyBuilder().(*array.StringBuilder)
	ib := mb.ItemBuilder()
	value := t.Child()
	seen := make(map[string]struct{}, v.Len())
	var msg string
	for _, m := range v.Members() {
		if _, dup := seen[m.Key]; dup {
			if tr.opts.ErrorOnDuplicateKey && msg == "" {
				msg = fmt.Sprintf("Duplicate key %q in object %s", m.Key, docString(v))
			}
			continue
		}
		seen[m.Key] = struct{}{}
		kb.Append(m.Key)
		if cm := tr.convert(ib, value, m.Value); cm != "" && msg == "" {
			msg = cm
		}
	}
	return msg
}
