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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKinds(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
	}{
		{`null`, KindNull},
		{`true`, KindBool},
		{`-3`, KindInt},
		{`3`, KindUint},
		{`18446744073709551615`, KindUint},
		{`18446744073709551616`, KindFloat},
		{`1.5`, KindFloat},
		{`1e3`, KindFloat},
		{`"x"`, KindString},
		{`[1,2]`, KindArray},
		{`{"a":1}`, KindObject},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestParseKeepsDuplicateKeys(t *testing.T) {
	v, err := ParseString(`{"a":1,"b":2,"a":3}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "a"}, v.Keys())

	first, ok := v.Get("a")
	require.True(t, ok)
	n, ok := first.Int()
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		code      ErrorCode
		truncated bool
	}{
		{"empty", "   ", ErrEmptyContent, false},
		{"unterminated object", `{"a":1`, ErrUnexpectedEnd, true},
		{"trailing content", `{"a":1} {"b":2}`, ErrUnexpectedContent, true},
		{"bad character", `{"a":x}`, ErrInvalid, false},
		{"vertical tab and form feed only", "\v\f \r\n", ErrEmptyContent, false},
		{"invalid utf-8", "{\"a\":\"\xff\xfe\"}", ErrInvalid, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.in)
			require.Error(t, err)
			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.truncated, se.Truncated())
		})
	}
}

func TestParseTrailingContentOffset(t *testing.T) {
	_, err := ParseString(`[1]  x`)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(5), se.Offset)
}

func TestParseInvalidUTF8Offset(t *testing.T) {
	_, err := ParseString("{\"a\":\"ok\",\"b\":\"\xc3\x28\"}")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrInvalid, se.Code)
	assert.Equal(t, int64(15), se.Offset)
	assert.Contains(t, se.Msg, "UTF-8")

	v, err := ParseString(`{"a":"h\u00e9llo ✓"}`)
	require.NoError(t, err)
	a, ok := v.Get("a")
	require.True(t, ok)
	assert.Equal(t, "h\u00e9llo ✓", a.Str())
}

func TestParseSurroundingWhitespace(t *testing.T) {
	v, err := ParseString("\v\f {\"a\":1}\r\f\v")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v.String())

	_, err = ParseString(`{"a":x}`)
	var plain *SyntaxError
	require.ErrorAs(t, err, &plain)
	_, err = ParseString("\f\v{\"a\":x}")
	var padded *SyntaxError
	require.ErrorAs(t, err, &padded)
	assert.Equal(t, plain.Offset+2, padded.Offset)
}

func TestParseWithComments(t *testing.T) {
	in := `{
		// leading comment
		"a": 1, /* inline */
		"b": [1, 2,],
	}`
	_, err := ParseString(in)
	require.Error(t, err)

	v, err := ParseWith([]byte(in), ParseOptions{AllowComments: true})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":[1,2]}`, v.String())
}

func TestSerialize(t *testing.T) {
	v, err := ParseString(` { "s" : "a<b>\"" , "f": 2.0, "n": -1, "e": [], "o": {} } `)
	require.NoError(t, err)
	assert.Equal(t, `{"s":"a<b>\"","f":2.0,"n":-1,"e":[],"o":{}}`, v.String())

	pretty := "{\n    \"a\": [\n        1,\n        2\n    ]\n}"
	v, err = ParseString(`{"a":[1,2]}`)
	require.NoError(t, err)
	assert.Equal(t, pretty, v.Pretty())
}

func TestInterface(t *testing.T) {
	v, err := ParseString(`{"a":[1,-2,1.5,"x",null,true],"a":0}`)
	require.NoError(t, err)
	want := map[string]any{
		"a": []any{uint64(1), int64(-2), 1.5, "x", nil, true},
	}
	if diff := cmp.Diff(want, v.Interface()); diff != "" {
		t.Errorf("Interface() mismatch (-want +got):\n%s", diff)
	}
}

func TestNumericAccessors(t *testing.T) {
	v := NewFloat(3)
	n, ok := v.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	_, ok = NewFloat(3.5).Int()
	assert.False(t, ok)

	_, ok = NewUint(1 << 63).Int()
	assert.False(t, ok)

	_, ok = NewInt(-1).Uint()
	assert.False(t, ok)

	_, ok = NewString("1").Float()
	assert.False(t, ok)
}
