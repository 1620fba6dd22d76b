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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	doc, err := ParseString(`{"a":{"b c":[10,20,30]},"x/y":1,"list":[{"k":1},{"k":2}]}`)
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{`$`, doc.String()},
		{`$.a."b c"[1]`, `20`},
		{`$.a."b c"[#-1]`, `30`},
		{`$.a."b c"[-3]`, `10`},
		{`$.list[*].k`, `[1,2]`},
		{`$.*`, `[{"b c":[10,20,30]},1,[{"k":1},{"k":2}]]`},
		{`/a/b c/2`, `30`},
		{`/x~1y`, `1`},
		{`list`, `[{"k":1},{"k":2}]`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := doc.Extract(tt.path)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestExtractMissing(t *testing.T) {
	doc, err := ParseString(`{"a":[1]}`)
	require.NoError(t, err)

	got, err := doc.Extract(`$.a[5]`)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = doc.Extract(`$.nope`)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParsePathErrors(t *testing.T) {
	for _, p := range []string{``, `$.`, `$[1`, `$[x]`, `$x`, `$."open`} {
		_, err := ParsePath(p)
		assert.Error(t, err, p)
	}
}

func TestKeysAndLength(t *testing.T) {
	doc, err := ParseString(`{"b":1,"a":[1,2,3]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, doc.Keys())
	assert.Equal(t, 0, doc.ArrayLength())

	arr, err := doc.Extract("$.a")
	require.NoError(t, err)
	assert.Equal(t, 3, arr.ArrayLength())
	assert.Equal(t, "ARRAY", arr.TypeName())
	assert.Nil(t, arr.Keys())
}
