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

package dateformat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/vmfscan/internal/coltype"
)

func TestCompileFraction(t *testing.T) {
	f, err := Compile("%Y-%m-%d %H:%M:%S.%f")
	require.NoError(t, err)

	ts, err := f.Parse("2023-04-05 06:07:08.123456")
	require.NoError(t, err)
	assert.Equal(t, 123456000, ts.Nanosecond())

	_, err = f.Parse("2023-04-05")
	assert.Error(t, err)
}

func TestEliminatePrunesFromBack(t *testing.T) {
	m, err := DefaultMap("", "")
	require.NoError(t, err)
	before := len(m.Formats(coltype.Date))

	// only "%Y-%m-%d" (index 4) parses this; "%y-%m-%d" behind it is dropped
	require.True(t, m.Eliminate(coltype.Date, []string{"2021-12-31"}))
	after := m.Formats(coltype.Date)
	assert.Len(t, after, before-1)
	pref, ok := m.Preferred(coltype.Date)
	require.True(t, ok)
	assert.Equal(t, "%Y-%m-%d", pref.Spec)

	assert.False(t, m.Eliminate(coltype.Date, []string{"not-a-date"}))
	assert.Len(t, m.Formats(coltype.Date), before-1)
}

func TestForcedFormatTriedFirst(t *testing.T) {
	m, err := DefaultMap("%d/%m/%Y", "")
	require.NoError(t, err)
	pref, ok := m.Preferred(coltype.Date)
	require.True(t, ok)
	assert.Equal(t, "%d/%m/%Y", pref.Spec)

	require.True(t, m.Eliminate(coltype.Date, []string{"31/12/2021"}))
	assert.Len(t, m.Formats(coltype.Date), len(defaultDateFormats)+1)
}

func TestClone(t *testing.T) {
	m, err := DefaultMap("", "")
	require.NoError(t, err)
	c := m.Clone()
	require.True(t, c.Eliminate(coltype.Timestamp, []string{"2021-01-01T10:00:00Z"}))
	assert.Len(t, m.Formats(coltype.Timestamp), len(defaultTimestampFormats))
	assert.Len(t, c.Formats(coltype.Timestamp), len(defaultTimestampFormats))
	assert.False(t, NewMap().Has(coltype.Date))
}

func TestDefaultCasts(t *testing.T) {
	d, err := ParseDate("1970-01-02")
	require.NoError(t, err)
	assert.Equal(t, int32(1), EpochDays(d))

	ts, err := ParseTimestamp("1970-01-01T00:00:01.5+00:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), EpochMicros(ts))

	tod, err := ParseTimeOfDay("01:02:03.25")
	require.NoError(t, err)
	assert.Equal(t, time.Hour+2*time.Minute+3250*time.Millisecond, tod)

	_, err = ParseTimeOfDay("25:00:00")
	assert.Error(t, err)
}
