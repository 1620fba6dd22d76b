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

package idgen

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlakeGeneratorIncreases(t *testing.T) {
	g, err := NewFlakeGenerator()
	require.NoError(t, err)
	a := g.NextID()
	b := g.NextID()
	assert.Greater(t, b, a)
}

func TestInstanceIDIsStable(t *testing.T) {
	id := InstanceID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, InstanceID())
}

func TestShortID(t *testing.T) {
	a := ShortID()
	assert.Len(t, a, 8)
	assert.NotContains(t, a, "=")
	assert.NotEqual(t, a, ShortID())
}

func TestULIDGeneratorSortsWithinMillisecond(t *testing.T) {
	g := NewULIDGenerator()
	now := time.Now()
	a := g.Make(now)
	b := g.Make(now)
	assert.Less(t, a, b)

	parsed, err := ulid.Parse(NextScanID())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ulid.Time(parsed.Time()), time.Minute)
}
