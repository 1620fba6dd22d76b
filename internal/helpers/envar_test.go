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
package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{" YES ", true, true},
		{"Enabled", true, true},
		{"1", true, true},
		{"off", false, true},
		{"DISABLE", false, true},
		{"0", false, true},
		{"", false, false},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseBool(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("VMFSCAN_TEST_FLAG", "maybe")
	assert.True(t, GetBoolEnv("VMFSCAN_TEST_FLAG", true), "unrecognized keeps the default")
	assert.False(t, GetBoolEnv("VMFSCAN_TEST_FLAG", false))

	t.Setenv("VMFSCAN_TEST_FLAG", "on")
	assert.True(t, GetBoolEnv("VMFSCAN_TEST_FLAG", false))
}

func TestOTLPEnabled(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("ENABLE_OTLP_TELEMETRY", "true")
	assert.False(t, OTLPEnabled())

	t.Setenv("OTEL_SERVICE_NAME", "vmfscan")
	assert.True(t, OTLPEnabled())

	t.Setenv("VMFSCAN_DEBUG", "1")
	assert.True(t, DebugEnabled())
}

func TestTempDirLimit(t *testing.T) {
	dir := t.TempDir()
	usage, err := DiskUsage(dir)
	assert.NoError(t, err)
	assert.Positive(t, usage.TotalBytes)
	assert.LessOrEqual(t, usage.FreeBytes, usage.TotalBytes)

	assert.Equal(t, "", TempDirLimit(dir, 0))
	assert.Equal(t, "", TempDirLimit("/does/not/exist", 0.9))
}
