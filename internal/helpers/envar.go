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
// Package helpers holds small process level utilities.
package helpers

import (
	"os"
	"strings"
)

// ParseBool reads the loose boolean spellings accepted in environment
// variables. ok is false for an empty or unrecognized value.
func ParseBool(s string) (v bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true, true
	case "false", "0", "no", "off", "disable", "disabled":
		return false, true
	}
	return false, false
}

// GetBoolEnv returns the boolean value of envVar, or defaultValue when it
// is unset or not a boolean.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	if v, ok := ParseBool(os.Getenv(envVar)); ok {
		return v
	}
	return defaultValue
}

// DebugEnabled reports whether DEBUG or VMFSCAN_DEBUG asks for debug logs.
func DebugEnabled() bool {
	return GetBoolEnv("VMFSCAN_DEBUG", false) || GetBoolEnv("DEBUG", false)
}

// OTLPEnabled reports whether telemetry should be exported. A service
// name is required.
func OTLPEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && GetBoolEnv("ENABLE_OTLP_TELEMETRY", false)
}
