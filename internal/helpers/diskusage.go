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
	"fmt"

	"golang.org/x/sys/unix"
)

// FSUsage holds the byte usage of a filesystem.
type FSUsage struct {
	TotalBytes uint64
	FreeBytes  uint64 // available to non-root users
}

// DiskUsage returns the usage of the filesystem that contains path.
func DiskUsage(path string) (FSUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return FSUsage{}, err
	}
	return FSUsage{
		TotalBytes: st.Blocks * uint64(st.Bsize),
		FreeBytes:  st.Bavail * uint64(st.Bsize),
	}, nil
}

// TempDirLimit is ratio of the volume holding dir, formatted in whole GB
// for DuckDB's max_temp_directory_size. It is empty when the volume size
// is unknown or the limit rounds to zero.
func TempDirLimit(dir string, ratio float64) string {
	usage, err := DiskUsage(dir)
	if err != nil || ratio <= 0 {
		return ""
	}
	gb := uint64(float64(usage.TotalBytes) * ratio / (1024 * 1024 * 1024))
	if gb == 0 {
		return ""
	}
	return fmt.Sprintf("%dGB", gb)
}
