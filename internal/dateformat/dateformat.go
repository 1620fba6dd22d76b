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

// Package dateformat holds the candidate date and timestamp formats tried
// while sampling string fields, and the casts that go with them.
package dateformat

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/cardinalhq/vmfscan/internal/coltype"
)

var (
	defaultDateFormats = []string{
		"%m-%d-%Y", "%m-%d-%y", "%d-%m-%Y", "%d-%m-%y", "%Y-%m-%d", "%y-%m-%d",
	}
	defaultTimestampFormats = []string{
		"%Y-%m-%d %H:%M:%S.%f", "%m-%d-%Y %I:%M:%S %p", "%m-%d-%y %I:%M:%S %p",
		"%d-%m-%Y %H:%M:%S", "%d-%m-%y %H:%M:%S", "%Y-%m-%d %H:%M:%S",
		"%y-%m-%d %H:%M:%S", "%Y-%m-%dT%H:%M:%SZ",
	}
)

const fractionMark = "\x00"

// Format is a compiled strftime pattern.
type Format struct {
	Spec   string
	layout string
}

// Compile converts a strftime pattern into a Go time layout. ".%f" maps to
// an optional fractional second.
func Compile(spec string) (Format, error) {
	src := strings.ReplaceAll(spec, ".%f", fractionMark)
	layout, err := strftime.Layout(src)
	if err != nil {
		return Format{}, fmt.Errorf("date format %q: %w", spec, err)
	}
	layout = strings.ReplaceAll(layout, fractionMark, ".999999")
	return Format{Spec: spec, layout: layout}, nil
}

func (f Format) Parse(s string) (time.Time, error) {
	return time.Parse(f.layout, s)
}

func (f Format) String() string { return f.Spec }

// Map is the ordered candidate format list per temporal type. Formats are
// tried from the back, so later entries have priority. It is safe for
// concurrent use.
type Map struct {
	mu      sync.RWMutex
	formats map[coltype.ID][]Format
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{formats: map[coltype.ID][]Format{}}
}

// DefaultMap returns the built-in candidates. A non-empty forced format is
// appended last, which makes it the first one tried.
func DefaultMap(forcedDate, forcedTimestamp string) (*Map, error) {
	m := NewMap()
	for _, spec := range defaultDateFormats {
		if err := m.Add(coltype.Date, spec); err != nil {
			return nil, err
		}
	}
	for _, spec := range defaultTimestampFormats {
		if err := m.Add(coltype.Timestamp, spec); err != nil {
			return nil, err
		}
	}
	if forcedDate != "" {
		if err := m.Add(coltype.Date, forcedDate); err != nil {
			return nil, err
		}
	}
	if forcedTimestamp != "" {
		if err := m.Add(coltype.Timestamp, forcedTimestamp); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add appends a format for id.
func (m *Map) Add(id coltype.ID, spec string) error {
	f, err := Compile(spec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.formats[id] = append(m.formats[id], f)
	return nil
}

// Formats returns a copy of the candidate list for id.
func (m *Map) Formats(id coltype.ID) []Format {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Format(nil), m.formats[id]...)
}

func (m *Map) Has(id coltype.ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.formats[id]) > 0
}

// Preferred is the highest priority surviving format for id.
func (m *Map) Preferred(id coltype.ID) (Format, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs := m.formats[id]
	if len(fs) == 0 {
		return Format{}, false
	}
	return fs[len(fs)-1], true
}

// Eliminate tries the formats for id from the back until one parses every
// value. Formats tried before it are dropped. It reports false when no
// format parses all values, leaving the list unchanged.
func (m *Map) Eliminate(id coltype.ID, values []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	fs := m.formats[id]
	for i := len(fs) - 1; i >= 0; i-- {
		if parsesAll(fs[i], values) {
			m.formats[id] = fs[:i+1]
			return true
		}
	}
	return false
}

func parsesAll(f Format, values []string) bool {
	for _, v := range values {
		if _, err := f.Parse(v); err != nil {
			return false
		}
	}
	return true
}

// Clone copies the map so a scan can prune it without touching the source.
func (m *Map) Clone() *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := NewMap()
	for id, fs := range m.formats {
		out.formats[id] = append([]Format(nil), fs...)
	}
	return out
}
