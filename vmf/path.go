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
	"fmt"
	"strconv"
	"strings"
)

type segmentKind uint8

const (
	segKey segmentKind = iota
	segIndex
	segFromEnd
	segAnyKey
	segAnyIndex
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// Path is a compiled lookup path. Three spellings are accepted:
//
//	$.a."b c"[0][#-1][*].*   dollar paths
//	/a/b~1c/0                JSON pointers
//	a                        a bare top-level key
type Path struct {
	segs     []segment
	wildcard bool
}

// ParsePath compiles a path expression.
func ParsePath(s string) (*Path, error) {
	switch {
	case s == "":
		return nil, fmt.Errorf("empty path")
	case s[0] == '$':
		return parseDollarPath(s)
	case s[0] == '/':
		return parsePointer(s), nil
	}
	return &Path{segs: []segment{{kind: segKey, key: s}}}, nil
}

func parsePointer(s string) *Path {
	p := &Path{}
	if s == "/" {
		return &Path{segs: []segment{{kind: segKey, key: ""}}}
	}
	for _, part := range strings.Split(s[1:], "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		p.segs = append(p.segs, segment{kind: segKey, key: part, index: -1})
	}
	return p
}

func parseDollarPath(s string) (*Path, error) {
	p := &Path{}
	i := 1
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			if i >= len(s) {
				return nil, fmt.Errorf("path %q: missing key after '.'", s)
			}
			switch s[i] {
			case '*':
				p.segs = append(p.segs, segment{kind: segAnyKey})
				p.wildcard = true
				i++
			case '"':
				key, n, err := quotedKey(s[i:])
				if err != nil {
					return nil, fmt.Errorf("path %q: %w", s, err)
				}
				p.segs = append(p.segs, segment{kind: segKey, key: key})
				i += n
			default:
				end := i
				for end < len(s) && s[end] != '.' && s[end] != '[' {
					end++
				}
				p.segs = append(p.segs, segment{kind: segKey, key: s[i:end]})
				i = end
			}
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated '['", s)
			}
			seg, err := indexSegment(s[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", s, err)
			}
			if seg.kind == segAnyIndex {
				p.wildcard = true
			}
			p.segs = append(p.segs, seg)
			i += end + 1
		default:
			return nil, fmt.Errorf("path %q: unexpected character %q at %d", s, s[i], i)
		}
	}
	return p, nil
}

func quotedKey(s string) (string, int, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			}
		case '"':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("unterminated quoted key")
}

func indexSegment(body string) (segment, error) {
	body = strings.TrimSpace(body)
	switch {
	case body == "*":
		return segment{kind: segAnyIndex}, nil
	case strings.HasPrefix(body, "#"):
		rest := strings.TrimSpace(body[1:])
		if rest == "" {
			return segment{kind: segFromEnd, index: 0}, nil
		}
		if rest[0] != '-' {
			return segment{}, fmt.Errorf("invalid array offset %q", body)
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest[1:]))
		if err != nil || n < 0 {
			return segment{}, fmt.Errorf("invalid array offset %q", body)
		}
		return segment{kind: segFromEnd, index: n}, nil
	}
	n, err := strconv.Atoi(body)
	if err != nil {
		return segment{}, fmt.Errorf("invalid array index %q", body)
	}
	if n < 0 {
		return segment{kind: segFromEnd, index: -n}, nil
	}
	return segment{kind: segIndex, index: n}, nil
}

// Wildcard reports whether the path may match more than one value.
func (p *Path) Wildcard() bool { return p.wildcard }

// Lookup returns every value the path reaches, in document order.
func (p *Path) Lookup(v *Value) []*Value {
	cur := []*Value{v}
	for _, seg := range p.segs {
		var next []*Value
		for _, c := range cur {
			next = seg.apply(c, next)
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	return cur
}

func (s segment) apply(v *Value, out []*Value) []*Value {
	switch s.kind {
	case segKey:
		if v.Kind() == KindArray && s.index == -1 {
			// pointer segments address array elements by number
			if n, err := strconv.Atoi(s.key); err == nil && n >= 0 && n < len(v.arr) {
				return append(out, v.arr[n])
			}
			return out
		}
		if child, ok := v.Get(s.key); ok {
			out = append(out, child)
		}
	case segIndex:
		if v.Kind() == KindArray && s.index < len(v.arr) {
			out = append(out, v.arr[s.index])
		}
	case segFromEnd:
		if v.Kind() == KindArray {
			i := len(v.arr) - s.index
			if s.index > 0 && i >= 0 {
				out = append(out, v.arr[i])
			}
		}
	case segAnyKey:
		for _, m := range v.Members() {
			out = append(out, m.Value)
		}
	case segAnyIndex:
		out = append(out, v.Elems()...)
	}
	return out
}

// Extract looks up path in v. Non-wildcard paths return the matched value
// or nil. Wildcard paths return an array of all matches.
func (v *Value) Extract(path string) (*Value, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	found := p.Lookup(v)
	if p.Wildcard() {
		return NewArray(found...), nil
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}
