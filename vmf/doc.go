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

// Package vmf implements the VMF document value: a JSON-like tree with
// ordered object members that keeps duplicate keys as written.
//
// # Parsing
//
// Parse accepts exactly one document. ParseWith with AllowComments also
// accepts comments and trailing commas:
//
//	v, err := vmf.ParseWith(data, vmf.ParseOptions{AllowComments: true})
//
// Integers keep their sign class: non-negative literals are KindUint,
// negative ones KindInt. Integers that overflow 64 bits become KindFloat.
//
// # Paths
//
// Extract understands dollar paths ($.a.b[0], $.list[#-1], $.*),
// JSON pointers (/a/b/0) and bare keys.
package vmf
