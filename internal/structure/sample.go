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

package structure

import (
	"fmt"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/cardinalhq/vmfscan/internal/coltype"
	"github.com/cardinalhq/vmfscan/internal/dateformat"
	"github.com/cardinalhq/vmfscan/vmf"
)

// DuplicateKeyError is returned when an object repeats a key, exactly or
// differing only in case.
type DuplicateKeyError struct {
	Key string
	// Existing is set for case-insensitive collisions.
	Existing string
	Object   *vmf.Value
}

func (e *DuplicateKeyError) Error() string {
	if e.Existing != "" {
		return fmt.Sprintf("Duplicate key (different case) %q and %q in object %s", e.Key, e.Existing, e.Object)
	}
	return fmt.Sprintf("Duplicate key %q in object %s", e.Key, e.Object)
}

// Extract folds v into node. Duplicate keys are reported unless
// ignoreErrors is set.
func Extract(v *vmf.Value, node *Node, ignoreErrors bool) error {
	node.Count++
	switch v.Kind() {
	case vmf.KindNull:
		node.NullCount++
		node.description(coltype.Null)
		return nil
	case vmf.KindArray:
		child := node.description(coltype.List).elementChild()
		for _, e := range v.Elems() {
			if err := Extract(e, child, ignoreErrors); err != nil {
				return err
			}
		}
		return nil
	case vmf.KindObject:
		return extractObject(v, node, ignoreErrors)
	}
	node.description(scalarType(v.Kind()))
	return nil
}

func extractObject(v *vmf.Value, node *Node, ignoreErrors bool) error {
	desc := node.description(coltype.Struct)
	var seen, folded mapset.Set[string]
	if !ignoreErrors {
		seen = mapset.NewThreadUnsafeSet[string]()
		folded = mapset.NewThreadUnsafeSet[string]()
	}
	for _, m := range v.Members() {
		if !ignoreErrors {
			if !seen.Add(m.Key) {
				return &DuplicateKeyError{Key: m.Key, Object: v}
			}
			if !folded.Add(strings.ToLower(m.Key)) {
				return &DuplicateKeyError{Key: m.Key, Existing: foldedMatch(v, m.Key), Object: v}
			}
		}
		if err := Extract(m.Value, desc.keyedChild(m.Key), ignoreErrors); err != nil {
			return err
		}
	}
	return nil
}

func foldedMatch(v *vmf.Value, key string) string {
	for _, m := range v.Members() {
		if m.Key != key && strings.EqualFold(m.Key, key) {
			return m.Key
		}
	}
	return key
}

func scalarType(k vmf.Kind) coltype.ID {
	switch k {
	case vmf.KindBool:
		return coltype.Boolean
	case vmf.KindInt:
		return coltype.BigInt
	case vmf.KindUint:
		return coltype.UBigInt
	case vmf.KindFloat:
		return coltype.Double
	case vmf.KindString:
		return coltype.Varchar
	}
	return coltype.Null
}

// SampleOptions control how a Sampler builds its tree.
type SampleOptions struct {
	// MaxDepth stops candidate refinement below this depth. Negative means
	// unlimited.
	MaxDepth                 int
	ConvertStringsToIntegers bool
	IgnoreErrors             bool
}

// Sampler accumulates the observation tree of one input. Candidate types
// for string fields are narrowed batch by batch against Formats, which may
// be shared by several samplers.
type Sampler struct {
	opts    SampleOptions
	formats *dateformat.Map
	root    Node
	samples int64
}

func NewSampler(opts SampleOptions, formats *dateformat.Map) *Sampler {
	if formats == nil {
		formats = dateformat.NewMap()
	}
	return &Sampler{opts: opts, formats: formats}
}

// Add folds one batch of documents into the tree and narrows string
// candidates against it. Nil entries are skipped.
func (s *Sampler) Add(values []*vmf.Value) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		if err := Extract(v, &s.root, s.opts.IgnoreErrors); err != nil {
			return err
		}
		s.samples++
	}
	if !s.root.containsVarchar() {
		return nil
	}
	s.root.initCandidates(s.maxDepth(), s.opts.ConvertStringsToIntegers, 0)
	s.root.refine(values, s.formats)
	return nil
}

func (s *Sampler) maxDepth() int {
	if s.opts.MaxDepth < 0 {
		return int(^uint(0) >> 1)
	}
	return s.opts.MaxDepth
}

// Root is the tree built so far.
func (s *Sampler) Root() *Node { return &s.root }

// Samples is the number of documents added.
func (s *Sampler) Samples() int64 { return s.samples }

// Formats is the date format map the sampler prunes.
func (s *Sampler) Formats() *dateformat.Map { return s.formats }

func (n *Node) initCandidates(maxDepth int, stringsToIntegers bool, depth int) {
	if depth >= maxDepth || len(n.Descriptions) != 1 {
		return
	}
	d := &n.Descriptions[0]
	if d.Type == coltype.Varchar && !n.initialized {
		// tried from the back
		if stringsToIntegers {
			d.candidates = []coltype.ID{coltype.UUID, coltype.BigInt, coltype.Timestamp, coltype.Date, coltype.Time}
		} else {
			d.candidates = []coltype.ID{coltype.UUID, coltype.Timestamp, coltype.Date, coltype.Time}
		}
		n.initialized = true
		return
	}
	for i := range d.Children {
		d.Children[i].initCandidates(maxDepth, stringsToIntegers, depth+1)
	}
}

// refine narrows candidates using the values observed at n in one batch.
// vals may hold nil for absent fields.
func (n *Node) refine(vals []*vmf.Value, formats *dateformat.Map) {
	if !n.containsVarchar() {
		return
	}
	d := &n.Descriptions[0]
	switch d.Type {
	case coltype.List:
		var elems []*vmf.Value
		for _, v := range vals {
			elems = append(elems, v.Elems()...)
		}
		d.Children[0].refine(elems, formats)
	case coltype.Struct:
		perChild := make([][]*vmf.Value, len(d.Children))
		for i := range perChild {
			perChild[i] = make([]*vmf.Value, len(vals))
		}
		for row, v := range vals {
			for _, m := range v.Members() {
				if i, ok := d.keys[m.Key]; ok {
					perChild[i][row] = m.Value
				}
			}
		}
		for i := range d.Children {
			d.Children[i].refine(perChild[i], formats)
		}
	case coltype.Varchar:
		if len(d.candidates) == 0 {
			return
		}
		strs := make([]string, 0, len(vals))
		for _, v := range vals {
			if v.Kind() == vmf.KindString {
				strs = append(strs, v.Str())
			}
		}
		d.eliminate(strs, formats)
	}
}

// eliminate drops candidates from the back until one accepts every value.
// Dropped candidates never come back.
func (d *Description) eliminate(strs []string, formats *dateformat.Map) {
	for len(d.candidates) > 0 {
		id := d.candidates[len(d.candidates)-1]
		if formats.Has(id) {
			if formats.Eliminate(id, strs) {
				return
			}
		} else if castsAll(id, strs) {
			return
		}
		d.candidates = d.candidates[:len(d.candidates)-1]
	}
}

func castsAll(id coltype.ID, strs []string) bool {
	for _, s := range strs {
		if !tryCast(id, s) {
			return false
		}
	}
	return true
}

func tryCast(id coltype.ID, s string) bool {
	var err error
	switch id {
	case coltype.UUID:
		_, err = uuid.Parse(strings.TrimSpace(s))
	case coltype.BigInt:
		_, err = strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case coltype.Time:
		_, err = dateformat.ParseTimeOfDay(s)
	case coltype.Date:
		_, err = dateformat.ParseDate(s)
	case coltype.Timestamp:
		_, err = dateformat.ParseTimestamp(s)
	default:
		panic("INTERNAL Error: no string cast to " + id.String())
	}
	return err == nil
}
