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

package coltype

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var typeNames = map[string]ID{
	"NULL":      Null,
	"BOOLEAN":   Boolean,
	"BOOL":      Boolean,
	"BIGINT":    BigInt,
	"INT8":      BigInt,
	"INT64":     BigInt,
	"INTEGER":   BigInt,
	"INT":       BigInt,
	"UBIGINT":   UBigInt,
	"UINT64":    UBigInt,
	"DOUBLE":    Double,
	"FLOAT8":    Double,
	"FLOAT":     Double,
	"VARCHAR":   Varchar,
	"TEXT":      Varchar,
	"STRING":    Varchar,
	"VMF":       VMF,
	"JSON":      VMF,
	"DATE":      Date,
	"TIME":      Time,
	"TIMESTAMP": Timestamp,
	"DATETIME":  Timestamp,
	"UUID":      UUID,
}

var typeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[(),\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

//nolint:govet
type typeExpr struct {
	Struct *structExpr `(  @@`
	Map    *mapExpr    ` | @@`
	Name   string      ` | @Ident )`
	Dims   []string    `@( "[" "]" )*`
}

//nolint:govet
type structExpr struct {
	Fields []*fieldExpr `"STRUCT" "(" @@ ( "," @@ )* ")"`
}

//nolint:govet
type mapExpr struct {
	Key   *typeExpr `"MAP" "(" @@`
	Value *typeExpr `"," @@ ")"`
}

//nolint:govet
type fieldExpr struct {
	Name string    `( @Ident | @String )`
	Type *typeExpr `@@`
}

//nolint:govet
type columnsExpr struct {
	Fields []*fieldExpr `@@ ( "," @@ )*`
}

var (
	typeParser = participle.MustBuild[typeExpr](
		participle.Lexer(typeLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(2),
	)
	columnsParser = participle.MustBuild[columnsExpr](
		participle.Lexer(typeLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(2),
	)
)

// ParseError reports a type string that could not be understood.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid type %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reads a textual type such as "BIGINT[]" or
// "STRUCT(a VARCHAR, b MAP(VARCHAR, DOUBLE))".
func Parse(s string) (Type, error) {
	expr, err := typeParser.ParseString("", s)
	if err != nil {
		return Type{}, &ParseError{Input: s, Err: err}
	}
	t, err := expr.resolve()
	if err != nil {
		return Type{}, &ParseError{Input: s, Err: err}
	}
	return t, nil
}

// MustParse is Parse that panics, for tests and static tables.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseColumns reads a comma separated column list such as
// `a BIGINT, "b c" VARCHAR[]`.
func ParseColumns(s string) ([]Field, error) {
	expr, err := columnsParser.ParseString("", s)
	if err != nil {
		return nil, &ParseError{Input: s, Err: err}
	}
	fields, err := resolveFields(expr.Fields)
	if err != nil {
		return nil, &ParseError{Input: s, Err: err}
	}
	return fields, nil
}

func (e *typeExpr) resolve() (Type, error) {
	var t Type
	switch {
	case e.Struct != nil:
		fields, err := resolveFields(e.Struct.Fields)
		if err != nil {
			return Type{}, err
		}
		t = StructOf(fields...)
	case e.Map != nil:
		key, err := e.Map.Key.resolve()
		if err != nil {
			return Type{}, err
		}
		if key.ID != Varchar {
			return Type{}, fmt.Errorf("map keys must be VARCHAR, got %s", key)
		}
		val, err := e.Map.Value.resolve()
		if err != nil {
			return Type{}, err
		}
		t = MapOf(val)
	default:
		id, ok := typeNames[strings.ToUpper(e.Name)]
		if !ok {
			return Type{}, fmt.Errorf("unknown type name %q", e.Name)
		}
		t = Simple(id)
	}
	for i := 0; i < len(e.Dims)/2; i++ {
		t = ListOf(t)
	}
	return t, nil
}

func resolveFields(exprs []*fieldExpr) ([]Field, error) {
	fields := make([]Field, 0, len(exprs))
	for _, fe := range exprs {
		ft, err := fe.Type.resolve()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fe.Name, err)
		}
		fields = append(fields, Field{Name: fe.Name, Type: ft})
	}
	return fields, nil
}
