// Package types provides core data types for isobench.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a single synthesized column value.
// Numeric values keep their integer form so they can be bound as integer
// parameters; dates and categorical values are carried as strings.
type Value struct {
	// Kind is the kind of the column the value belongs to
	Kind ColumnKind `json:"kind"`

	// Int holds the value for numeric columns
	Int int64 `json:"int,omitempty"`

	// Str holds the rendered value for date and categorical columns
	Str string `json:"str,omitempty"`
}

// NumericValue returns a numeric Value.
func NumericValue(n int64) Value {
	return Value{Kind: KindNumeric, Int: n}
}

// StringValue returns a date or categorical Value.
func StringValue(kind ColumnKind, s string) Value {
	return Value{Kind: kind, Str: s}
}

// String renders the value the way it is written to table files.
func (v Value) String() string {
	if v.Kind == KindNumeric {
		return strconv.FormatInt(v.Int, 10)
	}
	return v.Str
}

// Arg returns the value as a statement parameter.
func (v Value) Arg() any {
	if v.Kind == KindNumeric {
		return v.Int
	}
	return v.Str
}

// Row is an ordered tuple of column values. All rows of a dataset have the same arity.
type Row []Value

// Args returns every column of the row as statement parameters.
func (r Row) Args() []any {
	args := make([]any, len(r))
	for i, v := range r {
		args[i] = v.Arg()
	}
	return args
}

// Project returns the parameters at the given positions, in the given order.
func (r Row) Project(positions []int) ([]any, error) {
	args := make([]any, 0, len(positions))
	for _, p := range positions {
		if p < 0 || p >= len(r) {
			return nil, fmt.Errorf("%w: %d of %d columns", ErrPositionOutOfRange, p, len(r))
		}
		args = append(args, r[p].Arg())
	}
	return args, nil
}

// Key returns a comparable encoding of the first n columns.
// Each value is length-prefixed so that distinct tuples never collide.
func (r Row) Key(n int) string {
	var sb strings.Builder
	for i := 0; i < n && i < len(r); i++ {
		s := r[i].String()
		sb.WriteString(strconv.Itoa(len(s)))
		sb.WriteByte(':')
		sb.WriteString(s)
	}
	return sb.String()
}

// Delimited joins the rendered values with sep.
func (r Row) Delimited(sep string) string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = v.String()
	}
	return strings.Join(parts, sep)
}
