package types

import "fmt"

// ColumnKind identifies how a column's drawn integers are rendered.
type ColumnKind int

const (
	// KindNumeric renders the drawn integer itself
	KindNumeric ColumnKind = iota

	// KindDate renders the drawn integer as a day offset from today
	KindDate

	// KindCategorical renders prefix + drawn integer
	KindCategorical
)

// String returns the spec-file token for the kind.
func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "n"
	case KindDate:
		return "d"
	case KindCategorical:
		return "categorical"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ColumnSpec describes how one column of a synthetic dataset is generated.
// ColumnSpecs are parsed once per run and never modified afterwards.
type ColumnSpec struct {
	// Kind is the rendering kind of the column
	Kind ColumnKind `json:"kind" yaml:"kind"`

	// Prefix is the value prefix for categorical columns
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Draw is the cardinality directive:
	// 1 means one distinct value per row, <1 a fraction of the row count,
	// >1 a fixed number of distinct values.
	Draw float64 `json:"draw" yaml:"draw"`

	// BaseOffset is added to every drawn integer
	BaseOffset int64 `json:"base_offset" yaml:"base_offset"`
}

// Numeric returns a numeric ColumnSpec.
func Numeric(draw float64, base int64) ColumnSpec {
	return ColumnSpec{Kind: KindNumeric, Draw: draw, BaseOffset: base}
}

// Date returns a date ColumnSpec.
func Date(draw float64, base int64) ColumnSpec {
	return ColumnSpec{Kind: KindDate, Draw: draw, BaseOffset: base}
}

// Categorical returns a categorical ColumnSpec with the given prefix.
func Categorical(prefix string, draw float64, base int64) ColumnSpec {
	return ColumnSpec{Kind: KindCategorical, Prefix: prefix, Draw: draw, BaseOffset: base}
}
