// Package dataset assembles synthesized columns into key-unique rows and
// serves them to concurrent consumers.
package dataset

import (
	"encoding/hex"
	"fmt"

	"github.com/spaolacci/murmur3"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/synth"
	"github.com/isobench/isobench/pkg/types"
)

// Dataset is a read-only set of rows that are unique on their first NumKeys columns.
type Dataset struct {
	// Schema holds one descriptor tag per column
	Schema []string

	// Rows are the data rows, without the schema row
	Rows []types.Row

	// NumKeys is the length of the key prefix
	NumKeys int
}

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// NumCols returns the row arity.
func (d *Dataset) NumCols() int {
	return len(d.Schema)
}

// SchemaRow returns the schema descriptor as a row.
func (d *Dataset) SchemaRow() types.Row {
	row := make(types.Row, len(d.Schema))
	for i, tag := range d.Schema {
		row[i] = types.StringValue(types.KindCategorical, tag)
	}
	return row
}

// Fingerprint returns a 128-bit murmur3 digest of the schema and rows, in order.
func (d *Dataset) Fingerprint() string {
	h := murmur3.New128()
	h.Write([]byte(d.SchemaRow().Delimited("|")))
	for _, row := range d.Rows {
		h.Write([]byte{'\n'})
		h.Write([]byte(row.Delimited("|")))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Assemble zips columns into rows and removes key collisions.
//
// When numkeys equals the number of columns the whole row is the key and
// repeated rows are dropped, keeping the first. Otherwise a later row whose
// key prefix was already seen replaces the earlier row's remaining columns,
// so the dataset may hold fewer rows than were drawn.
// Surviving rows keep the position of the first occurrence of their key.
func Assemble(columns []synth.Column, numkeys int) (*Dataset, error) {
	numcols := len(columns)
	if numcols == 0 {
		return nil, errors.InvalidSpec("dataset needs at least one column")
	}
	if numkeys < 0 || numkeys > numcols {
		return nil, errors.InvalidSpec("numkeys %d must be within [0, %d]", numkeys, numcols)
	}

	numrows := len(columns[0].Values)
	for i, col := range columns {
		if len(col.Values) != numrows {
			return nil, errors.ColumnLengthMismatch(i, len(col.Values), numrows)
		}
	}

	ds := &Dataset{
		Schema:  make([]string, numcols),
		NumKeys: numkeys,
	}
	for i, col := range columns {
		ds.Schema[i] = col.Tag
	}

	index := make(map[string]int, numrows)
	for r := 0; r < numrows; r++ {
		row := make(types.Row, numcols)
		for c := range columns {
			row[c] = columns[c].Values[r]
		}

		key := row.Key(numkeys)
		if at, ok := index[key]; ok {
			if numkeys < numcols {
				ds.Rows[at] = row
			}
			continue
		}
		index[key] = len(ds.Rows)
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// Generate synthesizes one column per spec and assembles them.
// numrows is the logical population the cardinality directives refer to;
// numwrites is the number of values drawn per column.
func Generate(specs []types.ColumnSpec, numrows, numwrites, numkeys int, opts ...synth.Option) (*Dataset, error) {
	if len(specs) == 0 {
		return nil, errors.InvalidSpec("dataset needs at least one column")
	}
	if numkeys < 0 || numkeys > len(specs) {
		return nil, errors.InvalidSpec("numkeys %d must be within [0, %d]", numkeys, len(specs))
	}

	s := synth.New(opts...)
	columns := make([]synth.Column, 0, len(specs))
	for i, spec := range specs {
		col, err := s.Column(spec, numrows, numwrites)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, fmt.Sprintf("column %d (%s)", i, spec.Kind), err)
		}
		columns = append(columns, col)
	}
	return Assemble(columns, numkeys)
}
