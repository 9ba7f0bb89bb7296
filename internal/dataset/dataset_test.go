package dataset

import (
	"testing"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/synth"
	"github.com/isobench/isobench/pkg/types"
)

func numericColumn(values ...int64) synth.Column {
	col := synth.Column{Spec: types.Numeric(1, 0), Tag: "numeric"}
	for _, v := range values {
		col.Values = append(col.Values, types.NumericValue(v))
	}
	return col
}

func TestAssemble_WholeRowKeyDropsDuplicates(t *testing.T) {
	ds, err := Assemble([]synth.Column{
		numericColumn(1, 2, 1, 3),
		numericColumn(9, 8, 9, 7),
	}, 2)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("got %d rows, want 3", ds.Len())
	}
	if ds.Rows[0].Delimited("|") != "1|9" {
		t.Errorf("first row: got %q", ds.Rows[0].Delimited("|"))
	}
}

func TestAssemble_KeyPrefixLastWriteWins(t *testing.T) {
	ds, err := Assemble([]synth.Column{
		numericColumn(1, 2, 1),
		numericColumn(10, 20, 30),
	}, 1)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d rows, want 2", ds.Len())
	}
	if got := ds.Rows[0].Delimited("|"); got != "1|30" {
		t.Errorf("got %q, want 1|30", got)
	}
	if got := ds.Rows[1].Delimited("|"); got != "2|20" {
		t.Errorf("got %q, want 2|20", got)
	}
}

func TestAssemble_NoKeysCollapsesToOneRow(t *testing.T) {
	ds, err := Assemble([]synth.Column{numericColumn(1, 2, 3)}, 0)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if ds.Len() != 1 || ds.Rows[0][0].Int != 3 {
		t.Errorf("got %+v", ds.Rows)
	}
}

func TestAssemble_Errors(t *testing.T) {
	if _, err := Assemble(nil, 0); errors.GetCode(err) != errors.CodeInvalidSpec {
		t.Errorf("no columns: got %v", err)
	}
	if _, err := Assemble([]synth.Column{numericColumn(1)}, 2); errors.GetCode(err) != errors.CodeInvalidSpec {
		t.Errorf("numkeys > numcols: got %v", err)
	}
	_, err := Assemble([]synth.Column{numericColumn(1, 2), numericColumn(1)}, 1)
	if errors.GetCode(err) != errors.CodeColumnLengthMismatch {
		t.Errorf("length mismatch: got %v", err)
	}
}

func TestAssemble_ColumnsDoNotAlias(t *testing.T) {
	a := numericColumn(1, 2)
	b := numericColumn(3, 4)
	ds, err := Assemble([]synth.Column{a, b}, 1)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	ds.Rows[0][1] = types.NumericValue(99)
	if b.Values[0].Int != 3 {
		t.Error("rows should not share storage with columns")
	}
}

// Two columns "acct 1" and "n 1.0" over 100 rows with one key column.
func TestGenerate_AccountTable(t *testing.T) {
	specs := []types.ColumnSpec{
		types.Categorical("acct", 1, 0),
		types.Numeric(1.0, 0),
	}

	ds, err := Generate(specs, 100, 100, 1, synth.WithSeed(11))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if ds.Len() != 100 {
		t.Fatalf("got %d rows, want 100", ds.Len())
	}
	if ds.Schema[0] != "varchar(99)" || ds.Schema[1] != "numeric" {
		t.Errorf("got schema %v", ds.Schema)
	}

	accounts := make(map[string]bool)
	balances := make(map[int64]bool)
	for _, row := range ds.Rows {
		accounts[row[0].String()] = true
		balances[row[1].Int] = true
	}
	for i := 0; i < 100; i++ {
		if !accounts["acct"+itoa(i)] {
			t.Errorf("missing account acct%d", i)
		}
		if !balances[int64(i)] {
			t.Errorf("missing balance %d", i)
		}
	}
}

func TestGenerate_InvalidSpec(t *testing.T) {
	specs := []types.ColumnSpec{types.Numeric(1, 0)}
	if _, err := Generate(specs, 10, 10, 2); errors.GetCode(err) != errors.CodeInvalidSpec {
		t.Errorf("numkeys > numcols: got %v", err)
	}
	if _, err := Generate([]types.ColumnSpec{types.Numeric(0.01, 0)}, 10, 10, 1); !errors.IsConfigError(err) {
		t.Errorf("empty domain: got %v", err)
	}
}

func TestFingerprint(t *testing.T) {
	specs := []types.ColumnSpec{types.Numeric(1, 0), types.Categorical("c", 4, 0)}
	a, _ := Generate(specs, 50, 50, 1, synth.WithSeed(5))
	b, _ := Generate(specs, 50, 50, 1, synth.WithSeed(5))
	c, _ := Generate(specs, 50, 50, 1, synth.WithSeed(6))

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("same seed should give the same fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different seeds should give different fingerprints")
	}
	if len(a.Fingerprint()) != 32 {
		t.Errorf("got fingerprint length %d, want 32", len(a.Fingerprint()))
	}
}

func itoa(i int) string {
	return types.NumericValue(int64(i)).String()
}
