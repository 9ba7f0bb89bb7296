package store

import (
	"os"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"    // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect import
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect import
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/isobench/isobench/internal/errors"
)

// Accounts table layout used by the generated statements.
const (
	DefaultAccountsTable = "accounts"
	ColAccountID         = "account_id"
	ColBalance           = "balance"
)

// Statement texts understood by the in-memory store.
const (
	MemoryRead  = "balance.read"
	MemoryWrite = "balance.write"
	MemorySum   = "balance.sum"
)

// Statements are the statement texts of the swap workload.
type Statements struct {
	// Read selects the balance of one account: (account_id)
	Read string `json:"read"`

	// Write sets the balance of one account: (balance, account_id)
	Write string `json:"write"`

	// Sum returns the total balance, no parameters
	Sum string `json:"sum"`

	// Insert adds one account: (account_id, balance)
	Insert string `json:"insert,omitempty"`
}

// DefaultStatements generates the swap statements for table in dialect d.
// Reads lock the row where the dialect supports it.
func DefaultStatements(d Dialect, table string) (Statements, error) {
	if d.Driver == DriverMemory {
		return Statements{Read: MemoryRead, Write: MemoryWrite, Sum: MemorySum}, nil
	}
	if table == "" {
		table = DefaultAccountsTable
	}
	b := goqu.Dialect(d.Builder)

	read := b.From(table).Prepared(true).
		Select(ColBalance).
		Where(goqu.C(ColAccountID).Eq(0))
	if d.RowLocks {
		read = read.ForUpdate(exp.Wait)
	}

	write := b.Update(table).Prepared(true).
		Set(goqu.Record{ColBalance: 0}).
		Where(goqu.C(ColAccountID).Eq(0))

	sum := b.From(table).
		Select(goqu.COALESCE(goqu.SUM(ColBalance), 0))

	insert := b.Insert(table).Prepared(true).
		Cols(ColAccountID, ColBalance).
		Vals(goqu.Vals{0, 0})

	var st Statements
	var err error
	if st.Read, _, err = read.ToSQL(); err != nil {
		return Statements{}, errors.NewInternalError("build read statement", err)
	}
	if st.Write, _, err = write.ToSQL(); err != nil {
		return Statements{}, errors.NewInternalError("build write statement", err)
	}
	if st.Sum, _, err = sum.ToSQL(); err != nil {
		return Statements{}, errors.NewInternalError("build sum statement", err)
	}
	if st.Insert, _, err = insert.ToSQL(); err != nil {
		return Statements{}, errors.NewInternalError("build insert statement", err)
	}
	return st, nil
}

// LoadStatement reads a statement from a file. Surrounding whitespace and
// a trailing semicolon are removed.
func LoadStatement(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCategoryConfig, errors.CodeInvalidSpec, "read statement file", err)
	}
	text := strings.TrimSpace(string(data))
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))
	if text == "" {
		return "", errors.InvalidSpec("statement file %s is empty", path)
	}
	return text, nil
}

// CountPlaceholders returns the number of bind parameters in query: the
// count of '?' markers, or the highest $n for dollar-style statements.
// Markers inside single-quoted literals are ignored.
func CountPlaceholders(query string) int {
	questions, dollars := 0, 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '?':
			questions++
		case c == '$':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j > i+1 {
				if n, err := strconv.Atoi(query[i+1 : j]); err == nil && n > dollars {
					dollars = n
				}
				i = j - 1
			}
		}
	}
	if dollars > questions {
		return dollars
	}
	return questions
}
