package store

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/internal/observability"
)

const defaultSeedBatch = 500

// AccountsOptions configures InitAccounts.
type AccountsOptions struct {
	Table string

	// Low and High bound the account ids, inclusive
	Low  int64
	High int64

	// Balance returns the initial balance of an account
	Balance func(id int64) int64

	// Recreate drops an existing table first
	Recreate bool

	// BatchSize is the number of accounts per insert statement
	BatchSize int

	Logger observability.Logger
}

// InitAccounts creates the accounts table and seeds ids [Low, High].
// It returns the total seeded balance.
func InitAccounts(ctx context.Context, s *SQLStore, opts AccountsOptions) (int64, error) {
	if opts.High < opts.Low {
		return 0, errors.InvalidSpec("account range [%d, %d] is empty", opts.Low, opts.High)
	}
	table := opts.Table
	if table == "" {
		table = DefaultAccountsTable
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = defaultSeedBatch
	}
	balance := opts.Balance
	if balance == nil {
		balance = func(int64) int64 { return 0 }
	}
	logger := observability.OrNop(opts.Logger)

	conn, err := s.Connect(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if opts.Recreate {
		if err := conn.ExecDirect(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return 0, err
		}
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s BIGINT PRIMARY KEY, %s BIGINT NOT NULL)", table, ColAccountID, ColBalance)
	if err := conn.ExecDirect(ctx, ddl); err != nil {
		return 0, err
	}

	b := goqu.Dialect(s.Dialect().Builder)
	var total int64
	for start := opts.Low; start <= opts.High; start += int64(batch) {
		end := start + int64(batch) - 1
		if end > opts.High {
			end = opts.High
		}

		rows := make([][]interface{}, 0, end-start+1)
		for id := start; id <= end; id++ {
			v := balance(id)
			total += v
			rows = append(rows, []interface{}{id, v})
		}
		query, _, err := b.Insert(table).Cols(ColAccountID, ColBalance).Vals(rows...).ToSQL()
		if err != nil {
			return 0, errors.NewInternalError("build seed statement", err)
		}
		if err := conn.ExecDirect(ctx, query); err != nil {
			return 0, err
		}
	}

	logger.Info(logMsgAccountsSeeded, logAttrTable, table, logAttrLow, opts.Low, logAttrHigh, opts.High, logAttrTotal, total)
	return total, nil
}
