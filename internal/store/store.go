// Package store is the transactional store the workloads run against.
//
// A Store hands out private connections; each worker owns one Conn, prepares
// its statements once, and runs every unit of work inside a Tx at the
// connection's isolation level. Statements are written with '?' placeholders
// and rebound to the dialect's bind style on Prepare.
package store

import (
	"context"

	"github.com/isobench/isobench/internal/errors"
	"github.com/isobench/isobench/pkg/types"
)

// Store opens private connections.
type Store interface {
	// Connect returns a connection owned by the caller
	Connect(ctx context.Context) (Conn, error)

	// Dialect describes the SQL flavor of the store
	Dialect() Dialect

	// Close releases the store and all idle connections
	Close() error
}

// Conn is a single connection. A Conn is used by one goroutine at a time.
type Conn interface {
	// SetIsolationLevel sets the level used by subsequent Begin calls
	SetIsolationLevel(level types.IsolationLevel)

	// Prepare parses a statement once for repeated execution
	Prepare(ctx context.Context, query string) (Statement, error)

	// Begin starts a transaction at the connection's isolation level
	Begin(ctx context.Context) (Tx, error)

	// ExecDirect runs a statement outside any transaction
	ExecDirect(ctx context.Context, query string, args ...any) error

	// Close returns the connection to the store
	Close() error
}

// Statement is a prepared statement bound to the Conn that prepared it.
type Statement interface {
	// Text returns the statement as passed to Prepare
	Text() string

	// NumParams returns the number of '?' placeholders in Text
	NumParams() int

	Close() error
}

// Tx is an open transaction.
type Tx interface {
	// Query runs a statement that returns rows
	Query(ctx context.Context, stmt Statement, args ...any) (Rows, error)

	// Execute runs a statement and returns the number of affected rows
	Execute(ctx context.Context, stmt Statement, args ...any) (int64, error)

	Commit() error
	Rollback() error
}

// Rows iterates over a result set.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// FetchOne scans the first row of rows into dest and closes rows.
// A result set without rows is a FetchFailure.
func FetchOne(rows Rows, dest ...any) error {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return errors.FetchFailure("iterate result set", err)
		}
		return errors.New(errors.ErrCategoryStore, errors.CodeFetchFailed, "result set is empty")
	}
	if err := rows.Scan(dest...); err != nil {
		return errors.FetchFailure("scan row", err)
	}
	return nil
}

// Drain counts and discards the remaining rows and closes rows.
func Drain(rows Rows) (int, error) {
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return n, errors.FetchFailure("iterate result set", err)
	}
	return n, nil
}
