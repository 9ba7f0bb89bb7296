package types

import (
	"database/sql"
	"fmt"
)

// IsolationLevel is the concurrency-correctness strength requested from the store.
// The names follow DB2: uncommitted read, cursor stability, read stability, repeatable read.
type IsolationLevel string

const (
	// IsolationUR allows dirty reads
	IsolationUR IsolationLevel = "UR"

	// IsolationCS only reads committed data
	IsolationCS IsolationLevel = "CS"

	// IsolationRS keeps read rows stable until commit
	IsolationRS IsolationLevel = "RS"

	// IsolationRR is serializable
	IsolationRR IsolationLevel = "RR"
)

// IsolationLevels lists the supported levels from weakest to strongest.
var IsolationLevels = []IsolationLevel{IsolationUR, IsolationCS, IsolationRS, IsolationRR}

// ParseIsolationLevel validates an isolation level name.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	for _, l := range IsolationLevels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be UR, CS, RS or RR)", ErrUnknownIsolationLevel, s)
}

// SQLLevel maps the level onto database/sql's ANSI levels.
func (l IsolationLevel) SQLLevel() sql.IsolationLevel {
	switch l {
	case IsolationUR:
		return sql.LevelReadUncommitted
	case IsolationCS:
		return sql.LevelReadCommitted
	case IsolationRS:
		return sql.LevelRepeatableRead
	case IsolationRR:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// Serializable reports whether the level guarantees serializable execution.
func (l IsolationLevel) Serializable() bool {
	return l == IsolationRR
}

// WriteMode selects the statement shape of the write experiment.
type WriteMode string

const (
	// WriteInsertN inserts every drawn row
	WriteInsertN WriteMode = "insertN"

	// WriteUpdate1 runs one set-oriented update statement
	WriteUpdate1 WriteMode = "update1"

	// WriteUpdateN updates once per drawn row, binding selected attributes
	WriteUpdateN WriteMode = "updateN"
)

// ParseWriteMode validates a write mode name.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(s) {
	case WriteInsertN, WriteUpdate1, WriteUpdateN:
		return WriteMode(s), nil
	}
	return "", fmt.Errorf("%w: %q (must be insertN, update1 or updateN)", ErrUnknownWriteMode, s)
}

// TransMode selects how writes are grouped into transactions.
type TransMode string

const (
	// TransOne commits once per worker batch
	TransOne TransMode = "1"

	// TransN commits after every write
	TransN TransMode = "N"
)

// ParseTransMode validates a transaction mode name.
func ParseTransMode(s string) (TransMode, error) {
	switch TransMode(s) {
	case TransOne, TransN:
		return TransMode(s), nil
	}
	return "", fmt.Errorf("%w: %q (must be 1 or N)", ErrUnknownTransMode, s)
}
