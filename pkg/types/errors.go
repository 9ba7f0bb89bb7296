package types

import "errors"

// Parsing errors for enumerated options and row access.
var (
	// ErrUnknownIsolationLevel is returned for isolation levels other than UR, CS, RS, RR
	ErrUnknownIsolationLevel = errors.New("unknown isolation level")

	// ErrUnknownWriteMode is returned for write modes other than insertN, update1, updateN
	ErrUnknownWriteMode = errors.New("unknown write mode")

	// ErrUnknownTransMode is returned for transaction modes other than 1 and N
	ErrUnknownTransMode = errors.New("unknown transaction mode")

	// ErrPositionOutOfRange is returned when a projected position is not a column of the row
	ErrPositionOutOfRange = errors.New("position out of range")
)
