package store

const (
	logMsgStoreOpened    = "store opened"
	logMsgAccountsSeeded = "accounts seeded"

	logAttrDriver   = "driver"
	logAttrMaxConns = "max_open_conns"
	logAttrTable    = "table"
	logAttrLow      = "low"
	logAttrHigh     = "high"
	logAttrTotal    = "total_balance"
)
