package app

const (
	logMsgStopRequested = "stop requested, finishing current run"
	logMsgTableWritten  = "table written"
	logMsgAccountsReady = "accounts ready"
	logMsgNoTableLock   = "driver has no table lock statement, running without"
	logMsgReportWritten = "report written"
	logMsgPublished     = "results published"

	logAttrReason      = "reason"
	logAttrPath        = "path"
	logAttrRows        = "rows"
	logAttrFingerprint = "fingerprint"
	logAttrTable       = "table"
	logAttrTotal       = "total"
	logAttrDriver      = "driver"
	logAttrPrefix      = "prefix"
	logAttrObjects     = "objects"
)
