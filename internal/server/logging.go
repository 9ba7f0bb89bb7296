package server

const (
	logMsgStatusListening = "status endpoint listening"
	logMsgStatusFailed    = "status endpoint failed"

	logAttrAddr  = "addr"
	logAttrError = "error"
)
