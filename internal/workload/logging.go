package workload

const (
	logMsgCloseFailed  = "connection close failed"
	logMsgSwapFailed   = "swap failed"
	logMsgWorkerDone   = "worker finished"
	logMsgObserved     = "sum observed"
	logMsgWritesDone   = "writes finished"
	logMsgQueryFetched = "query fetched"

	logAttrWorker = "worker"
	logAttrError  = "error"
	logAttrX      = "x"
	logAttrY      = "y"
	logAttrSwaps  = "swaps"
	logAttrSum    = "sum"
	logAttrWrites = "writes"
	logAttrQuery  = "query"
	logAttrRows   = "rows"
)
