package harness

const (
	logMsgExperimentStarted = "experiment started"
	logMsgRunFinished       = "run finished"
	logMsgRunFailed         = "run failed"
	logMsgStopped           = "stop requested, skipping remaining runs"

	logAttrExperiment = "experiment"
	logAttrKind       = "kind"
	logAttrRun        = "run"
	logAttrRuns       = "runs"
	logAttrThreads    = "threads"
	logAttrIsolation  = "isolation"
	logAttrSeed       = "seed"
	logAttrElapsed    = "elapsed_s"
	logAttrSwaps      = "swaps"
	logAttrObserved   = "observed"
	logAttrConserved  = "conserved"
	logAttrRows       = "rows"
	logAttrMode       = "mode"
	logAttrError      = "error"
)
