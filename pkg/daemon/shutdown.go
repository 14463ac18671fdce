package daemon

// Shutdown order of the background workers, lowest first.
const (
	PriorityCloseDatabase = iota
	PriorityNetwork
	PriorityChains
	PriorityMetricsUpdater
	PriorityRestAPI
	PriorityPrometheus
)
