package bench

// Phase is a stage of a benchmark run. Phases only move forward.
type Phase int

const (
	PhaseConfigured Phase = iota
	PhaseWarmup
	PhaseScheduled
	PhaseRunning
	PhaseAggregating
	PhaseReported
)

var phaseNames = [...]string{
	PhaseConfigured:  "CONFIGURED",
	PhaseWarmup:      "WARMUP",
	PhaseScheduled:   "SCHEDULED",
	PhaseRunning:     "RUNNING",
	PhaseAggregating: "AGGREGATING",
	PhaseReported:    "REPORTED",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "UNKNOWN"
	}
	return phaseNames[p]
}
