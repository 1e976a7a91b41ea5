package port

// ReviewMetrics records review engine activity
type ReviewMetrics interface {
	SessionStarted()
	CommandQueued(kind string, lowConfidence bool)
	BatchCommitted(commands int)
	CommitConflict()
	ApplyFailed()
	SessionFinalized(outcome string)
	ActiveSessions(n int)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) SessionStarted()                               {}
func (NopMetrics) CommandQueued(kind string, lowConfidence bool) {}
func (NopMetrics) BatchCommitted(commands int)                   {}
func (NopMetrics) CommitConflict()                               {}
func (NopMetrics) ApplyFailed()                                  {}
func (NopMetrics) SessionFinalized(outcome string)               {}
func (NopMetrics) ActiveSessions(n int)                          {}
