package entity

import "time"

// SessionState mirrors the review workflow state of a session.
// The values match workflow.State so the two convert with a plain cast.
type SessionState string

const (
	SessionInitial           SessionState = "INITIAL"
	SessionReviewingQuote    SessionState = "REVIEWING_QUOTE"
	SessionConfirmingChanges SessionState = "CONFIRMING_CHANGES"
	SessionFinalized         SessionState = "FINALIZED"
)

// SessionOutcome records why a session was finalized
type SessionOutcome string

const (
	OutcomeCommitted SessionOutcome = "committed"
	OutcomeDiscarded SessionOutcome = "discarded"
	OutcomeExpired   SessionOutcome = "expired"
)

// PendingCommand is a queued command with its confidence flag
type PendingCommand struct {
	Command       VoiceEditCommand `json:"command"`
	LowConfidence bool             `json:"low_confidence"`
	QueuedAt      time.Time        `json:"queued_at"`
}

// QuoteReviewSession tracks one contractor's conversational review of one quote.
// At most one non-finalized session exists per quote.
type QuoteReviewSession struct {
	ID              string           `json:"id"`
	QuoteID         string           `json:"quote_id"`
	ContractorID    string           `json:"contractor_id"`
	State           SessionState     `json:"state"`
	ObservedVersion int              `json:"observed_version"`
	Pending         []PendingCommand `json:"pending"`
	ThreadID        string           `json:"thread_id,omitempty"`

	// Stale is set when the store moved past ObservedVersion; cleared by a reload
	Stale bool `json:"stale"`

	StartedAt        time.Time      `json:"started_at"`
	LastActivityAt   time.Time      `json:"last_activity_at"`
	FinalizedAt      *time.Time     `json:"finalized_at,omitempty"`
	Outcome          SessionOutcome `json:"outcome,omitempty"`
	CommittedVersion int            `json:"committed_version,omitempty"`
}

// IsActive returns true until the session is finalized
func (s *QuoteReviewSession) IsActive() bool {
	return s.State != SessionFinalized
}

// Commands returns the queued commands in submission order
func (s *QuoteReviewSession) Commands() []VoiceEditCommand {
	out := make([]VoiceEditCommand, len(s.Pending))
	for i, p := range s.Pending {
		out[i] = p.Command
	}
	return out
}

// HasLowConfidence returns true if any queued command was flagged
func (s *QuoteReviewSession) HasLowConfidence() bool {
	for _, p := range s.Pending {
		if p.LowConfidence {
			return true
		}
	}
	return false
}

// Snapshot returns a deep copy safe to hand out of the session manager
func (s *QuoteReviewSession) Snapshot() *QuoteReviewSession {
	cp := *s
	cp.Pending = append([]PendingCommand(nil), s.Pending...)
	if s.FinalizedAt != nil {
		t := *s.FinalizedAt
		cp.FinalizedAt = &t
	}
	return &cp
}
