package event

// Type identifies the type of domain event
type Type string

const (
	TypeSessionStarted        Type = "session.started"
	TypeCommandQueued         Type = "session.command_queued"
	TypeConfirmationRequested Type = "session.confirmation_requested"
	TypeChangesCancelled      Type = "session.changes_cancelled"
	TypeChangesCommitted      Type = "quote.changes_committed"
	TypeSessionReloaded       Type = "session.reloaded"
	TypeSessionFinalized      Type = "session.finalized"
	TypeSessionExpired        Type = "session.expired"
	TypeQuoteStatusChanged    Type = "quote.status_changed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSessionStarted,
		TypeCommandQueued,
		TypeConfirmationRequested,
		TypeChangesCancelled,
		TypeChangesCommitted,
		TypeSessionReloaded,
		TypeSessionFinalized,
		TypeSessionExpired,
		TypeQuoteStatusChanged:
		return true
	default:
		return false
	}
}
