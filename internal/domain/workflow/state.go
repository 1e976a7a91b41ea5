package workflow

// State is a review session state
type State string

const (
	StateInitial           State = "INITIAL"
	StateReviewingQuote    State = "REVIEWING_QUOTE"
	StateConfirmingChanges State = "CONFIRMING_CHANGES"
	StateFinalized         State = "FINALIZED"
)

var validStates = map[State]bool{
	StateInitial:           true,
	StateReviewingQuote:    true,
	StateConfirmingChanges: true,
	StateFinalized:         true,
}

// IsTerminal returns true if no transition leaves the state
func (s State) IsTerminal() bool {
	return s == StateFinalized
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known review state
func (s State) IsValid() bool {
	return validStates[s]
}
