package workflow

// ReviewGuards supplies the session facts the review machine consults
type ReviewGuards struct {
	// AutoConfirmAllowed reports whether the queued batch may skip an explicit approval
	AutoConfirmAllowed GuardFunc
}

// BuildReviewStateMachine returns the review session machine positioned at current.
//
//	INITIAL            --START-->                REVIEWING_QUOTE
//	REVIEWING_QUOTE    --QUEUE_COMMAND/RELOAD--> REVIEWING_QUOTE
//	REVIEWING_QUOTE    --REQUEST_CONFIRMATION--> CONFIRMING_CHANGES
//	CONFIRMING_CHANGES --CANCEL_CHANGES/RELOAD-> REVIEWING_QUOTE
//	CONFIRMING_CHANGES --APPROVE-->              FINALIZED
//	CONFIRMING_CHANGES --AUTO_APPROVE [guard]--> FINALIZED
//	any non-final      --ABANDON/EXPIRE-->       FINALIZED
func BuildReviewStateMachine(current State, guards ReviewGuards) StateMachine {
	b := NewBuilder()

	b.Configure(StateInitial).
		Permit(TriggerStart, StateReviewingQuote).
		Permit(TriggerAbandon, StateFinalized).
		Permit(TriggerExpire, StateFinalized)

	b.Configure(StateReviewingQuote).
		Permit(TriggerQueueCommand, StateReviewingQuote).
		Permit(TriggerReload, StateReviewingQuote).
		Permit(TriggerRequestConfirmation, StateConfirmingChanges).
		Permit(TriggerAbandon, StateFinalized).
		Permit(TriggerExpire, StateFinalized)

	b.Configure(StateConfirmingChanges).
		Permit(TriggerCancelChanges, StateReviewingQuote).
		Permit(TriggerReload, StateReviewingQuote).
		Permit(TriggerApprove, StateFinalized).
		PermitIf(TriggerAutoApprove, StateFinalized, guards.AutoConfirmAllowed).
		Permit(TriggerAbandon, StateFinalized).
		Permit(TriggerExpire, StateFinalized)

	b.Configure(StateFinalized)

	return b.Build(current)
}
