package workflow

// Trigger is an input that can move a review session between states
type Trigger string

const (
	TriggerStart               Trigger = "START"
	TriggerQueueCommand        Trigger = "QUEUE_COMMAND"
	TriggerRequestConfirmation Trigger = "REQUEST_CONFIRMATION"
	TriggerCancelChanges       Trigger = "CANCEL_CHANGES"
	TriggerApprove             Trigger = "APPROVE"
	TriggerAutoApprove         Trigger = "AUTO_APPROVE"
	TriggerReload              Trigger = "RELOAD"
	TriggerAbandon             Trigger = "ABANDON"
	TriggerExpire              Trigger = "EXPIRE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
