package workflow

import "context"

// StateMachine tracks the current state of one session and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if some transition for trigger would pass its guard now
	CanFire(ctx context.Context, trigger Trigger) bool

	// Fire executes the first permitted transition for trigger
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns triggers configured for the current state
	PermittedTriggers() []Trigger
}
