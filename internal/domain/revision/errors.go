package revision

import (
	"errors"
	"fmt"

	"github.com/garyjia/quote-revision/internal/domain/entity"
)

var (
	// ErrTargetNotFound is returned when no item matches a command target
	ErrTargetNotFound = errors.New("target item not found")

	// ErrAmbiguousTarget is returned when several items match equally well
	ErrAmbiguousTarget = errors.New("ambiguous target item")

	// ErrInvalidQuantity is returned for a missing, non-positive or non-finite quantity
	ErrInvalidQuantity = errors.New("quantity must be a positive finite number")

	// ErrInvalidPrice is returned when a command would produce a negative, non-finite or oversized unit price
	ErrInvalidPrice = errors.New("unit price must be a finite non-negative amount")

	// ErrUnsupportedBulkOperation is returned for bulk operations the engine refuses to approximate
	ErrUnsupportedBulkOperation = errors.New("unsupported bulk operation")

	// ErrInvalidCommand is returned for commands whose fields cannot be applied
	ErrInvalidCommand = errors.New("invalid command")
)

// CommandError identifies which command of a batch failed.
// It unwraps to one of the sentinel errors above.
type CommandError struct {
	Index  int
	Kind   entity.CommandKind
	Target string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("command %d (%s %q): %v", e.Index, e.Kind, e.Target, e.Err)
	}
	return fmt.Sprintf("command %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
