package entity

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// CommandKind identifies what a voice edit command asks for
type CommandKind string

const (
	CommandChangePrice    CommandKind = "CHANGE_PRICE"
	CommandAddItem        CommandKind = "ADD_ITEM"
	CommandRemoveItem     CommandKind = "REMOVE_ITEM"
	CommandChangeQuantity CommandKind = "CHANGE_QUANTITY"
	CommandBulkChange     CommandKind = "BULK_CHANGE"
)

// IsValid returns true if the kind is a known command kind
func (k CommandKind) IsValid() bool {
	switch k {
	case CommandChangePrice, CommandAddItem, CommandRemoveItem, CommandChangeQuantity, CommandBulkChange:
		return true
	default:
		return false
	}
}

// NeedsTarget returns true for kinds that operate on one existing item
func (k CommandKind) NeedsTarget() bool {
	return k == CommandChangePrice || k == CommandRemoveItem || k == CommandChangeQuantity
}

// BulkOperation is the operation of a BULK_CHANGE command
type BulkOperation string

const (
	BulkAddPercentage      BulkOperation = "add_percentage"
	BulkSubtractPercentage BulkOperation = "subtract_percentage"
	BulkSetTotal           BulkOperation = "set_total"
)

// IsValid returns true if the operation is a known bulk operation
func (o BulkOperation) IsValid() bool {
	switch o {
	case BulkAddPercentage, BulkSubtractPercentage, BulkSetTotal:
		return true
	default:
		return false
	}
}

// ScopeAll selects every item of a quote in a bulk change
const ScopeAll = "all"

// ErrMalformedCommand is returned by VoiceEditCommand.Validate
var ErrMalformedCommand = errors.New("malformed edit command")

// VoiceEditCommand is an interpreted edit instruction.
// It lives only inside a review session until it is applied or discarded.
type VoiceEditCommand struct {
	Kind        CommandKind   `json:"kind"`
	Target      string        `json:"target,omitempty"`
	Value       *float64      `json:"value,omitempty"`
	Description string        `json:"description,omitempty"`
	Operation   BulkOperation `json:"operation,omitempty"`
	Scope       string        `json:"scope,omitempty"`

	// Optional attributes for ADD_ITEM
	Quantity *float64     `json:"quantity,omitempty"`
	Unit     ItemUnit     `json:"unit,omitempty"`
	Category ItemCategory `json:"category,omitempty"`

	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript,omitempty"`
}

// Validate checks the shape of the command. It does not look at quote items;
// target resolution and value ranges are the applier's job.
func (c VoiceEditCommand) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedCommand, c.Kind)
	}
	if !(c.Confidence >= 0 && c.Confidence <= 1) {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", ErrMalformedCommand, c.Confidence)
	}
	if !finitePtr(c.Value) || !finitePtr(c.Quantity) {
		return fmt.Errorf("%w: %s has a non-finite number", ErrMalformedCommand, c.Kind)
	}
	if c.Kind.NeedsTarget() && strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("%w: %s requires a target", ErrMalformedCommand, c.Kind)
	}

	switch c.Kind {
	case CommandChangePrice, CommandChangeQuantity:
		if c.Value == nil {
			return fmt.Errorf("%w: %s requires a value", ErrMalformedCommand, c.Kind)
		}
	case CommandAddItem:
		if strings.TrimSpace(c.Description) == "" {
			return fmt.Errorf("%w: ADD_ITEM requires a description", ErrMalformedCommand)
		}
		if c.Unit != "" && !c.Unit.IsValid() {
			return fmt.Errorf("%w: unknown unit %q", ErrMalformedCommand, c.Unit)
		}
		if c.Category != "" && !c.Category.IsValid() {
			return fmt.Errorf("%w: unknown category %q", ErrMalformedCommand, c.Category)
		}
	case CommandBulkChange:
		if !c.Operation.IsValid() {
			return fmt.Errorf("%w: unknown bulk operation %q", ErrMalformedCommand, c.Operation)
		}
	}
	return nil
}

func finitePtr(v *float64) bool {
	return v == nil || (!math.IsNaN(*v) && !math.IsInf(*v, 0))
}

// ValueOr returns the command value or def when none was given
func (c VoiceEditCommand) ValueOr(def float64) float64 {
	if c.Value == nil {
		return def
	}
	return *c.Value
}

// Float returns a pointer to v, for building commands in code
func Float(v float64) *float64 {
	return &v
}
