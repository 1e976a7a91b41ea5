package service

import (
	"errors"

	"github.com/garyjia/quote-revision/internal/application/port"
)

var (
	// ErrSessionAlreadyActive is returned when a quote already has a non-finalized review session
	ErrSessionAlreadyActive = errors.New("review session already active for quote")

	// ErrNoActiveSession is returned when the caller has no active session on the quote
	ErrNoActiveSession = errors.New("no active review session")

	// ErrLowConfidenceRequiresConfirmation is returned when low-confidence commands
	// stop a batch from being approved automatically
	ErrLowConfidenceRequiresConfirmation = errors.New("low-confidence commands require explicit confirmation")

	// ErrQueueFrozen is returned for commands submitted while changes await confirmation
	ErrQueueFrozen = errors.New("pending changes are awaiting confirmation")

	// ErrQuoteNotEditable is returned when revising an accepted or rejected quote
	ErrQuoteNotEditable = port.ErrQuoteNotEditable

	// ErrInvalidQuote is returned for create requests that violate quote invariants
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrExportUnavailable is returned when no quote exporter is configured
	ErrExportUnavailable = errors.New("quote export is not configured")

	// ErrInvalidStatusTransition is returned for status changes that would move a quote backwards
	ErrInvalidStatusTransition = errors.New("invalid quote status transition")
)

func isStale(err error) bool {
	return errors.Is(err, port.ErrStaleQuoteVersion)
}
