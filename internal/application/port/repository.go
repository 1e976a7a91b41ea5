package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/quote-revision/internal/domain/entity"
)

var (
	// ErrQuoteNotFound is returned when a quote id is unknown to the store
	ErrQuoteNotFound = errors.New("quote not found")

	// ErrStaleQuoteVersion is returned when a commit's expected version is no longer current
	ErrStaleQuoteVersion = errors.New("stale quote version")

	// ErrQuoteNotEditable is returned when a commit targets a quote the customer already answered
	ErrQuoteNotEditable = errors.New("quote can no longer be revised")

	// ErrStatusConflict is returned when a quote's status changed under a status update
	ErrStatusConflict = errors.New("quote status changed concurrently")

	// ErrTemplateNotFound is returned when a contractor has no quote template
	ErrTemplateNotFound = errors.New("quote template not found")
)

// QuoteStore is the durable record of quotes, their items and their edit history.
//
// CommitQuoteVersion is the serialization point for concurrent review sessions:
// it replaces the quote's items, bumps the version to expectedVersion+1 and
// appends the edit record in one atomic step, or returns ErrStaleQuoteVersion.
// Accepted and rejected quotes are never committed to (ErrQuoteNotEditable).
type QuoteStore interface {
	CreateQuote(ctx context.Context, quote *entity.Quote, items []entity.QuoteItem) error
	LoadQuote(ctx context.Context, id string) (*entity.Quote, []entity.QuoteItem, error)
	CommitQuoteVersion(ctx context.Context, id string, expectedVersion int, items []entity.QuoteItem, edit *entity.QuoteEdit) (int, error)
	ListEdits(ctx context.Context, quoteID string) ([]*entity.QuoteEdit, error)
	UpdateStatus(ctx context.Context, id string, from, to entity.QuoteStatus, at time.Time) error
}

// TemplateRepository stores contractor presentation metadata
type TemplateRepository interface {
	Upsert(ctx context.Context, tmpl *entity.QuoteTemplate) error
	GetByContractor(ctx context.Context, contractorID string) (*entity.QuoteTemplate, error)
}

// SessionArchive keeps finalized review sessions for audit
type SessionArchive interface {
	Save(ctx context.Context, session *entity.QuoteReviewSession) error
	ListByQuote(ctx context.Context, quoteID string) ([]*entity.QuoteReviewSession, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
