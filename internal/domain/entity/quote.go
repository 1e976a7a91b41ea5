package entity

import "time"

// QuoteStatus is the customer-facing lifecycle of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusReview   QuoteStatus = "review"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
)

// statusRank orders statuses along the forward-only lifecycle.
// accepted and rejected share a rank: both are terminal.
var statusRank = map[QuoteStatus]int{
	QuoteStatusDraft:    0,
	QuoteStatusReview:   1,
	QuoteStatusSent:     2,
	QuoteStatusAccepted: 3,
	QuoteStatusRejected: 3,
}

// IsValid returns true if the status is a known quote status
func (s QuoteStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminal returns true once the customer has answered the quote
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusAccepted || s == QuoteStatusRejected
}

// CanTransitionTo reports whether moving to next keeps the lifecycle moving forward.
// Skipping review (draft -> sent) is allowed; going back never is.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return s == QuoteStatusSent
	}
	return statusRank[next] > statusRank[s]
}

// Quote is a contractor's priced offer to a homeowner.
//
// Version starts at 1 and grows by exactly one per committed edit batch.
// TotalAmount is derived from the items and is never accepted from clients.
type Quote struct {
	ID           string `json:"id"`
	ContractorID string `json:"contractor_id"`

	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email,omitempty"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	CustomerAddress string `json:"customer_address,omitempty"`

	ProjectDescription string `json:"project_description"`

	Status      QuoteStatus `json:"status"`
	Version     int         `json:"version"`
	TotalAmount float64     `json:"total_amount"`
	ValidUntil  time.Time   `json:"valid_until"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// InitialQuoteVersion is the version of a freshly created quote
const InitialQuoteVersion = 1
