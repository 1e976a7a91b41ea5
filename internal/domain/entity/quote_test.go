package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to QuoteStatus
		want     bool
	}{
		{QuoteStatusDraft, QuoteStatusReview, true},
		{QuoteStatusDraft, QuoteStatusSent, true},
		{QuoteStatusReview, QuoteStatusSent, true},
		{QuoteStatusSent, QuoteStatusAccepted, true},
		{QuoteStatusSent, QuoteStatusRejected, true},
		{QuoteStatusReview, QuoteStatusDraft, false},
		{QuoteStatusDraft, QuoteStatusAccepted, false},
		{QuoteStatusSent, QuoteStatusSent, false},
		{QuoteStatusAccepted, QuoteStatusRejected, false},
		{QuoteStatus("archived"), QuoteStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestQuoteStatus_IsTerminal(t *testing.T) {
	assert.True(t, QuoteStatusAccepted.IsTerminal())
	assert.True(t, QuoteStatusRejected.IsTerminal())
	assert.False(t, QuoteStatusSent.IsTerminal())
}
