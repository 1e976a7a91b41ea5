package service

import (
	"testing"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/stretchr/testify/assert"
)

func TestDescribeCommand(t *testing.T) {
	tests := []struct {
		cmd  entity.VoiceEditCommand
		want string
	}{
		{entity.VoiceEditCommand{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(45)}, `Set price of "Paint" to $45.00`},
		{entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Tile", Value: entity.Float(2.5)}, `Set quantity of "Tile" to 2.5`},
		{entity.VoiceEditCommand{Kind: entity.CommandRemoveItem, Target: "Trim"}, `Remove "Trim"`},
		{entity.VoiceEditCommand{Kind: entity.CommandAddItem, Description: "Primer", Value: entity.Float(25)}, `Add "Primer" (1 each at $25.00)`},
		{entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Scope: "labor", Value: entity.Float(10)}, "Raise labor prices by 10%"},
		{entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkSubtractPercentage, Value: entity.Float(5)}, "Lower all prices by 5%"},
		{entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkSetTotal, Scope: "all"}, "set_total on all items"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeCommand(tt.cmd))
		})
	}
}

func TestSummarize(t *testing.T) {
	items := []entity.QuoteItem{{ID: "i-1", Description: "Paint", Quantity: 2, UnitPrice: 50}}
	sess := &entity.QuoteReviewSession{QuoteID: "q-1", ObservedVersion: 3}

	empty := Summarize(revision.NewApplier(), items, sess)
	assert.Contains(t, empty, "No pending changes for quote q-1 (version 3)")

	sess.Pending = []entity.PendingCommand{
		{Command: entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Paint", Value: entity.Float(3), Confidence: 0.6}, LowConfidence: true},
	}
	got := Summarize(revision.NewApplier(), items, sess)
	assert.Equal(t, "Pending changes for quote q-1 (version 3):\n"+
		"1. Set quantity of \"Paint\" to 3 [unsure, 60% confidence]\n"+
		"Total: $100.00 -> $150.00\n"+
		"Reply yes to apply or no to cancel.", got)
}
