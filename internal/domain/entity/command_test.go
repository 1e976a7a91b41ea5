package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceEditCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     VoiceEditCommand
		wantErr string
	}{
		{"valid price change", VoiceEditCommand{Kind: CommandChangePrice, Target: "paint", Value: Float(40), Confidence: 0.9}, ""},
		{"valid add", VoiceEditCommand{Kind: CommandAddItem, Description: "Primer", Unit: UnitEach, Confidence: 1}, ""},
		{"valid bulk", VoiceEditCommand{Kind: CommandBulkChange, Operation: BulkAddPercentage, Scope: "labor", Value: Float(10)}, ""},
		{"set_total is well formed", VoiceEditCommand{Kind: CommandBulkChange, Operation: BulkSetTotal, Value: Float(900)}, ""},
		{"unknown kind", VoiceEditCommand{Kind: "RENAME_ITEM"}, "unknown kind"},
		{"confidence above one", VoiceEditCommand{Kind: CommandRemoveItem, Target: "tile", Confidence: 1.5}, "confidence"},
		{"NaN confidence", VoiceEditCommand{Kind: CommandRemoveItem, Target: "tile", Confidence: math.NaN()}, "confidence"},
		{"infinite price", VoiceEditCommand{Kind: CommandChangePrice, Target: "paint", Value: Float(math.Inf(1))}, "non-finite"},
		{"NaN add quantity", VoiceEditCommand{Kind: CommandAddItem, Description: "Tile", Quantity: Float(math.NaN())}, "non-finite"},
		{"remove without target", VoiceEditCommand{Kind: CommandRemoveItem, Target: "  "}, "requires a target"},
		{"quantity without value", VoiceEditCommand{Kind: CommandChangeQuantity, Target: "tile"}, "requires a value"},
		{"add without description", VoiceEditCommand{Kind: CommandAddItem}, "requires a description"},
		{"add with bad unit", VoiceEditCommand{Kind: CommandAddItem, Description: "Tile", Unit: "crate"}, "unknown unit"},
		{"add with bad category", VoiceEditCommand{Kind: CommandAddItem, Description: "Tile", Category: "misc"}, "unknown category"},
		{"bulk with bad operation", VoiceEditCommand{Kind: CommandBulkChange, Operation: "double"}, "unknown bulk operation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrMalformedCommand)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestVoiceEditCommand_ValueOr(t *testing.T) {
	assert.Equal(t, 7.0, VoiceEditCommand{}.ValueOr(7))
	assert.Equal(t, 3.5, VoiceEditCommand{Value: Float(3.5)}.ValueOr(7))
}
