package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSet_JSON(t *testing.T) {
	cs := ChangeSet{
		PriceChange{ItemID: "i-1", Description: "Paint", OldUnitPrice: 50, NewUnitPrice: 45},
		ItemAddition{Item: QuoteItem{ID: "i-9", Description: "Primer", Quantity: 1, Unit: UnitEach, UnitPrice: 25, TotalPrice: 25, Category: CategoryMaterial, DisplayOrder: 4}},
		BulkChange{Operation: BulkAddPercentage, Scope: "labor", Percentage: 10, ItemIDs: []string{"i-2"}},
	}

	data, err := json.Marshal(cs)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"CHANGE_PRICE"`)
	assert.Contains(t, string(data), `"new_unit_price":45`)

	var decoded ChangeSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cs, decoded)
}

func TestChangeSet_UnmarshalRejectsUnknownKind(t *testing.T) {
	var cs ChangeSet
	err := json.Unmarshal([]byte(`[{"kind":"RENAME_ITEM","data":{}}]`), &cs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestQuoteEdit_EmbedsChangeSet(t *testing.T) {
	edit := QuoteEdit{
		ID: "e-1", QuoteID: "q-1", VersionFrom: 3, VersionTo: 4,
		Kind:    string(CommandRemoveItem),
		Changes: ChangeSet{ItemRemoval{ItemID: "i-3", Description: "Trim"}},
	}

	data, err := json.Marshal(edit)
	require.NoError(t, err)

	var back QuoteEdit
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Changes, 1)
	assert.Equal(t, ItemRemoval{ItemID: "i-3", Description: "Trim"}, back.Changes[0])
}

func TestEditKindFor(t *testing.T) {
	price := VoiceEditCommand{Kind: CommandChangePrice}
	remove := VoiceEditCommand{Kind: CommandRemoveItem}

	assert.Equal(t, "", EditKindFor(nil))
	assert.Equal(t, "CHANGE_PRICE", EditKindFor([]VoiceEditCommand{price, price}))
	assert.Equal(t, EditKindBatch, EditKindFor([]VoiceEditCommand{price, remove}))
}

func TestQuoteReviewSession_Snapshot(t *testing.T) {
	s := &QuoteReviewSession{
		ID:      "s-1",
		State:   SessionReviewingQuote,
		Pending: []PendingCommand{{Command: price("Paint"), LowConfidence: true}},
	}

	cp := s.Snapshot()
	cp.Pending = append(cp.Pending, PendingCommand{Command: price("Tile")})
	cp.Pending[0].LowConfidence = false

	assert.Len(t, s.Pending, 1)
	assert.True(t, s.HasLowConfidence())
	assert.False(t, cp.HasLowConfidence())
	assert.Equal(t, []VoiceEditCommand{price("Paint")}, s.Commands())
	assert.True(t, s.IsActive())
}

func price(target string) VoiceEditCommand {
	return VoiceEditCommand{Kind: CommandChangePrice, Target: target, Value: Float(1)}
}
