package revision

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
}

func baseItems() []entity.QuoteItem {
	return []entity.QuoteItem{
		{ID: "paint", QuoteID: "q-1", Description: "Paint", Quantity: 2, Unit: entity.UnitEach, UnitPrice: 50, Category: entity.CategoryMaterial, DisplayOrder: 1},
		{ID: "labor", QuoteID: "q-1", Description: "Painting labor", Quantity: 1, Unit: entity.UnitHour, UnitPrice: 200, Category: entity.CategoryLabor, DisplayOrder: 2},
		{ID: "ladder", QuoteID: "q-1", Description: "Ladder rental", Quantity: 1, Unit: entity.UnitJob, UnitPrice: 35, Category: entity.CategoryEquipment, DisplayOrder: 5},
	}
}

func newTestApplier() *Applier {
	return NewApplier(WithIDGenerator(sequentialIDs()))
}

func TestApplier_EmptyBatchIsNoop(t *testing.T) {
	items := baseItems()
	res, err := newTestApplier().Apply(items, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Changes)
	assert.Equal(t, CalculateTotal(items), res.Total)
	require.Len(t, res.Items, len(items))
	for i := range items {
		assert.Equal(t, items[i].ID, res.Items[i].ID)
		assert.Equal(t, items[i].UnitPrice, res.Items[i].UnitPrice)
		assert.Equal(t, items[i].Quantity, res.Items[i].Quantity)
	}
}

func TestApplier_ChangeQuantityExample(t *testing.T) {
	items := []entity.QuoteItem{{ID: "p", Description: "Paint", Quantity: 2, UnitPrice: 50}}
	require.Equal(t, 100.0, CalculateTotal(items))

	res, err := newTestApplier().Apply(items, []entity.VoiceEditCommand{
		{Kind: entity.CommandChangeQuantity, Target: "Paint", Value: entity.Float(3), Confidence: 0.9},
	})
	require.NoError(t, err)

	assert.Equal(t, 150.0, res.Total)
	assert.Equal(t, 150.0, res.Items[0].TotalPrice)
	assert.Equal(t, 2.0, items[0].Quantity, "input must not be mutated")
	require.Len(t, res.Changes, 1)
	assert.Equal(t, entity.QuantityChange{ItemID: "p", Description: "Paint", OldQuantity: 2, NewQuantity: 3}, res.Changes[0])
}

func TestApplier_ChangePrice(t *testing.T) {
	res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
		{Kind: entity.CommandChangePrice, Target: "ladder rental", Value: entity.Float(42.5)},
	})
	require.NoError(t, err)

	assert.Equal(t, 42.5, res.Items[2].UnitPrice)
	assert.Equal(t, 42.5, res.Items[2].TotalPrice)
	assert.Equal(t, 342.5, res.Total)
	assert.Equal(t, entity.PriceChange{ItemID: "ladder", Description: "Ladder rental", OldUnitPrice: 35, NewUnitPrice: 42.5}, res.Changes[0])
}

func TestApplier_AddItemDefaults(t *testing.T) {
	res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
		{Kind: entity.CommandAddItem, Description: "Primer", Value: entity.Float(25)},
	})
	require.NoError(t, err)
	require.Len(t, res.Items, 4)

	added := res.Items[3]
	assert.Equal(t, "new-1", added.ID)
	assert.Equal(t, "q-1", added.QuoteID)
	assert.Equal(t, 1.0, added.Quantity)
	assert.Equal(t, entity.CategoryOther, added.Category)
	assert.Equal(t, entity.UnitEach, added.Unit)
	assert.Equal(t, 6, added.DisplayOrder, "max display order + 1")
	assert.Equal(t, 25.0, added.TotalPrice)
	assert.Equal(t, entity.ItemAddition{Item: added}, res.Changes[0])
}

func TestApplier_AddItemWithAttributes(t *testing.T) {
	res, err := newTestApplier().Apply(nil, []entity.VoiceEditCommand{
		{Kind: entity.CommandAddItem, Description: "Baseboard", Quantity: entity.Float(40), Unit: entity.UnitLinearFoot, Category: entity.CategoryMaterial, Value: entity.Float(2.25)},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, 1, res.Items[0].DisplayOrder)
	assert.Equal(t, entity.UnitLinearFoot, res.Items[0].Unit)
	assert.Equal(t, 90.0, res.Total)
}

func TestApplier_RemoveKeepsDisplayOrder(t *testing.T) {
	res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
		{Kind: entity.CommandRemoveItem, Target: "paint"},
	})
	require.NoError(t, err)

	require.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Items[0].DisplayOrder)
	assert.Equal(t, 5, res.Items[1].DisplayOrder)
	assert.Equal(t, 235.0, res.Total)
}

func TestApplier_PriceChangeThenRemoveSameTarget(t *testing.T) {
	res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
		{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(60)},
		{Kind: entity.CommandRemoveItem, Target: "Paint"},
	})
	require.NoError(t, err)

	for _, it := range res.Items {
		assert.NotEqual(t, "paint", it.ID)
	}
	require.Len(t, res.Changes, 2)
	assert.Equal(t, entity.CommandChangePrice, res.Changes[0].Kind())
	assert.Equal(t, entity.CommandRemoveItem, res.Changes[1].Kind())
	assert.Equal(t, 235.0, res.Total)
}

func TestApplier_BulkChange(t *testing.T) {
	t.Run("add percentage to labor", func(t *testing.T) {
		res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
			{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Scope: "labor", Value: entity.Float(10)},
		})
		require.NoError(t, err)

		assert.Equal(t, 220.0, res.Items[1].UnitPrice)
		assert.Equal(t, 50.0, res.Items[0].UnitPrice)
		assert.Equal(t, 35.0, res.Items[2].UnitPrice)
		assert.Equal(t, entity.BulkChange{Operation: entity.BulkAddPercentage, Scope: "labor", Percentage: 10, ItemIDs: []string{"labor"}}, res.Changes[0])
	})

	t.Run("subtract percentage from all", func(t *testing.T) {
		res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
			{Kind: entity.CommandBulkChange, Operation: entity.BulkSubtractPercentage, Scope: "all", Value: entity.Float(50)},
		})
		require.NoError(t, err)

		assert.Equal(t, 25.0, res.Items[0].UnitPrice)
		assert.Equal(t, 100.0, res.Items[1].UnitPrice)
		assert.Equal(t, 17.5, res.Items[2].UnitPrice)
		assert.Len(t, res.Changes[0].(entity.BulkChange).ItemIDs, 3)
	})

	t.Run("empty scope means all", func(t *testing.T) {
		res, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{
			{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Value: entity.Float(0)},
		})
		require.NoError(t, err)
		assert.Equal(t, entity.ScopeAll, res.Changes[0].(entity.BulkChange).Scope)
	})
}

func TestApplier_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cmd     entity.VoiceEditCommand
		wantErr error
	}{
		{"unknown target", entity.VoiceEditCommand{Kind: entity.CommandRemoveItem, Target: "roof"}, ErrTargetNotFound},
		{"zero quantity", entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Paint", Value: entity.Float(0)}, ErrInvalidQuantity},
		{"missing quantity", entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Paint"}, ErrInvalidQuantity},
		{"negative price", entity.VoiceEditCommand{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(-1)}, ErrInvalidPrice},
		{"set_total", entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkSetTotal, Scope: "all", Value: entity.Float(500)}, ErrUnsupportedBulkOperation},
		{"unknown scope", entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Scope: "plumbing", Value: entity.Float(5)}, ErrInvalidCommand},
		{"discount beyond zero", entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkSubtractPercentage, Scope: "all", Value: entity.Float(120)}, ErrInvalidPrice},
		{"add without description", entity.VoiceEditCommand{Kind: entity.CommandAddItem}, ErrInvalidCommand},
		{"overflowing price", entity.VoiceEditCommand{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(1e307)}, ErrInvalidPrice},
		{"infinite price", entity.VoiceEditCommand{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(math.Inf(1))}, ErrInvalidPrice},
		{"NaN price", entity.VoiceEditCommand{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(math.NaN())}, ErrInvalidPrice},
		{"NaN quantity", entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Paint", Value: entity.Float(math.NaN())}, ErrInvalidQuantity},
		{"overflowing quantity", entity.VoiceEditCommand{Kind: entity.CommandChangeQuantity, Target: "Paint", Value: entity.Float(1e300)}, ErrInvalidQuantity},
		{"add with infinite quantity", entity.VoiceEditCommand{Kind: entity.CommandAddItem, Description: "Tape", Quantity: entity.Float(math.Inf(1))}, ErrInvalidQuantity},
		{"add with overflowing price", entity.VoiceEditCommand{Kind: entity.CommandAddItem, Description: "Tape", Value: entity.Float(1e307)}, ErrInvalidPrice},
		{"NaN percentage", entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Scope: "all", Value: entity.Float(math.NaN())}, ErrInvalidCommand},
		{"markup overflows price", entity.VoiceEditCommand{Kind: entity.CommandBulkChange, Operation: entity.BulkAddPercentage, Scope: "labor", Value: entity.Float(1e12)}, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestApplier().Apply(baseItems(), []entity.VoiceEditCommand{tt.cmd})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplier_AllOrNothing(t *testing.T) {
	items := baseItems()
	_, err := newTestApplier().Apply(items, []entity.VoiceEditCommand{
		{Kind: entity.CommandChangePrice, Target: "Paint", Value: entity.Float(75)},
		{Kind: entity.CommandAddItem, Description: "Tape"},
		{Kind: entity.CommandRemoveItem, Target: "gutters"},
	})
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 2, cmdErr.Index)
	assert.Equal(t, entity.CommandRemoveItem, cmdErr.Kind)
	assert.Contains(t, cmdErr.Error(), "gutters")

	assert.Equal(t, 50.0, items[0].UnitPrice)
	assert.Len(t, items, 3)
}

func TestApplier_CustomMatcher(t *testing.T) {
	a := NewApplier(WithMatcher(NewExactMatcher()))
	_, err := a.Apply(baseItems(), []entity.VoiceEditCommand{
		{Kind: entity.CommandRemoveItem, Target: "ladder rent"},
	})
	assert.ErrorIs(t, err, ErrTargetNotFound)
}
