package revision

import (
	"fmt"
	"strings"

	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/google/uuid"
)

// Result is the outcome of applying a batch: a new item list, its total, and the change log
type Result struct {
	Items   []entity.QuoteItem
	Total   float64
	Changes entity.ChangeSet
}

// Applier applies edit commands to a quote's items without mutating its input
type Applier struct {
	matcher TargetMatcher
	newID   func() string
}

// ApplierOption configures an Applier
type ApplierOption func(*Applier)

// WithMatcher replaces the target matching strategy
func WithMatcher(m TargetMatcher) ApplierOption {
	return func(a *Applier) {
		a.matcher = m
	}
}

// WithIDGenerator replaces the id source for added items
func WithIDGenerator(fn func() string) ApplierOption {
	return func(a *Applier) {
		a.newID = fn
	}
}

// NewApplier creates an applier using the ranked matcher and random UUIDs
func NewApplier(opts ...ApplierOption) *Applier {
	a := &Applier{
		matcher: NewRankedMatcher(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply runs commands in order against a copy of items. The first failing
// command aborts the whole batch and is reported as a *CommandError.
// An empty batch returns the items unchanged with no changes.
func (a *Applier) Apply(items []entity.QuoteItem, commands []entity.VoiceEditCommand) (*Result, error) {
	working := Recompute(items)
	changes := make(entity.ChangeSet, 0, len(commands))

	for i, cmd := range commands {
		var (
			change entity.Change
			err    error
		)
		working, change, err = a.applyOne(working, cmd)
		if err != nil {
			return nil, &CommandError{Index: i, Kind: cmd.Kind, Target: cmd.Target, Err: err}
		}
		changes = append(changes, change)
	}

	return &Result{
		Items:   working,
		Total:   CalculateTotal(working),
		Changes: changes,
	}, nil
}

func (a *Applier) applyOne(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	switch cmd.Kind {
	case entity.CommandChangePrice:
		return a.changePrice(items, cmd)
	case entity.CommandAddItem:
		return a.addItem(items, cmd)
	case entity.CommandRemoveItem:
		return a.removeItem(items, cmd)
	case entity.CommandChangeQuantity:
		return a.changeQuantity(items, cmd)
	case entity.CommandBulkChange:
		return a.bulkChange(items, cmd)
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidCommand, cmd.Kind)
	}
}

func (a *Applier) changePrice(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	if cmd.Value == nil {
		return nil, nil, fmt.Errorf("%w: price value missing", ErrInvalidCommand)
	}
	if !validAmount(*cmd.Value) {
		return nil, nil, fmt.Errorf("%w: %.2f", ErrInvalidPrice, *cmd.Value)
	}
	price := RoundCents(*cmd.Value)

	idx, err := a.matcher.Match(items, cmd.Target)
	if err != nil {
		return nil, nil, err
	}

	out := entity.CloneItems(items)
	change := entity.PriceChange{
		ItemID:       out[idx].ID,
		Description:  out[idx].Description,
		OldUnitPrice: out[idx].UnitPrice,
		NewUnitPrice: price,
	}
	out[idx].UnitPrice = price
	out[idx].TotalPrice = LineTotal(out[idx])
	return out, change, nil
}

func (a *Applier) changeQuantity(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	if cmd.Value == nil || *cmd.Value == 0 || !validAmount(*cmd.Value) {
		return nil, nil, fmt.Errorf("%w: got %.2f", ErrInvalidQuantity, cmd.ValueOr(0))
	}

	idx, err := a.matcher.Match(items, cmd.Target)
	if err != nil {
		return nil, nil, err
	}

	out := entity.CloneItems(items)
	change := entity.QuantityChange{
		ItemID:      out[idx].ID,
		Description: out[idx].Description,
		OldQuantity: out[idx].Quantity,
		NewQuantity: *cmd.Value,
	}
	out[idx].Quantity = *cmd.Value
	out[idx].TotalPrice = LineTotal(out[idx])
	return out, change, nil
}

func (a *Applier) removeItem(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	idx, err := a.matcher.Match(items, cmd.Target)
	if err != nil {
		return nil, nil, err
	}

	change := entity.ItemRemoval{ItemID: items[idx].ID, Description: items[idx].Description}

	// remaining items keep their display_order
	out := make([]entity.QuoteItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	out = append(out, items[idx+1:]...)
	return out, change, nil
}

func (a *Applier) addItem(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	desc := strings.TrimSpace(cmd.Description)
	if desc == "" {
		return nil, nil, fmt.Errorf("%w: ADD_ITEM without description", ErrInvalidCommand)
	}

	qty := 1.0
	if cmd.Quantity != nil {
		qty = *cmd.Quantity
	}
	if qty == 0 || !validAmount(qty) {
		return nil, nil, fmt.Errorf("%w: got %.2f", ErrInvalidQuantity, qty)
	}

	if !validAmount(cmd.ValueOr(0)) {
		return nil, nil, fmt.Errorf("%w: %.2f", ErrInvalidPrice, cmd.ValueOr(0))
	}
	price := RoundCents(cmd.ValueOr(0))

	category := entity.CategoryOther
	if cmd.Category != "" {
		if !cmd.Category.IsValid() {
			return nil, nil, fmt.Errorf("%w: unknown category %q", ErrInvalidCommand, cmd.Category)
		}
		category = cmd.Category
	}
	unit := entity.UnitEach
	if cmd.Unit != "" {
		if !cmd.Unit.IsValid() {
			return nil, nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidCommand, cmd.Unit)
		}
		unit = cmd.Unit
	}

	maxOrder := 0
	quoteID := ""
	for _, it := range items {
		if it.DisplayOrder > maxOrder {
			maxOrder = it.DisplayOrder
		}
		quoteID = it.QuoteID
	}

	item := entity.QuoteItem{
		ID:           a.newID(),
		QuoteID:      quoteID,
		Description:  desc,
		Quantity:     qty,
		Unit:         unit,
		UnitPrice:    price,
		Category:     category,
		DisplayOrder: maxOrder + 1,
	}
	item.TotalPrice = LineTotal(item)

	out := append(entity.CloneItems(items), item)
	return out, entity.ItemAddition{Item: item}, nil
}

func (a *Applier) bulkChange(items []entity.QuoteItem, cmd entity.VoiceEditCommand) ([]entity.QuoteItem, entity.Change, error) {
	var sign float64
	switch cmd.Operation {
	case entity.BulkAddPercentage:
		sign = 1
	case entity.BulkSubtractPercentage:
		sign = -1
	case entity.BulkSetTotal:
		return nil, nil, fmt.Errorf("%w: set_total cannot be spread over several items", ErrUnsupportedBulkOperation)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedBulkOperation, cmd.Operation)
	}

	if cmd.Value == nil || !validAmount(*cmd.Value) {
		return nil, nil, fmt.Errorf("%w: percentage must be a finite non-negative number", ErrInvalidCommand)
	}
	pct := *cmd.Value

	scope := strings.ToLower(strings.TrimSpace(cmd.Scope))
	if scope == "" {
		scope = entity.ScopeAll
	}
	if scope != entity.ScopeAll && !entity.ItemCategory(scope).IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidCommand, cmd.Scope)
	}

	factor := 1 + sign*pct/100
	out := entity.CloneItems(items)
	touched := make([]string, 0, len(out))
	for i := range out {
		if scope != entity.ScopeAll && string(out[i].Category) != scope {
			continue
		}
		price := RoundCents(out[i].UnitPrice * factor)
		if !validAmount(price) {
			return nil, nil, fmt.Errorf("%w: %s would cost %.2f", ErrInvalidPrice, out[i].Description, price)
		}
		out[i].UnitPrice = price
		out[i].TotalPrice = LineTotal(out[i])
		touched = append(touched, out[i].ID)
	}

	return out, entity.BulkChange{
		Operation:  cmd.Operation,
		Scope:      scope,
		Percentage: pct,
		ItemIDs:    touched,
	}, nil
}
