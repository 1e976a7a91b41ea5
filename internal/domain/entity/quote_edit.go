package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// EditKindBatch marks an edit whose batch mixed several command kinds
const EditKindBatch = "BATCH"

// QuoteEdit is the immutable audit record of one committed batch.
// VersionTo is always VersionFrom+1.
type QuoteEdit struct {
	ID           string    `json:"id"`
	QuoteID      string    `json:"quote_id"`
	VersionFrom  int       `json:"version_from"`
	VersionTo    int       `json:"version_to"`
	Kind         string    `json:"kind"`
	Transcript   string    `json:"transcript,omitempty"`
	Changes      ChangeSet `json:"changes"`
	Confidence   float64   `json:"confidence"`
	ContractorID string    `json:"contractor_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Change is one entry of an edit's change payload. The concrete type is
// selected by Kind and carries only the fields relevant to that kind.
type Change interface {
	Kind() CommandKind
}

// PriceChange records a CHANGE_PRICE
type PriceChange struct {
	ItemID       string  `json:"item_id"`
	Description  string  `json:"description"`
	OldUnitPrice float64 `json:"old_unit_price"`
	NewUnitPrice float64 `json:"new_unit_price"`
}

// ItemAddition records an ADD_ITEM
type ItemAddition struct {
	Item QuoteItem `json:"item"`
}

// ItemRemoval records a REMOVE_ITEM
type ItemRemoval struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description"`
}

// QuantityChange records a CHANGE_QUANTITY
type QuantityChange struct {
	ItemID      string  `json:"item_id"`
	Description string  `json:"description"`
	OldQuantity float64 `json:"old_quantity"`
	NewQuantity float64 `json:"new_quantity"`
}

// BulkChange records a BULK_CHANGE and the items it touched
type BulkChange struct {
	Operation  BulkOperation `json:"operation"`
	Scope      string        `json:"scope"`
	Percentage float64       `json:"percentage"`
	ItemIDs    []string      `json:"item_ids"`
}

func (PriceChange) Kind() CommandKind    { return CommandChangePrice }
func (ItemAddition) Kind() CommandKind   { return CommandAddItem }
func (ItemRemoval) Kind() CommandKind    { return CommandRemoveItem }
func (QuantityChange) Kind() CommandKind { return CommandChangeQuantity }
func (BulkChange) Kind() CommandKind     { return CommandBulkChange }

// ChangeSet is the ordered change payload of an edit
type ChangeSet []Change

type changeEnvelope struct {
	Kind CommandKind     `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes each change as {"kind": ..., "data": {...}}
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	envelopes := make([]changeEnvelope, 0, len(cs))
	for _, c := range cs {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("marshal %s change: %w", c.Kind(), err)
		}
		envelopes = append(envelopes, changeEnvelope{Kind: c.Kind(), Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON decodes the envelope form and rejects unknown kinds
func (cs *ChangeSet) UnmarshalJSON(b []byte) error {
	var envelopes []changeEnvelope
	if err := json.Unmarshal(b, &envelopes); err != nil {
		return err
	}

	out := make(ChangeSet, 0, len(envelopes))
	for i, env := range envelopes {
		var (
			c   Change
			err error
		)
		switch env.Kind {
		case CommandChangePrice:
			var v PriceChange
			err = json.Unmarshal(env.Data, &v)
			c = v
		case CommandAddItem:
			var v ItemAddition
			err = json.Unmarshal(env.Data, &v)
			c = v
		case CommandRemoveItem:
			var v ItemRemoval
			err = json.Unmarshal(env.Data, &v)
			c = v
		case CommandChangeQuantity:
			var v QuantityChange
			err = json.Unmarshal(env.Data, &v)
			c = v
		case CommandBulkChange:
			var v BulkChange
			err = json.Unmarshal(env.Data, &v)
			c = v
		default:
			return fmt.Errorf("change %d: unknown kind %q", i, env.Kind)
		}
		if err != nil {
			return fmt.Errorf("change %d (%s): %w", i, env.Kind, err)
		}
		out = append(out, c)
	}

	*cs = out
	return nil
}

// EditKindFor returns the kind recorded for a batch of commands
func EditKindFor(commands []VoiceEditCommand) string {
	if len(commands) == 0 {
		return ""
	}
	kind := commands[0].Kind
	for _, c := range commands[1:] {
		if c.Kind != kind {
			return EditKindBatch
		}
	}
	return string(kind)
}
