package entity

// ItemUnit is the billing unit of a line item
type ItemUnit string

const (
	UnitEach       ItemUnit = "each"
	UnitHour       ItemUnit = "hour"
	UnitSquareFoot ItemUnit = "sqft"
	UnitLinearFoot ItemUnit = "lf"
	UnitJob        ItemUnit = "job"
)

// IsValid returns true if the unit is one of the supported units
func (u ItemUnit) IsValid() bool {
	switch u {
	case UnitEach, UnitHour, UnitSquareFoot, UnitLinearFoot, UnitJob:
		return true
	default:
		return false
	}
}

// ItemCategory groups line items for bulk edits and reporting
type ItemCategory string

const (
	CategoryLabor     ItemCategory = "labor"
	CategoryMaterial  ItemCategory = "material"
	CategoryEquipment ItemCategory = "equipment"
	CategoryOther     ItemCategory = "other"
)

// IsValid returns true if the category is one of the supported categories
func (c ItemCategory) IsValid() bool {
	switch c {
	case CategoryLabor, CategoryMaterial, CategoryEquipment, CategoryOther:
		return true
	default:
		return false
	}
}

// QuoteItem is one priced line of a quote.
// TotalPrice is always recomputed from Quantity and UnitPrice; stored values are not trusted.
type QuoteItem struct {
	ID           string       `json:"id"`
	QuoteID      string       `json:"quote_id"`
	ItemCode     string       `json:"item_code,omitempty"`
	Description  string       `json:"description"`
	Quantity     float64      `json:"quantity"`
	Unit         ItemUnit     `json:"unit"`
	UnitPrice    float64      `json:"unit_price"`
	TotalPrice   float64      `json:"total_price"`
	Category     ItemCategory `json:"category"`
	Notes        string       `json:"notes,omitempty"`
	DisplayOrder int          `json:"display_order"`
}

// CloneItems returns a copy of items that shares no backing array with the input
func CloneItems(items []QuoteItem) []QuoteItem {
	if items == nil {
		return nil
	}
	out := make([]QuoteItem, len(items))
	copy(out, items)
	return out
}
