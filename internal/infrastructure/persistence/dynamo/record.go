package dynamo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/quote-revision/internal/domain/entity"
)

const (
	quoteSortKey = "QUOTE"
	editPrefix   = "EDIT#"
)

// editSortKey zero-pads the version so edits sort by version_from
func editSortKey(versionFrom int) string {
	return fmt.Sprintf("%s%09d", editPrefix, versionFrom)
}

// quoteRecord is the QUOTE row of a quote's partition. Items live inline;
// they are always read and replaced together with the version.
type quoteRecord struct {
	PK                 string       `dynamodbav:"pk"`
	SK                 string       `dynamodbav:"sk"`
	ContractorID       string       `dynamodbav:"contractor_id"`
	CustomerName       string       `dynamodbav:"customer_name"`
	CustomerEmail      string       `dynamodbav:"customer_email,omitempty"`
	CustomerPhone      string       `dynamodbav:"customer_phone,omitempty"`
	CustomerAddress    string       `dynamodbav:"customer_address,omitempty"`
	ProjectDescription string       `dynamodbav:"project_description"`
	Status             string       `dynamodbav:"status"`
	Version            int          `dynamodbav:"version"`
	TotalAmount        float64      `dynamodbav:"total_amount"`
	ValidUntil         string       `dynamodbav:"valid_until,omitempty"`
	CreatedAt          string       `dynamodbav:"created_at"`
	UpdatedAt          string       `dynamodbav:"updated_at"`
	SentAt             string       `dynamodbav:"sent_at,omitempty"`
	ViewedAt           string       `dynamodbav:"viewed_at,omitempty"`
	AcceptedAt         string       `dynamodbav:"accepted_at,omitempty"`
	Items              []itemRecord `dynamodbav:"items"`
}

type itemRecord struct {
	ID           string  `dynamodbav:"id"`
	ItemCode     string  `dynamodbav:"item_code,omitempty"`
	Description  string  `dynamodbav:"description"`
	Quantity     float64 `dynamodbav:"quantity"`
	Unit         string  `dynamodbav:"unit"`
	UnitPrice    float64 `dynamodbav:"unit_price"`
	Category     string  `dynamodbav:"category"`
	Notes        string  `dynamodbav:"notes,omitempty"`
	DisplayOrder int     `dynamodbav:"display_order"`
}

type editRecord struct {
	PK           string  `dynamodbav:"pk"`
	SK           string  `dynamodbav:"sk"`
	ID           string  `dynamodbav:"id"`
	VersionFrom  int     `dynamodbav:"version_from"`
	VersionTo    int     `dynamodbav:"version_to"`
	Kind         string  `dynamodbav:"kind"`
	Transcript   string  `dynamodbav:"transcript,omitempty"`
	ChangesJSON  string  `dynamodbav:"changes_json"`
	Confidence   float64 `dynamodbav:"confidence"`
	ContractorID string  `dynamodbav:"contractor_id,omitempty"`
	CreatedAt    string  `dynamodbav:"created_at"`
}

func toQuoteRecord(q *entity.Quote, items []entity.QuoteItem, total float64) quoteRecord {
	rec := quoteRecord{
		PK:                 q.ID,
		SK:                 quoteSortKey,
		ContractorID:       q.ContractorID,
		CustomerName:       q.CustomerName,
		CustomerEmail:      q.CustomerEmail,
		CustomerPhone:      q.CustomerPhone,
		CustomerAddress:    q.CustomerAddress,
		ProjectDescription: q.ProjectDescription,
		Status:             string(q.Status),
		Version:            q.Version,
		TotalAmount:        total,
		ValidUntil:         formatTime(q.ValidUntil),
		CreatedAt:          formatTime(q.CreatedAt),
		UpdatedAt:          formatTime(q.UpdatedAt),
		SentAt:             formatTimePtr(q.SentAt),
		ViewedAt:           formatTimePtr(q.ViewedAt),
		AcceptedAt:         formatTimePtr(q.AcceptedAt),
		Items:              toItemRecords(items),
	}
	return rec
}

func toItemRecords(items []entity.QuoteItem) []itemRecord {
	out := make([]itemRecord, len(items))
	for i, it := range items {
		out[i] = itemRecord{
			ID:           it.ID,
			ItemCode:     it.ItemCode,
			Description:  it.Description,
			Quantity:     it.Quantity,
			Unit:         string(it.Unit),
			UnitPrice:    it.UnitPrice,
			Category:     string(it.Category),
			Notes:        it.Notes,
			DisplayOrder: it.DisplayOrder,
		}
	}
	return out
}

func fromQuoteRecord(rec quoteRecord) (*entity.Quote, []entity.QuoteItem) {
	q := &entity.Quote{
		ID:                 rec.PK,
		ContractorID:       rec.ContractorID,
		CustomerName:       rec.CustomerName,
		CustomerEmail:      rec.CustomerEmail,
		CustomerPhone:      rec.CustomerPhone,
		CustomerAddress:    rec.CustomerAddress,
		ProjectDescription: rec.ProjectDescription,
		Status:             entity.QuoteStatus(rec.Status),
		Version:            rec.Version,
		TotalAmount:        rec.TotalAmount,
		ValidUntil:         parseTime(rec.ValidUntil),
		CreatedAt:          parseTime(rec.CreatedAt),
		UpdatedAt:          parseTime(rec.UpdatedAt),
		SentAt:             parseTimePtr(rec.SentAt),
		ViewedAt:           parseTimePtr(rec.ViewedAt),
		AcceptedAt:         parseTimePtr(rec.AcceptedAt),
	}

	items := make([]entity.QuoteItem, len(rec.Items))
	for i, it := range rec.Items {
		items[i] = entity.QuoteItem{
			ID:           it.ID,
			QuoteID:      rec.PK,
			ItemCode:     it.ItemCode,
			Description:  it.Description,
			Quantity:     it.Quantity,
			Unit:         entity.ItemUnit(it.Unit),
			UnitPrice:    it.UnitPrice,
			Category:     entity.ItemCategory(it.Category),
			Notes:        it.Notes,
			DisplayOrder: it.DisplayOrder,
		}
	}
	return q, items
}

func toEditRecord(quoteID string, e *entity.QuoteEdit) (editRecord, error) {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return editRecord{}, fmt.Errorf("failed to encode changes: %w", err)
	}
	return editRecord{
		PK:           quoteID,
		SK:           editSortKey(e.VersionFrom),
		ID:           e.ID,
		VersionFrom:  e.VersionFrom,
		VersionTo:    e.VersionTo,
		Kind:         e.Kind,
		Transcript:   e.Transcript,
		ChangesJSON:  string(changes),
		Confidence:   e.Confidence,
		ContractorID: e.ContractorID,
		CreatedAt:    formatTime(e.CreatedAt),
	}, nil
}

func fromEditRecord(rec editRecord) (*entity.QuoteEdit, error) {
	e := &entity.QuoteEdit{
		ID:           rec.ID,
		QuoteID:      rec.PK,
		VersionFrom:  rec.VersionFrom,
		VersionTo:    rec.VersionTo,
		Kind:         rec.Kind,
		Transcript:   rec.Transcript,
		Confidence:   rec.Confidence,
		ContractorID: rec.ContractorID,
		CreatedAt:    parseTime(rec.CreatedAt),
	}
	if err := json.Unmarshal([]byte(rec.ChangesJSON), &e.Changes); err != nil {
		return nil, fmt.Errorf("failed to decode changes of edit %s: %w", rec.ID, err)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	return &t
}

func floatToString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
