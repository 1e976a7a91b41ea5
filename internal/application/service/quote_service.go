package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/quote-revision/internal/application/dispatcher"
	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/domain/entity"
	"github.com/garyjia/quote-revision/internal/domain/event"
	"github.com/garyjia/quote-revision/internal/domain/revision"
	"github.com/google/uuid"
)

// DefaultQuoteValidity is how long a new quote stays valid when the request omits it
const DefaultQuoteValidity = 30 * 24 * time.Hour

// CreateQuoteInput is the request to create a draft quote
type CreateQuoteInput struct {
	ContractorID       string             `json:"contractor_id"`
	CustomerName       string             `json:"customer_name"`
	CustomerEmail      string             `json:"customer_email"`
	CustomerPhone      string             `json:"customer_phone"`
	CustomerAddress    string             `json:"customer_address"`
	ProjectDescription string             `json:"project_description"`
	ValidUntil         *time.Time         `json:"valid_until"`
	Items              []entity.QuoteItem `json:"items"`
}

// QuoteDetail is a quote with its current items
type QuoteDetail struct {
	Quote *entity.Quote      `json:"quote"`
	Items []entity.QuoteItem `json:"items"`
}

// ExportedQuote is a rendered quote document
type ExportedQuote struct {
	FileName    string
	ContentType string
	Content     []byte
}

// QuoteService covers the quote lifecycle outside review sessions
type QuoteService interface {
	CreateQuote(ctx context.Context, in CreateQuoteInput) (*QuoteDetail, error)
	GetQuote(ctx context.Context, id string) (*QuoteDetail, error)
	ListEdits(ctx context.Context, id string) ([]*entity.QuoteEdit, error)
	UpdateStatus(ctx context.Context, id string, status entity.QuoteStatus) (*entity.Quote, error)
	UpsertTemplate(ctx context.Context, tmpl *entity.QuoteTemplate) error
	ExportQuote(ctx context.Context, id string) (*ExportedQuote, error)
	InterpretTranscript(ctx context.Context, quoteID, transcript string) (*entity.VoiceEditCommand, error)
}

type quoteServiceImpl struct {
	store       port.QuoteStore
	templates   port.TemplateRepository
	exporter    port.QuoteExporter
	interpreter port.CommandInterpreter
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
}

// NewQuoteService creates a new QuoteService. exporter and interpreter may be nil
// when those integrations are not configured.
func NewQuoteService(
	store port.QuoteStore,
	templates port.TemplateRepository,
	exporter port.QuoteExporter,
	interpreter port.CommandInterpreter,
	disp dispatcher.Dispatcher,
	logger Logger,
) QuoteService {
	return &quoteServiceImpl{
		store:       store,
		templates:   templates,
		exporter:    exporter,
		interpreter: interpreter,
		dispatcher:  disp,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateQuote validates the items and stores a draft at version 1
func (s *quoteServiceImpl) CreateQuote(ctx context.Context, in CreateQuoteInput) (*QuoteDetail, error) {
	if strings.TrimSpace(in.ContractorID) == "" {
		return nil, fmt.Errorf("%w: contractor_id is required", ErrInvalidQuote)
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer_name is required", ErrInvalidQuote)
	}

	now := s.now()
	quote := &entity.Quote{
		ID:                 uuid.NewString(),
		ContractorID:       in.ContractorID,
		CustomerName:       in.CustomerName,
		CustomerEmail:      in.CustomerEmail,
		CustomerPhone:      in.CustomerPhone,
		CustomerAddress:    in.CustomerAddress,
		ProjectDescription: in.ProjectDescription,
		Status:             entity.QuoteStatusDraft,
		Version:            entity.InitialQuoteVersion,
		ValidUntil:         now.Add(DefaultQuoteValidity),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.ValidUntil != nil {
		quote.ValidUntil = *in.ValidUntil
	}

	items, err := normalizeItems(quote.ID, in.Items)
	if err != nil {
		return nil, err
	}
	quote.TotalAmount = revision.CalculateTotal(items)

	if err := s.store.CreateQuote(ctx, quote, items); err != nil {
		s.logger.Error("Failed to create quote", "error", err, "contractor_id", in.ContractorID)
		return nil, fmt.Errorf("create quote: %w", err)
	}

	s.logger.Info("Quote created", "quote_id", quote.ID, "items", len(items), "total", quote.TotalAmount)
	return &QuoteDetail{Quote: quote, Items: items}, nil
}

func normalizeItems(quoteID string, in []entity.QuoteItem) ([]entity.QuoteItem, error) {
	items := entity.CloneItems(in)
	seenOrder := make(map[int]bool, len(items))
	next := 1
	for _, it := range items {
		if it.DisplayOrder >= next {
			next = it.DisplayOrder + 1
		}
	}

	for i := range items {
		it := &items[i]
		if strings.TrimSpace(it.Description) == "" {
			return nil, fmt.Errorf("%w: item %d has no description", ErrInvalidQuote, i)
		}
		if !(it.Quantity > 0 && it.Quantity <= revision.MaxAmount) {
			return nil, fmt.Errorf("%w: item %d quantity must be in (0, %.0f]", ErrInvalidQuote, i, revision.MaxAmount)
		}
		if !(it.UnitPrice >= 0 && it.UnitPrice <= revision.MaxAmount) {
			return nil, fmt.Errorf("%w: item %d unit price must be in [0, %.0f]", ErrInvalidQuote, i, revision.MaxAmount)
		}
		if it.Unit == "" {
			it.Unit = entity.UnitEach
		}
		if !it.Unit.IsValid() {
			return nil, fmt.Errorf("%w: item %d has unknown unit %q", ErrInvalidQuote, i, it.Unit)
		}
		if it.Category == "" {
			it.Category = entity.CategoryOther
		}
		if !it.Category.IsValid() {
			return nil, fmt.Errorf("%w: item %d has unknown category %q", ErrInvalidQuote, i, it.Category)
		}
		if it.DisplayOrder <= 0 {
			it.DisplayOrder = next
			next++
		}
		if seenOrder[it.DisplayOrder] {
			return nil, fmt.Errorf("%w: duplicate display_order %d", ErrInvalidQuote, it.DisplayOrder)
		}
		seenOrder[it.DisplayOrder] = true

		it.ID = uuid.NewString()
		it.QuoteID = quoteID
		it.UnitPrice = revision.RoundCents(it.UnitPrice)
	}
	return revision.Recompute(items), nil
}

func (s *quoteServiceImpl) GetQuote(ctx context.Context, id string) (*QuoteDetail, error) {
	quote, items, err := s.store.LoadQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	return &QuoteDetail{Quote: quote, Items: items}, nil
}

func (s *quoteServiceImpl) ListEdits(ctx context.Context, id string) ([]*entity.QuoteEdit, error) {
	if _, _, err := s.store.LoadQuote(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEdits(ctx, id)
}

// UpdateStatus moves a quote forward along its lifecycle
func (s *quoteServiceImpl) UpdateStatus(ctx context.Context, id string, status entity.QuoteStatus) (*entity.Quote, error) {
	quote, _, err := s.store.LoadQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, quote.Status, status)
	}

	now := s.now()
	if err := s.store.UpdateStatus(ctx, id, quote.Status, status, now); err != nil {
		s.logger.Error("Failed to update quote status", "error", err, "quote_id", id, "status", status)
		return nil, err
	}

	previous := quote.Status
	quote.Status = status
	quote.UpdatedAt = now
	switch status {
	case entity.QuoteStatusSent:
		quote.SentAt = &now
	case entity.QuoteStatusAccepted:
		quote.AcceptedAt = &now
	}

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(event.TypeQuoteStatusChanged, id, "", map[string]interface{}{
			event.KeyStatus:       string(status),
			event.KeyContractorID: quote.ContractorID,
			"previous_status":     string(previous),
		}))
	}
	s.logger.Info("Quote status updated", "quote_id", id, "from", previous, "to", status)
	return quote, nil
}

func (s *quoteServiceImpl) UpsertTemplate(ctx context.Context, tmpl *entity.QuoteTemplate) error {
	if strings.TrimSpace(tmpl.ContractorID) == "" || strings.TrimSpace(tmpl.BusinessName) == "" {
		return fmt.Errorf("%w: template needs contractor_id and business_name", ErrInvalidQuote)
	}
	tmpl.UpdatedAt = s.now()
	return s.templates.Upsert(ctx, tmpl)
}

// ExportQuote renders the quote with its contractor's template, or a bare
// template when the contractor has none
func (s *quoteServiceImpl) ExportQuote(ctx context.Context, id string) (*ExportedQuote, error) {
	if s.exporter == nil {
		return nil, ErrExportUnavailable
	}

	quote, items, err := s.store.LoadQuote(ctx, id)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.templates.GetByContractor(ctx, quote.ContractorID)
	if errors.Is(err, port.ErrTemplateNotFound) {
		tmpl = &entity.QuoteTemplate{ContractorID: quote.ContractorID}
	} else if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	content, err := s.exporter.Export(ctx, quote, items, tmpl)
	if err != nil {
		s.logger.Error("Failed to export quote", "error", err, "quote_id", id)
		return nil, fmt.Errorf("export quote: %w", err)
	}

	return &ExportedQuote{
		FileName:    fmt.Sprintf("quote-%s-v%d.%s", quote.ID, quote.Version, s.exporter.FileExtension()),
		ContentType: s.exporter.ContentType(),
		Content:     content,
	}, nil
}

// InterpretTranscript asks the interpreter for a command against the quote's current items
func (s *quoteServiceImpl) InterpretTranscript(ctx context.Context, quoteID, transcript string) (*entity.VoiceEditCommand, error) {
	if s.interpreter == nil {
		return nil, port.ErrInterpreterUnavailable
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("%w: empty transcript", entity.ErrMalformedCommand)
	}

	_, items, err := s.store.LoadQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	cmd, err := s.interpreter.Interpret(ctx, transcript, items)
	if err != nil {
		s.logger.Error("Failed to interpret transcript", "error", err, "quote_id", quoteID)
		return nil, err
	}
	if cmd.Transcript == "" {
		cmd.Transcript = transcript
	}
	return cmd, nil
}
